// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"errors"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/auth"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Resolver turns a session token into the current user record.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// Authenticate loads the user named by the session cookie into the request
// context. Requests without a valid token are rejected; if the user no
// longer exists the cookie is cleared as well.
func Authenticate(resolver Resolver, sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := resolver.Resolve(c.Request().Context(), sessions.Read(c))
			if err != nil {
				if errors.Is(err, apperr.NotFound("")) {
					sessions.Clear(c)
				}
				return err
			}

			ctx := auth.WithUser(c.Request().Context(), user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireVerified rejects users who have not confirmed their email.
func RequireVerified(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := auth.GetUser(c.Request().Context())
		if user == nil {
			return apperr.Unauthenticated("authentication_required")
		}
		if !user.IsVerified {
			return apperr.New(apperr.KindAuthorization, apperr.CodeNeedsVerification, "verification_required")
		}
		return next(c)
	}
}

// RequireAdmin ensures the user is an admin.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := auth.GetUser(c.Request().Context())
		if user == nil {
			return apperr.Unauthenticated("authentication_required")
		}
		if !user.IsAdmin() {
			return apperr.Forbidden("access_denied")
		}
		return next(c)
	}
}
