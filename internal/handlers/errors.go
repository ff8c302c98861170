// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"github.com/labstack/echo/v4"
)

// Reporter forwards unexpected failures to an error tracker.
type Reporter func(c echo.Context, err error)

// echo-level errors that never pass through a handler.
var httpErrorMessages = map[int]struct{ messageID, code string }{
	http.StatusBadRequest:            {"invalid_request_body", apperr.CodeValidation},
	http.StatusUnauthorized:          {"authentication_required", apperr.CodeUnauthenticated},
	http.StatusForbidden:             {"access_denied", apperr.CodeForbidden},
	http.StatusNotFound:              {"route_not_found", apperr.CodeNotFound},
	http.StatusMethodNotAllowed:      {"method_not_allowed", "METHOD_NOT_ALLOWED"},
	http.StatusRequestEntityTooLarge: {"request_too_large", apperr.CodeValidation},
	http.StatusTooManyRequests:       {"too_many_requests", apperr.CodeRateLimited},
}

// ErrorHandler renders every error as a JSON envelope. Dependency failures
// are logged with their cause and reported; clients only see a generic
// message.
func ErrorHandler(report Reporter) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg, ok := httpErrorMessages[he.Code]
			if !ok {
				msg.messageID, msg.code = "internal_error", apperr.CodeInternal
			}
			if he.Code >= http.StatusInternalServerError {
				logFailure(c, err, report)
			}
			_ = respondError(c, he.Code, func() error {
				return fail(c, he.Code, msg.messageID, msg.code, nil)
			})
			return
		}

		appErr := apperr.From(err)
		if appErr.Status() >= http.StatusInternalServerError {
			logFailure(c, err, report)
		}
		_ = respondError(c, appErr.Status(), func() error {
			return writeError(c, appErr)
		})
	}
}

func respondError(c echo.Context, status int, write func() error) error {
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return write()
}

func logFailure(c echo.Context, err error, report Reporter) {
	slog.ErrorContext(c.Request().Context(), "request_failed",
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"error", err,
	)
	if report != nil {
		report(c, err)
	}
}
