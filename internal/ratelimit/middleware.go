// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit

import (
	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config wires a store into echo's rate limiter middleware.
type Config struct {
	Store middleware.RateLimiterStore
	// SkipPaths are exempt, e.g. health checks and metrics scraping.
	SkipPaths []string
	// OnDeny is called for every rejected request.
	OnDeny func(identifier string)
}

// ErrTooManyRequests is returned for requests over the limit.
var ErrTooManyRequests = apperr.New(apperr.KindRateLimit, apperr.CodeRateLimited, "too_many_requests")

// Middleware limits requests per client address.
func Middleware(cfg Config) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return skip[c.Request().URL.Path]
		},
		Store: cfg.Store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, _ error) error {
			return ErrTooManyRequests
		},
		DenyHandler: func(_ echo.Context, identifier string, _ error) error {
			if cfg.OnDeny != nil {
				cfg.OnDeny(identifier)
			}
			return ErrTooManyRequests
		},
	})
}
