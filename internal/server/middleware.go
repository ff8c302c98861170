// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/handlers"
	appmw "codeberg.org/oliverandrich/ambatobuy/internal/middleware"
	"codeberg.org/oliverandrich/ambatobuy/internal/ratelimit"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// unlimitedPaths are exempt from rate limiting.
var unlimitedPaths = []string{"/health", "/metrics"}

// newIPExtractor reads the client address from the connection unless trusted
// proxies are configured. Forwarded headers from anyone else are ignored, so
// they cannot be rotated to dodge the rate limit.
func newIPExtractor(cfg config.ServerConfig) (echo.IPExtractor, error) {
	nets, err := cfg.TrustedProxyNets()
	if err != nil {
		return nil, err
	}
	if len(nets) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range nets {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func setupMiddleware(e *echo.Echo, deps *Deps) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.Locale)
	e.Use(requestLogger())
	if deps.Metrics != nil {
		e.Use(deps.Metrics.Middleware())
	}
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", max(deps.Config.Server.MaxBodySize, 1))))

	if deps.Limiter != nil {
		e.Use(ratelimit.Middleware(ratelimit.Config{
			Store:     deps.Limiter,
			SkipPaths: unlimitedPaths,
			OnDeny: func(identifier string) {
				slog.Warn("rate_limited", "client", identifier)
				if deps.Metrics != nil {
					deps.Metrics.RateLimitDenied(identifier)
				}
			},
		}))
	}
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
			}

			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= 500 {
					level = slog.LevelError
				}
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)

			return nil
		},
	})
}

// sentryReporter sends unexpected failures to Sentry, tagged with the
// request.
func sentryReporter() handlers.Reporter {
	return func(c echo.Context, err error) {
		hub := sentry.CurrentHub().Clone()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetRequest(c.Request())
			scope.SetTag("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			scope.SetTag("route", c.Path())
		})
		hub.CaptureException(err)
	}
}
