// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/database"
	"codeberg.org/oliverandrich/ambatobuy/internal/handlers"
	"codeberg.org/oliverandrich/ambatobuy/internal/i18n"
	"codeberg.org/oliverandrich/ambatobuy/internal/metrics"
	"codeberg.org/oliverandrich/ambatobuy/internal/ratelimit"
	"codeberg.org/oliverandrich/ambatobuy/internal/repository"
	"codeberg.org/oliverandrich/ambatobuy/internal/repository/mongostore"
	authsvc "codeberg.org/oliverandrich/ambatobuy/internal/services/auth"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/email"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/preorder"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/session"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/token"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

// Store is the persistence backend shared by all services.
type Store interface {
	authsvc.UserStore
	preorder.OrderStore
	handlers.Pinger
}

var (
	_ Store = (*repository.Repository)(nil)
	_ Store = (*mongostore.Store)(nil)
)

// Deps are the collaborators the HTTP application is built from.
type Deps struct {
	Config *config.Config
	Store  Store
	Mailer authsvc.Mailer
	Secret []byte
	// Limiter is optional; nil disables rate limiting.
	Limiter middleware.RateLimiterStore
	// Metrics is optional; nil disables /metrics.
	Metrics *metrics.Metrics
	Report  handlers.Reporter
	Now     func() time.Time
}

// New assembles the echo application.
func New(deps *Deps) (*echo.Echo, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	tokens, err := token.NewService(deps.Secret, deps.Now)
	if err != nil {
		return nil, err
	}

	authOpts := []authsvc.Option{authsvc.WithClock(deps.Now)}
	orderOpts := []preorder.Option{preorder.WithClock(deps.Now)}
	if deps.Metrics != nil {
		authOpts = append(authOpts, authsvc.WithRecorder(deps.Metrics))
		orderOpts = append(orderOpts, preorder.WithRecorder(deps.Metrics))
	}

	auth, err := authsvc.NewService(deps.Store, deps.Mailer, tokens, &deps.Config.Auth, authOpts...)
	if err != nil {
		return nil, err
	}
	orders := preorder.NewService(deps.Store, &deps.Config.PreOrder, orderOpts...)
	sessions := session.NewManager(&deps.Config.Auth)

	ipExtractor, err := newIPExtractor(deps.Config.Server)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor
	e.HTTPErrorHandler = handlers.ErrorHandler(deps.Report)

	setupMiddleware(e, deps)
	setupRoutes(e, deps, auth, orders, sessions)

	return e, nil
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	slog.SetDefault(newLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format))

	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"database", cfg.Database.Driver,
		"order_transitions", cfg.PreOrder.Transitions,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := &Deps{Config: cfg}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			deps.Report = sentryReporter()
		}
	}

	// i18n
	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	// Storage
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	deps.Store = store

	// Session tokens
	if deps.Secret, err = tokenSecret(cfg); err != nil {
		return err
	}

	// Email
	if cfg.SMTP.Enabled() {
		mailer, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL, cfg.App.Name)
		if err != nil {
			return fmt.Errorf("failed to configure email: %w", err)
		}
		deps.Mailer = mailer
	} else {
		slog.Warn("SMTP not configured, emails are logged instead of sent")
		deps.Mailer = email.NewLogSender(slog.Default())
	}

	// Rate limiting
	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()
	deps.Limiter = limiter

	// Metrics
	if cfg.Metrics.Enabled {
		if deps.Metrics, err = metrics.New(metrics.Options{}); err != nil {
			return fmt.Errorf("failed to set up metrics: %w", err)
		}
	}

	e, err := New(deps)
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, e, cfg)
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		store, err := mongostore.Open(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open mongo: %w", err)
		}
		return store, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				slog.Error("failed to close mongo", "error", err)
			}
		}, nil

	default:
		db, err := database.Open(cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return repository.New(db), func() {
			if err := db.Close(); err != nil {
				slog.Error("failed to close database", "error", err)
			}
		}, nil
	}
}

// newLimiter returns the Redis limiter when an address is configured and an
// in-memory one otherwise.
func newLimiter(ctx context.Context, cfg *config.Config) (middleware.RateLimiterStore, func(), error) {
	rl := cfg.RateLimit

	if rl.RedisAddr == "" {
		store := ratelimit.NewMemory(rl.Requests, rl.Window, nil)
		go store.Run(ctx)
		return store, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         rl.RedisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("rate limiting through redis", "addr", rl.RedisAddr)
	return ratelimit.NewRedis(client, rl.Requests, rl.Window, nil), func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis", "error", err)
		}
	}, nil
}

// tokenSecret returns the configured signing secret. On localhost a random
// secret is generated, so sessions do not survive a restart.
func tokenSecret(cfg *config.Config) ([]byte, error) {
	if cfg.Auth.TokenSecret != "" {
		return []byte(cfg.Auth.TokenSecret), nil
	}
	if !config.IsLocalhost(cfg.Server.Host) {
		return nil, errors.New("token secret is required when not running on localhost")
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating token secret: %w", err)
	}
	slog.Warn("no token secret configured, using a random one for this process")
	return secret, nil
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
