// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Pre-order form visibility.
const (
	FormPublic  = "public"
	FormPrivate = "private"
)

// Order status transition policies.
const (
	TransitionsLenient = "lenient"
	TransitionsStrict  = "strict"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	App       AppConfig
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
	PreOrder  PreOrderConfig
	Sentry    SentryConfig
	Metrics   MetricsConfig
}

type AppConfig struct {
	Name string
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB

	// TrustedProxies lists addresses or CIDR ranges whose X-Forwarded-For
	// header is honored. Empty means the connection address is used as is.
	TrustedProxies []string
}

// TrustedProxyNets parses TrustedProxies. A bare address becomes a single
// host range.
func (c ServerConfig) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	Driver        string // sqlite, mongo
	DSN           string
	MongoURI      string
	MongoDatabase string
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical
	TokenSecret  string
	CookieName   string
	CookieSecure bool
	BcryptCost   int
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether outbound mail is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type RateLimitConfig struct {
	Requests  int
	Window    time.Duration
	RedisAddr string
}

type PreOrderConfig struct {
	Form        string // public, private
	Transitions string // lenient, strict
}

type SentryConfig struct {
	DSN         string
	Environment string
}

type MetricsConfig struct {
	Enabled bool
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		App: AppConfig{
			Name: cmd.String("app-name"),
		},
		Server: ServerConfig{
			Host:           cmd.String("host"),
			Port:           int(cmd.Int("port")),
			BaseURL:        cmd.String("base-url"),
			MaxBodySize:    int(cmd.Int("max-body-size")),
			TrustedProxies: cmd.StringSlice("trusted-proxies"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			Driver:        strings.ToLower(cmd.String("database-driver")),
			DSN:           cmd.String("database-dsn"),
			MongoURI:      cmd.String("mongo-uri"),
			MongoDatabase: cmd.String("mongo-database"),
		},
		Auth: AuthConfig{
			TokenSecret: cmd.String("token-secret"),
			CookieName:  cmd.String("cookie-name"),
			BcryptCost:  int(cmd.Int("bcrypt-cost")),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		RateLimit: RateLimitConfig{
			Requests:  int(cmd.Int("rate-limit-requests")),
			Window:    cmd.Duration("rate-limit-window"),
			RedisAddr: cmd.String("rate-limit-redis-addr"),
		},
		PreOrder: PreOrderConfig{
			Form:        strings.ToLower(cmd.String("preorder-form")),
			Transitions: strings.ToLower(cmd.String("order-transitions")),
		},
		Sentry: SentryConfig{
			DSN:         cmd.String("sentry-dsn"),
			Environment: cmd.String("sentry-environment"),
		},
		Metrics: MetricsConfig{
			Enabled: cmd.Bool("metrics"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	// Secure cookies follow the public scheme unless set explicitly.
	if cmd.IsSet("cookie-secure") {
		cfg.Auth.CookieSecure = cmd.Bool("cookie-secure")
	} else {
		cfg.Auth.CookieSecure = strings.HasPrefix(cfg.Server.BaseURL, "https://")
	}

	return cfg
}

// Validate checks option values that have a closed set of choices.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.PreOrder.Form {
	case FormPublic, FormPrivate:
	default:
		return fmt.Errorf("unknown pre-order form mode %q", c.PreOrder.Form)
	}

	switch c.PreOrder.Transitions {
	case TransitionsLenient, TransitionsStrict:
	default:
		return fmt.Errorf("unknown order transition policy %q", c.PreOrder.Transitions)
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit needs positive requests and window")
	}

	if _, err := c.Server.TrustedProxyNets(); err != nil {
		return err
	}

	if c.Auth.TokenSecret == "" && !IsLocalhost(c.Server.Host) {
		return fmt.Errorf("token secret is required when not running on localhost")
	}

	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	if port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	if port == 443 {
		return fmt.Sprintf("https://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "app-name",
			Value:   "AmbaToBuy",
			Usage:   "Application name used in emails",
			Sources: cli.NewValueSourceChain(cli.EnvVar("APP_NAME"), toml.TOML("app.name", configFile)),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL, used for links in emails",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "trusted-proxies",
			Usage:   "Proxy addresses or CIDR ranges allowed to set X-Forwarded-For",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TRUSTED_PROXIES"), toml.TOML("server.trusted_proxies", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-driver",
			Value:   DriverSQLite,
			Usage:   "Storage backend (sqlite, mongo)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DRIVER"), toml.TOML("database.driver", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "SQLite database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "mongo-uri",
			Value:   "mongodb://localhost:27017",
			Usage:   "MongoDB connection string",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MONGO_URI"), toml.TOML("database.mongo_uri", configFile)),
		},
		&cli.StringFlag{
			Name:    "mongo-database",
			Value:   "ambatobuy",
			Usage:   "MongoDB database name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MONGO_DATABASE"), toml.TOML("database.mongo_database", configFile)),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "Secret for signing session tokens (random per process if empty on localhost)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_SECRET"), toml.TOML("auth.token_secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "cookie-name",
			Value:   "auth-token",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("COOKIE_NAME"), toml.TOML("auth.cookie_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "cookie-secure",
			Usage:   "Mark the session cookie Secure (defaults to true for https base URLs)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("COOKIE_SECURE"), toml.TOML("auth.cookie_secure", configFile)),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   12,
			Usage:   "bcrypt cost for password hashes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BCRYPT_COST"), toml.TOML("auth.bcrypt_cost", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (emails are only logged if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP (implicit TLS on port 465)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Rate limit flags
		&cli.IntFlag{
			Name:    "rate-limit-requests",
			Value:   30,
			Usage:   "Requests allowed per client and window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_LIMIT_REQUESTS"), toml.TOML("rate_limit.requests", configFile)),
		},
		&cli.DurationFlag{
			Name:    "rate-limit-window",
			Value:   time.Minute,
			Usage:   "Length of the fixed rate limit window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_LIMIT_WINDOW"), toml.TOML("rate_limit.window", configFile)),
		},
		&cli.StringFlag{
			Name:    "rate-limit-redis-addr",
			Usage:   "Redis address for a shared rate limit store (in-memory if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_LIMIT_REDIS_ADDR"), toml.TOML("rate_limit.redis_addr", configFile)),
		},
		// Pre-order flags
		&cli.StringFlag{
			Name:    "preorder-form",
			Value:   FormPublic,
			Usage:   "Who may submit pre-orders (public, private = admins only)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PREORDER_FORM"), toml.TOML("preorder.form", configFile)),
		},
		&cli.StringFlag{
			Name:    "order-transitions",
			Value:   TransitionsLenient,
			Usage:   "Admin status transition policy (lenient, strict)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ORDER_TRANSITIONS"), toml.TOML("preorder.transitions", configFile)),
		},
		// Observability flags
		&cli.StringFlag{
			Name:    "sentry-dsn",
			Usage:   "Sentry DSN (disabled if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SENTRY_DSN"), toml.TOML("sentry.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "sentry-environment",
			Value:   "development",
			Usage:   "Sentry environment name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SENTRY_ENVIRONMENT"), toml.TOML("sentry.environment", configFile)),
		},
		&cli.BoolFlag{
			Name:    "metrics",
			Value:   true,
			Usage:   "Expose Prometheus metrics on /metrics",
			Sources: cli.NewValueSourceChain(cli.EnvVar("METRICS"), toml.TOML("metrics.enabled", configFile)),
		},
	}
}
