// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/database"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	authsvc "codeberg.org/oliverandrich/ambatobuy/internal/services/auth"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/email"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/token"
	"github.com/urfave/cli/v3"
)

// Migration directions.
const (
	MigrateUp    = "up"
	MigrateDown  = "down"
	MigrateReset = "reset"
)

// SetRole returns a CLI action that gives the user named by --email the
// role.
func SetRole(role models.Role) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		logger := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		// No sessions are issued here; the key only satisfies the service.
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		tokens, err := token.NewService(secret, nil)
		if err != nil {
			return err
		}
		svc, err := authsvc.NewService(store, email.NewLogSender(logger), tokens, &cfg.Auth)
		if err != nil {
			return err
		}

		address := cmd.String("email")
		if err := svc.SetRole(ctx, address, role); err != nil {
			if errors.Is(err, apperr.NotFound("")) {
				return fmt.Errorf("no user with email %q", address)
			}
			return err
		}

		_, err = fmt.Fprintf(cmd.Root().Writer, "%s is now %s\n", authsvc.NormalizeEmail(address), role)
		return err
	}
}

// Migrate returns a CLI action that moves the SQLite schema in direction.
func Migrate(direction string) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		if cfg.Database.Driver != config.DriverSQLite {
			return fmt.Errorf("migrations only apply to the %s driver", config.DriverSQLite)
		}

		db, err := database.Connect(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()

		switch direction {
		case MigrateUp:
			err = database.RunMigrations(db.DB)
		case MigrateDown:
			err = database.MigrateDown(db.DB)
		case MigrateReset:
			err = database.MigrateReset(db.DB)
		default:
			err = fmt.Errorf("unknown migration direction %q", direction)
		}
		if err != nil {
			return err
		}

		version, err := database.MigrationVersion(db.DB)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.Root().Writer, "schema version %d\n", version)
		return err
	}
}
