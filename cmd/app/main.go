// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"os"

	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/server"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	emailFlag := &cli.StringFlag{
		Name:     "email",
		Usage:    "Email address of the account",
		Required: true,
	}

	return &cli.Command{
		Name:    "ambatobuy",
		Usage:   "Pre-order storefront API",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Writer:  os.Stdout,
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:  "admin",
				Usage: "Manage the admin role",
				Commands: []*cli.Command{
					{
						Name:   "grant",
						Usage:  "Make a user an admin",
						Flags:  []cli.Flag{emailFlag},
						Action: server.SetRole(models.RoleAdmin),
					},
					{
						Name:   "revoke",
						Usage:  "Make an admin a regular member",
						Flags:  []cli.Flag{emailFlag},
						Action: server.SetRole(models.RoleMember),
					},
				},
			},
			{
				Name:  "migrate",
				Usage: "Manage the SQLite schema",
				Commands: []*cli.Command{
					{Name: server.MigrateUp, Usage: "Apply pending migrations", Action: server.Migrate(server.MigrateUp)},
					{Name: server.MigrateDown, Usage: "Roll back the last migration", Action: server.Migrate(server.MigrateDown)},
					{Name: server.MigrateReset, Usage: "Roll back all migrations", Action: server.Migrate(server.MigrateReset)},
				},
			},
		},
	}
}
