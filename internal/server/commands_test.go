// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/database"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/repository"
	"codeberg.org/oliverandrich/ambatobuy/internal/server"
	"codeberg.org/oliverandrich/ambatobuy/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func newCLI(out *bytes.Buffer) *cli.Command {
	return &cli.Command{
		Name:   "test",
		Writer: out,
		Flags:  config.Flags(),
		Commands: []*cli.Command{
			{
				Name:   "grant",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "email", Required: true}},
				Action: server.SetRole(models.RoleAdmin),
			},
			{Name: "up", Action: server.Migrate(server.MigrateUp)},
			{Name: "reset", Action: server.Migrate(server.MigrateReset)},
		},
	}
}

func TestSetRoleCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")
	db, err := database.Open(dsn)
	require.NoError(t, err)
	repo := repository.New(db)
	user := testutil.NewTestUser(t, repo, "erin")
	require.NoError(t, db.Close())

	var out bytes.Buffer
	err = newCLI(&out).Run(context.Background(),
		[]string{"test", "--database-dsn", dsn, "--bcrypt-cost", "4", "grant", "--email", "ERIN@example.com"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "erin@example.com is now admin")

	db, err = database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	got, err := repository.New(db).GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	err = newCLI(&out).Run(context.Background(),
		[]string{"test", "--database-dsn", dsn, "--bcrypt-cost", "4", "grant", "--email", "ghost@example.com"})
	assert.ErrorContains(t, err, "no user with email")
}

func TestMigrateCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")

	var out bytes.Buffer
	require.NoError(t, newCLI(&out).Run(context.Background(), []string{"test", "--database-dsn", dsn, "up"}))
	assert.Contains(t, out.String(), "schema version 2")

	out.Reset()
	require.NoError(t, newCLI(&out).Run(context.Background(), []string{"test", "--database-dsn", dsn, "reset"}))
	assert.Contains(t, out.String(), "schema version 0")

	err := newCLI(&out).Run(context.Background(), []string{"test", "--database-driver", "mongo", "up"})
	assert.Error(t, err)
}
