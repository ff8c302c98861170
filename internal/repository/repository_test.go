// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/repository"
	"codeberg.org/oliverandrich/ambatobuy/internal/testutil"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

func newMockRepo(t *testing.T) (*repository.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.New(sqlx.NewDb(db, "sqlite")), mock
}

func TestNew(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	assert.NotNil(t, repo)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestQueryErrorsPropagate(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT .* FROM pre_orders").WillReturnError(boom)

	_, err := repo.ListAllPreOrders(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecErrorsPropagate(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("disk I/O error")
	mock.ExpectExec("UPDATE pre_orders SET status").WillReturnError(boom)

	err := repo.UpdatePreOrderStatus(context.Background(), "id", "", models.StatusConfirmed, time.Now())

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowsAffectedZeroIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM pre_orders").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeletePreOrder(context.Background(), "id")

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueViolationIsDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"))

	err := repo.CreateUser(context.Background(), &models.User{ID: "x"})

	assert.ErrorIs(t, err, repository.ErrDuplicateUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}
