// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vinovest/sqlx"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate         = errors.New("duplicate record")
	ErrDuplicateEmail    = fmt.Errorf("%w: email", ErrDuplicate)
	ErrDuplicateUsername = fmt.Errorf("%w: username", ErrDuplicate)
)

// Repository is the SQLite-backed credential and order store.
type Repository struct {
	db *sqlx.DB
}

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// wrapError converts driver errors to repository errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		switch {
		case strings.Contains(msg, "users.email"):
			return ErrDuplicateEmail
		case strings.Contains(msg, "users.username"):
			return ErrDuplicateUsername
		default:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	return err
}

// requireAffected maps an update or delete that touched no rows to ErrNotFound.
func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
