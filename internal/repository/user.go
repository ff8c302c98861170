// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/models"
)

const userColumns = `id, username, email, password_hash, role, is_verified,
	verification_code, verification_expires, reset_password_token, reset_password_expires,
	created_at, updated_at`

// CreateUser inserts a new user. Email and username clashes are reported as
// ErrDuplicateEmail and ErrDuplicateUsername.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (
		:id, :username, :email, :password_hash, :role, :is_verified,
		:verification_code, :verification_expires, :reset_password_token, :reset_password_expires,
		:created_at, :updated_at)`, user)
	return wrapError(err)
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// FindUserByEmailOrUsername returns any user holding either identifier.
func (r *Repository) FindUserByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE email = ? OR username = ? ORDER BY email = ? DESC LIMIT 1`,
		email, username, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByResetToken retrieves the user holding a password reset token that
// is still valid at now.
func (r *Repository) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users
		WHERE reset_password_token = ? AND reset_password_expires > ?`, token, now.UTC())
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// SetVerificationCode stores a new email verification code, replacing any
// previous one.
func (r *Repository) SetVerificationCode(ctx context.Context, id, code string, expires, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET verification_code = ?, verification_expires = ?, updated_at = ? WHERE id = ?`,
		code, expires, now, id))
}

// MarkUserVerified flags the user verified and clears the verification code.
func (r *Repository) MarkUserVerified(ctx context.Context, id string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = 1, verification_code = NULL, verification_expires = NULL, updated_at = ?
		WHERE id = ?`,
		now, id))
}

// SetResetToken stores a password reset token.
func (r *Repository) SetResetToken(ctx context.Context, id, token string, expires, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET reset_password_token = ?, reset_password_expires = ?, updated_at = ? WHERE id = ?`,
		token, expires.UTC(), now, id))
}

// ResetPassword replaces the password hash and consumes the reset token.
func (r *Repository) ResetPassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, reset_password_token = NULL, reset_password_expires = NULL, updated_at = ?
		WHERE id = ?`,
		passwordHash, now, id))
}

// SetUserRole assigns a role to the user with the given email.
func (r *Repository) SetUserRole(ctx context.Context, email string, role models.Role, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE email = ?`,
		role, now, email))
}
