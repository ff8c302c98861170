// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Role gates access to admin endpoints.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is an account. Verification and reset fields are nil unless a code
// or token is outstanding.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                   string     `db:"id" json:"id"`
	Username             string     `db:"username" json:"username"`
	Email                string     `db:"email" json:"email"`
	PasswordHash         string     `db:"password_hash" json:"-"`
	Role                 Role       `db:"role" json:"role"`
	IsVerified           bool       `db:"is_verified" json:"isVerified"`
	VerificationCode     *string    `db:"verification_code" json:"-"`
	VerificationExpires  *time.Time `db:"verification_expires" json:"-"`
	ResetPasswordToken   *string    `db:"reset_password_token" json:"-"`
	ResetPasswordExpires *time.Time `db:"reset_password_expires" json:"-"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PendingVerificationCode returns the outstanding verification code and its
// expiry, or ok=false when none is on file.
func (u *User) PendingVerificationCode() (code string, expires time.Time, ok bool) {
	if u.VerificationCode == nil || *u.VerificationCode == "" {
		return "", time.Time{}, false
	}
	if u.VerificationExpires != nil {
		expires = *u.VerificationExpires
	}
	return *u.VerificationCode, expires, true
}
