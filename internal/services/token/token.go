// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies signed session tokens. Tokens are HS256
// JWTs; validity depends only on signature and expiry.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// PendingTTL is the lifetime of a token issued to an unverified login.
	PendingTTL = time.Hour
	// SessionTTL is the lifetime of a regular session token.
	SessionTTL = 7 * 24 * time.Hour
)

// ErrInvalid is returned for malformed, forged or expired tokens.
var ErrInvalid = errors.New("invalid token")

// Identity is the user data carried in a token.
type Identity struct {
	UserID     string
	Email      string
	Username   string
	IsVerified bool
}

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Email      string `json:"email"`
	Username   string `json:"username"`
	IsVerified bool   `json:"isVerified"`
}

// Identity returns the identity encoded in the claims.
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:     c.Subject,
		Email:      c.Email,
		Username:   c.Username,
		IsVerified: c.IsVerified,
	}
}

// Service signs and verifies tokens with a shared secret.
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService creates a token service. now may be nil to use the wall clock.
func NewService(secret []byte, now func() time.Time) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{secret: secret, now: now}, nil
}

// Issue signs a token for id that expires after ttl.
func (s *Service) Issue(id Identity, ttl time.Duration) (string, error) {
	issuedAt := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Email:      id.Email,
		Username:   id.Username,
		IsVerified: id.IsVerified,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry. Every failure is reported as ErrInvalid.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
