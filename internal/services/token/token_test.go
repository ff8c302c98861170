// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token_test

import (
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/services/token"
	"codeberg.org/oliverandrich/ambatobuy/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret-0123456789")

func TestNewService_RequiresSecret(t *testing.T) {
	_, err := token.NewService(nil, nil)
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	clock := testutil.NewClock()
	svc, err := token.NewService(secret, clock.Now)
	require.NoError(t, err)

	identities := []token.Identity{
		{UserID: "u1", Email: "bob@x.com", Username: "bob", IsVerified: false},
		{UserID: "u2", Email: "alice@example.com", Username: "alice", IsVerified: true},
		{UserID: "3f1c", Email: "", Username: "", IsVerified: true},
	}

	for _, id := range identities {
		for _, ttl := range []time.Duration{token.PendingTTL, token.SessionTTL} {
			signed, err := svc.Issue(id, ttl)
			require.NoError(t, err)

			claims, err := svc.Verify(signed)
			require.NoError(t, err)
			assert.Equal(t, id, claims.Identity())
			assert.NotEmpty(t, claims.ID)
		}
	}
}

func TestVerify_Expiry(t *testing.T) {
	clock := testutil.NewClock()
	svc, err := token.NewService(secret, clock.Now)
	require.NoError(t, err)

	signed, err := svc.Issue(token.Identity{UserID: "u1"}, token.PendingTTL)
	require.NoError(t, err)

	clock.Advance(token.PendingTTL - time.Second)
	_, err = svc.Verify(signed)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, token.ErrInvalid)
}

func TestVerify_Invalid(t *testing.T) {
	svc, err := token.NewService(secret, nil)
	require.NoError(t, err)
	other, err := token.NewService([]byte("another-secret"), nil)
	require.NoError(t, err)

	forged, err := other.Issue(token.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	valid, err := svc.Issue(token.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString(secret)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"wrong secret":   forged,
		"tampered":       tampered,
		"alg none":       unsigned,
		"missing expiry": noExpiry,
	}

	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := svc.Verify(tok)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, token.ErrInvalid)
		})
	}
}
