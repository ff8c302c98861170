// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/database"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/repository"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of users created by NewTestUser.
const TestPassword = "password123"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// UserOption customises a user created by NewTestUser.
type UserOption func(*models.User)

// Unverified leaves the user unverified with the given pending code.
func Unverified(code string, expires time.Time) UserOption {
	return func(u *models.User) {
		u.IsVerified = false
		u.VerificationCode = &code
		u.VerificationExpires = &expires
	}
}

// Admin gives the user the admin role.
func Admin() UserOption {
	return func(u *models.User) {
		u.Role = models.RoleAdmin
	}
}

// NewTestUser creates a verified member with email <username>@example.com
// and password TestPassword.
func NewTestUser(t *testing.T, repo *repository.Repository, username string, opts ...UserOption) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleMember,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(user)
	}

	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

// Now returns the current instant and advances the clock by a millisecond so
// consecutive records get distinct timestamps.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(time.Millisecond)
	return now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SentMail is a message captured by Mailer.
type SentMail struct {
	Kind     string // verification, resend, reset
	To       string
	Username string
	Code     string
}

// Mailer records outgoing mail instead of sending it.
type Mailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

// SendVerificationCode records a verification message.
func (m *Mailer) SendVerificationCode(_ context.Context, to, username, code string, resend bool) error {
	kind := "verification"
	if resend {
		kind = "resend"
	}
	return m.record(SentMail{Kind: kind, To: to, Username: username, Code: code})
}

// SendPasswordReset records a reset message.
func (m *Mailer) SendPasswordReset(_ context.Context, to, username, token string) error {
	return m.record(SentMail{Kind: "reset", To: to, Username: username, Code: token})
}

func (m *Mailer) record(msg SentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Last returns the most recent message, or false if none was sent.
func (m *Mailer) Last() (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
