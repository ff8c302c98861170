// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session carries the signed session token in an HTTP-only cookie.
// There is no server-side session state.
package session

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"github.com/labstack/echo/v4"
)

// Manager sets, reads and clears the session cookie.
type Manager struct {
	name   string
	secure bool
}

// NewManager creates a cookie manager from the auth configuration.
func NewManager(cfg *config.AuthConfig) *Manager {
	name := cfg.CookieName
	if name == "" {
		name = "auth-token"
	}
	return &Manager{name: name, secure: cfg.CookieSecure}
}

// Name returns the cookie name.
func (m *Manager) Name() string {
	return m.name
}

// Set stores token in the cookie for ttl.
func (m *Manager) Set(c echo.Context, token string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     m.name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the cookie.
func (m *Manager) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read returns the token from the request cookie, or "" if absent.
func (m *Manager) Read(c echo.Context) string {
	cookie, err := c.Cookie(m.name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
