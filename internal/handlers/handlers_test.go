// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/handlers"
	"codeberg.org/oliverandrich/ambatobuy/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func decode(t *testing.T, rec *httptest.ResponseRecorder) handlers.Envelope {
	t.Helper()
	var env handlers.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func dataOf(t *testing.T, env handlers.Envelope) map[string]any {
	t.Helper()
	data, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return data
}

func TestHealth(t *testing.T) {
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodGet, "/health", nil)
	require.NoError(t, handlers.New(pinger{}).Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "ok", dataOf(t, env)["status"])

	c, rec = testutil.NewEchoContext(e, http.MethodGet, "/health", nil)
	require.NoError(t, handlers.New(pinger{err: errors.New("down")}).Health(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env = decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "UNAVAILABLE", dataOf(t, env)["code"])
}

func TestProducts(t *testing.T) {
	e := echo.New()
	c, rec := testutil.NewEchoContext(e, http.MethodGet, "/products", nil)
	require.NoError(t, handlers.New(pinger{}).Products(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":12000`)
	products := dataOf(t, decode(t, rec))["products"].([]any)
	assert.Len(t, products, 4)
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", apperr.Validation("validation_invalid_email"), http.StatusBadRequest, apperr.CodeValidation, "Please provide a valid email address"},
		{"conflict with data", apperr.Conflict("user_exists").WithData(map[string]any{"Field": "email"}), http.StatusConflict, apperr.CodeConflict, "User with this email already exists"},
		{"unknown route", echo.ErrNotFound, http.StatusNotFound, apperr.CodeNotFound, ""},
		{"method not allowed", echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", ""},
		{"body too large", echo.ErrStatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge, apperr.CodeValidation, ""},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperr.CodeInternal, ""},
		{"dependency", apperr.Dependency("internal_error", errors.New("db gone")), http.StatusInternalServerError, apperr.CodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reported []error
			h := handlers.ErrorHandler(func(_ echo.Context, err error) { reported = append(reported, err) })

			c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/x", nil)
			h(tt.err, c)

			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, dataOf(t, env)["code"])
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Message)
			}
			assert.NotContains(t, rec.Body.String(), "db gone")

			if tt.status >= http.StatusInternalServerError {
				assert.Len(t, reported, 1)
			} else {
				assert.Empty(t, reported)
			}
		})
	}
}

func TestErrorHandler_ConflictDataKeysAreLowercased(t *testing.T) {
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/x", nil)
	err := apperr.New(apperr.KindConflict, apperr.CodeInvalidTransition, "invalid_transition").
		WithData(map[string]any{"From": "completed", "To": "pending"})
	handlers.ErrorHandler(nil)(err, c)

	data := dataOf(t, decode(t, rec))
	assert.Equal(t, "completed", data["from"])
	assert.Equal(t, "pending", data["to"])
}

func TestErrorHandler_HeadAndCommitted(t *testing.T) {
	h := handlers.ErrorHandler(nil)

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodHead, "/x", nil)
	h(echo.ErrNotFound, c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	c, rec = testutil.NewEchoContext(echo.New(), http.MethodGet, "/x", nil)
	require.NoError(t, c.String(http.StatusTeapot, "done"))
	h(errors.New("late"), c)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "done", rec.Body.String())
}

func TestFlexibleCodes(t *testing.T) {
	tests := []struct {
		body     string
		expected string
	}{
		{`{"otp":"123456"}`, "123456"},
		{`{"otp":123456}`, "123456"},
		{`{"otp":" 123456 "}`, "123456"},
		{`{"otp":null}`, ""},
		{`{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req handlers.VerifyEmailRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.expected, req.OTP.String())
		})
	}

	var req handlers.VerifyEmailRequest
	assert.Error(t, json.Unmarshal([]byte(`{"otp":[1]}`), &req))
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	e := echo.New()
	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/auth/forgot-password", strings.NewReader("{not json"))

	err := handlers.NewAuth(nil, nil).ForgotPassword(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.Validation(""))
}
