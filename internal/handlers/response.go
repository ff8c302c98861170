// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/auth"
	"codeberg.org/oliverandrich/ambatobuy/internal/i18n"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"github.com/labstack/echo/v4"
)

// Envelope is the shape of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// respond writes a success envelope with a translated message.
func respond(c echo.Context, status int, messageID string, data any) error {
	return c.JSON(status, Envelope{
		Success: true,
		Message: i18n.T(c.Request().Context(), messageID),
		Data:    data,
	})
}

// fail writes an error envelope. data always carries the error code.
func fail(c echo.Context, status int, messageID, code string, extra map[string]any) error {
	data := map[string]any{"code": code}
	for k, v := range extra {
		data[lowerFirst(k)] = v
	}
	return c.JSON(status, Envelope{
		Success: false,
		Message: i18n.TData(c.Request().Context(), messageID, extra),
		Data:    data,
	})
}

func writeError(c echo.Context, err *apperr.Error) error {
	return fail(c, err.Status(), err.MessageID, err.Code, err.Data)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// bind decodes the request into req, reporting malformed bodies as
// validation errors.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("invalid_request_body")
	}
	return nil
}

// currentUser returns the user set by the authentication middleware.
func currentUser(c echo.Context) (*models.User, error) {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return nil, apperr.Unauthenticated("authentication_required")
	}
	return user, nil
}

// flexString accepts a JSON string or number, so a code may be sent either way.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}
