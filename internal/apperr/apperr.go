// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package apperr defines the error taxonomy shared by services and handlers.
// Services return *Error values; handlers translate them into JSON envelopes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how it is reported to clients.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindConflict
	KindNotFound
	KindRateLimit
	KindDependency
)

// Machine-readable codes returned in error envelopes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeConflict           = "CONFLICT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeNeedsVerification  = "NEEDS_VERIFICATION"
	CodeAlreadyVerified    = "ALREADY_VERIFIED"
	CodeNoCode             = "NO_CODE"
	CodeExpired            = "EXPIRED"
	CodeMismatch           = "MISMATCH"
	CodeInvalidOrExpired   = "INVALID_OR_EXPIRED"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL"
)

// Error is a classified application error. MessageID is a translation key
// resolved at the HTTP boundary with Data as template data.
type Error struct {
	Kind      Kind
	Code      string
	MessageID string
	Data      map[string]any
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.MessageID, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.MessageID)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code so callers can use errors.Is with the
// constructors below as targets.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Status maps the error kind onto an HTTP status code.
func (e *Error) Status() int {
	return StatusFor(e.Kind)
}

// StatusFor maps a kind onto an HTTP status code.
func StatusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithData returns a copy of e carrying template data.
func (e *Error) WithData(data map[string]any) *Error {
	cp := *e
	cp.Data = data
	return &cp
}

func Validation(messageID string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, MessageID: messageID}
}

func Conflict(messageID string) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, MessageID: messageID}
}

func Unauthenticated(messageID string) *Error {
	return &Error{Kind: KindAuthentication, Code: CodeUnauthenticated, MessageID: messageID}
}

func Forbidden(messageID string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeForbidden, MessageID: messageID}
}

func NotFound(messageID string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, MessageID: messageID}
}

// New builds an error with an explicit kind and code.
func New(kind Kind, code, messageID string) *Error {
	return &Error{Kind: kind, Code: code, MessageID: messageID}
}

// Dependency wraps a persistence or transport failure. The wrapped error is
// logged server-side and never shown to clients.
func Dependency(messageID string, err error) *Error {
	return &Error{Kind: KindDependency, Code: CodeInternal, MessageID: messageID, Err: err}
}

// From extracts an *Error from err. Unclassified errors become internal
// dependency errors.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Dependency("internal_error", err)
}
