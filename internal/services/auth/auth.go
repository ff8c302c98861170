// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements signup, login, email verification and password
// reset on top of a user store and stateless session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/repository"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/token"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// VerificationTTL is how long an email verification code is valid.
	VerificationTTL = 15 * time.Minute
	// ResetTTL is how long a password reset token is valid.
	ResetTTL = time.Hour
	// MinPasswordLength is counted in characters.
	MinPasswordLength = 6
	// maxPasswordBytes is the bcrypt input limit.
	maxPasswordBytes = 72
	// resetTokenAttempts bounds the search for an unused reset token.
	resetTokenAttempts = 5
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Auth events reported to the Recorder.
const (
	EventSignup          = "signup"
	EventLoginSuccess    = "login_success"
	EventLoginFailed     = "login_failed"
	EventLoginUnverified = "login_unverified"
	EventVerified        = "email_verified"
	EventOTPResent       = "otp_resent"
	EventResetRequested  = "reset_requested"
	EventPasswordReset   = "password_reset"
)

// UserStore is the credential persistence the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	SetVerificationCode(ctx context.Context, id, code string, expires, now time.Time) error
	MarkUserVerified(ctx context.Context, id string, now time.Time) error
	SetResetToken(ctx context.Context, id, token string, expires, now time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string, now time.Time) error
	SetUserRole(ctx context.Context, email string, role models.Role, now time.Time) error
}

// Mailer delivers verification codes and reset tokens.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, username, code string, resend bool) error
	SendPasswordReset(ctx context.Context, to, username, token string) error
}

// Recorder receives auth events, e.g. for metrics.
type Recorder interface {
	AuthEvent(event string)
}

type noopRecorder struct{}

func (noopRecorder) AuthEvent(string) {}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder reports auth events to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Session is the outcome of a flow that authenticates the caller.
type Session struct {
	User  *models.User
	Token string
	TTL   time.Duration
	// NeedsVerification is set when an unverified user logged in and only
	// received a pending token.
	NeedsVerification bool
	// AlreadyVerified is set when verification was a no-op. No token is issued.
	AlreadyVerified bool
}

// Service runs signup, login, email verification and password reset against a
// UserStore and issues session tokens.
type Service struct {
	store     UserStore
	mailer    Mailer
	tokens    *token.Service
	cost      int
	dummyHash []byte
	now       func() time.Time
	recorder  Recorder
}

// NewService creates the auth service.
func NewService(store UserStore, mailer Mailer, tokens *token.Service, cfg *config.AuthConfig, opts ...Option) (*Service, error) {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	// Compared against on unknown emails so login timing does not reveal
	// whether an account exists.
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	if err != nil {
		return nil, fmt.Errorf("creating dummy hash: %w", err)
	}

	s := &Service{
		store:     store,
		mailer:    mailer,
		tokens:    tokens,
		cost:      cost,
		dummyHash: dummy,
		now:       time.Now,
		recorder:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignupParams holds the signup form.
type SignupParams struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Validation("validation_password_too_short")
	}
	if len(password) > maxPasswordBytes {
		return apperr.Validation("validation_password_too_long")
	}
	if password != confirm {
		return apperr.Validation("validation_passwords_mismatch")
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

func (s *Service) issue(user *models.User, ttl time.Duration) (*Session, error) {
	signed, err := s.tokens.Issue(token.Identity{
		UserID:     user.ID,
		Email:      user.Email,
		Username:   user.Username,
		IsVerified: user.IsVerified,
	}, ttl)
	if err != nil {
		return nil, apperr.Dependency("internal_error", fmt.Errorf("issuing token: %w", err))
	}
	return &Session{User: user, Token: signed, TTL: ttl}, nil
}

func duplicateField(err error) (string, bool) {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return "email", true
	case errors.Is(err, repository.ErrDuplicateUsername):
		return "username", true
	case errors.Is(err, repository.ErrDuplicate):
		return "email", true
	}
	return "", false
}

func userExists(field string) error {
	return apperr.Conflict("user_exists").WithData(map[string]any{"Field": field})
}

// Signup creates an unverified account, mails a verification code and
// issues a full session token so the client can reach the verify page.
func (s *Service) Signup(ctx context.Context, p SignupParams) (*Session, error) {
	username := strings.TrimSpace(p.Username)
	email := NormalizeEmail(p.Email)

	if username == "" || email == "" || p.Password == "" || p.PasswordConfirm == "" {
		return nil, apperr.Validation("validation_all_fields_required")
	}
	if !emailPattern.MatchString(email) {
		return nil, apperr.Validation("validation_invalid_email")
	}
	if err := validatePassword(p.Password, p.PasswordConfirm); err != nil {
		return nil, err
	}

	existing, err := s.store.FindUserByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil:
		field := "username"
		if strings.EqualFold(existing.Email, email) {
			field = "email"
		}
		return nil, userExists(field)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Dependency("internal_error", fmt.Errorf("checking existing user: %w", err))
	}

	passwordHash, err := s.hash(p.Password)
	if err != nil {
		return nil, apperr.Dependency("internal_error", err)
	}
	code, err := NewCode()
	if err != nil {
		return nil, apperr.Dependency("internal_error", err)
	}

	now := s.now()
	expires := now.Add(VerificationTTL)
	user := &models.User{
		ID:                  uuid.NewString(),
		Username:            username,
		Email:               email,
		PasswordHash:        passwordHash,
		Role:                models.RoleMember,
		VerificationCode:    &code,
		VerificationExpires: &expires,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if field, ok := duplicateField(err); ok {
			return nil, userExists(field)
		}
		return nil, apperr.Dependency("internal_error", fmt.Errorf("creating user: %w", err))
	}

	// The code stays on file and can be resent, so delivery failure is not fatal.
	if err := s.mailer.SendVerificationCode(ctx, email, username, code, false); err != nil {
		slog.WarnContext(ctx, "signup_email_failed", "user_id", user.ID, "error", err)
	}

	s.recorder.AuthEvent(EventSignup)
	slog.InfoContext(ctx, "signup_success", "user_id", user.ID, "username", username)

	return s.issue(user, token.SessionTTL)
}

// Login checks credentials. Unverified users get a pending token and a
// session with NeedsVerification set.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("validation_email_password_required")
	}
	if !emailPattern.MatchString(email) {
		return nil, apperr.Validation("validation_invalid_email")
	}

	invalid := apperr.New(apperr.KindAuthentication, apperr.CodeInvalidCredentials, "invalid_credentials")

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.recorder.AuthEvent(EventLoginFailed)
			slog.WarnContext(ctx, "login_failed", "email", email, "reason", "user_not_found")
			return nil, invalid
		}
		return nil, apperr.Dependency("internal_error", fmt.Errorf("loading user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recorder.AuthEvent(EventLoginFailed)
		slog.WarnContext(ctx, "login_failed", "email", email, "reason", "invalid_password")
		return nil, invalid
	}

	if !user.IsVerified {
		session, err := s.issue(user, token.PendingTTL)
		if err != nil {
			return nil, err
		}
		session.NeedsVerification = true
		s.recorder.AuthEvent(EventLoginUnverified)
		slog.InfoContext(ctx, "login_unverified", "user_id", user.ID)
		return session, nil
	}

	s.recorder.AuthEvent(EventLoginSuccess)
	slog.InfoContext(ctx, "login_success", "user_id", user.ID)
	return s.issue(user, token.SessionTTL)
}

func (s *Service) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user_not_found")
		}
		return nil, apperr.Dependency("internal_error", fmt.Errorf("loading user: %w", err))
	}
	return user, nil
}

// VerifyEmail checks the submitted code for the user and marks the account
// verified. A wrong or expired code leaves the stored code in place.
func (s *Service) VerifyEmail(ctx context.Context, userID, otp string) (*Session, error) {
	otp = strings.TrimSpace(otp)
	if !ValidCodeFormat(otp) {
		return nil, apperr.Validation("validation_invalid_otp")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return &Session{User: user, AlreadyVerified: true}, nil
	}

	code, expires, ok := user.PendingVerificationCode()
	if !ok {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeNoCode, "no_verification_code")
	}

	now := s.now()
	if now.After(expires) {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeExpired, "verification_code_expired")
	}
	if !codesEqual(code, otp) {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeMismatch, "verification_code_mismatch")
	}

	if err := s.store.MarkUserVerified(ctx, user.ID, now); err != nil {
		return nil, apperr.Dependency("internal_error", fmt.Errorf("marking user verified: %w", err))
	}
	user.IsVerified = true
	user.VerificationCode = nil
	user.VerificationExpires = nil
	user.UpdatedAt = now

	s.recorder.AuthEvent(EventVerified)
	slog.InfoContext(ctx, "email_verified", "user_id", user.ID)

	return s.issue(user, token.SessionTTL)
}

// ResendOTP replaces the verification code and mails it. Delivery failure is
// an error since the user has no other code to fall back on.
func (s *Service) ResendOTP(ctx context.Context, userID string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return apperr.New(apperr.KindValidation, apperr.CodeAlreadyVerified, "already_verified")
	}

	code, err := NewCode()
	if err != nil {
		return apperr.Dependency("internal_error", err)
	}
	now := s.now()
	if err := s.store.SetVerificationCode(ctx, user.ID, code, now.Add(VerificationTTL), now); err != nil {
		return apperr.Dependency("internal_error", fmt.Errorf("storing verification code: %w", err))
	}

	if err := s.mailer.SendVerificationCode(ctx, user.Email, user.Username, code, true); err != nil {
		return apperr.Dependency("verification_email_failed", err)
	}

	s.recorder.AuthEvent(EventOTPResent)
	slog.InfoContext(ctx, "otp_resent", "user_id", user.ID)
	return nil
}

// ForgotPassword stores and mails a reset token if the account exists. The
// caller answers with the same generic message either way.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return apperr.Validation("validation_email_required")
	}
	if !emailPattern.MatchString(email) {
		return apperr.Validation("validation_invalid_email")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.InfoContext(ctx, "reset_requested_unknown_email")
			return nil
		}
		return apperr.Dependency("internal_error", fmt.Errorf("loading user: %w", err))
	}

	now := s.now()
	resetToken, err := s.newResetToken(ctx, user.ID, now)
	if err != nil {
		return err
	}
	if err := s.store.SetResetToken(ctx, user.ID, resetToken, now.Add(ResetTTL), now); err != nil {
		return apperr.Dependency("internal_error", fmt.Errorf("storing reset token: %w", err))
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, resetToken); err != nil {
		return apperr.Dependency("reset_email_failed", err)
	}

	s.recorder.AuthEvent(EventResetRequested)
	slog.InfoContext(ctx, "reset_requested", "user_id", user.ID)
	return nil
}

// newResetToken draws codes until one is not held by another account's
// active reset token, so a token always identifies a single user.
func (s *Service) newResetToken(ctx context.Context, userID string, now time.Time) (string, error) {
	for range resetTokenAttempts {
		code, err := NewCode()
		if err != nil {
			return "", apperr.Dependency("internal_error", err)
		}
		holder, err := s.store.GetUserByResetToken(ctx, code, now)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return code, nil
		case err != nil:
			return "", apperr.Dependency("internal_error", fmt.Errorf("checking reset token: %w", err))
		case holder.ID == userID:
			return code, nil
		}
	}
	return "", apperr.Dependency("internal_error", errors.New("no free reset token"))
}

// ResetPassword replaces the password of the user holding an unexpired reset
// token and starts a new session.
func (s *Service) ResetPassword(ctx context.Context, resetToken, password, confirm string) (*Session, error) {
	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" || password == "" || confirm == "" {
		return nil, apperr.Validation("validation_reset_fields_required")
	}
	if err := validatePassword(password, confirm); err != nil {
		return nil, err
	}

	invalid := apperr.New(apperr.KindValidation, apperr.CodeInvalidOrExpired, "invalid_or_expired_reset_token")

	now := s.now()
	user, err := s.store.GetUserByResetToken(ctx, resetToken, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, apperr.Dependency("internal_error", fmt.Errorf("loading user: %w", err))
	}

	passwordHash, err := s.hash(password)
	if err != nil {
		return nil, apperr.Dependency("internal_error", err)
	}
	if err := s.store.ResetPassword(ctx, user.ID, passwordHash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, apperr.Dependency("internal_error", fmt.Errorf("resetting password: %w", err))
	}
	user.PasswordHash = passwordHash
	user.ResetPasswordToken = nil
	user.ResetPasswordExpires = nil
	user.UpdatedAt = now

	s.recorder.AuthEvent(EventPasswordReset)
	slog.InfoContext(ctx, "password_reset", "user_id", user.ID)

	return s.issue(user, token.SessionTTL)
}

// Resolve verifies a session token and loads the current user record so role
// and verification changes take effect immediately.
func (s *Service) Resolve(ctx context.Context, raw string) (*models.User, error) {
	if raw == "" {
		return nil, apperr.Unauthenticated("authentication_required")
	}
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid_token")
	}
	return s.loadUser(ctx, claims.Subject)
}

// SetRole grants or revokes the admin role by email.
func (s *Service) SetRole(ctx context.Context, email string, role models.Role) error {
	email = NormalizeEmail(email)
	if err := s.store.SetUserRole(ctx, email, role, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("user_not_found")
		}
		return apperr.Dependency("internal_error", err)
	}
	slog.InfoContext(ctx, "role_changed", "email", email, "role", role)
	return nil
}
