// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/i18n"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	authsvc "codeberg.org/oliverandrich/ambatobuy/internal/services/auth"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for authentication.
type AuthHandlers struct {
	auth     *authsvc.Service
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *authsvc.Service, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{auth: svc, sessions: sessions}
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	Role       models.Role `json:"role"`
	IsVerified bool        `json:"isVerified"`
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
	}
}

func userData(u *models.User) map[string]any {
	return map[string]any{"user": userResponse(u)}
}

// SignupRequest is the request body for POST /auth/signup.
type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup creates an account and signs the user in.
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.auth.Signup(c.Request().Context(), authsvc.SignupParams{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}

	h.sessions.Set(c, sess.Token, sess.TTL)
	return respond(c, http.StatusCreated, "signup_success", userData(sess.User))
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials. Unverified users get a short-lived cookie and a
// 403 telling the client to continue with email verification.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.sessions.Set(c, sess.Token, sess.TTL)

	if sess.NeedsVerification {
		return c.JSON(http.StatusForbidden, Envelope{
			Success: false,
			Message: i18n.T(c.Request().Context(), "needs_verification"),
			Data: map[string]any{
				"code":              apperr.CodeNeedsVerification,
				"needsVerification": true,
				"user":              userResponse(sess.User),
			},
		})
	}
	return respond(c, http.StatusOK, "login_success", userData(sess.User))
}

// Logout clears the session cookie. Tokens are not revoked server-side.
func (h *AuthHandlers) Logout(c echo.Context) error {
	h.sessions.Clear(c)
	return respond(c, http.StatusOK, "logout_success", nil)
}

// Me returns the current user as stored.
func (h *AuthHandlers) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user_retrieved", userData(user))
}

// VerifyEmailRequest is the request body for POST /auth/verify-email.
type VerifyEmailRequest struct {
	OTP flexString `json:"otp"`
}

// VerifyEmail confirms the email address with the mailed code.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req VerifyEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.auth.VerifyEmail(c.Request().Context(), user.ID, req.OTP.String())
	if err != nil {
		return err
	}
	if sess.AlreadyVerified {
		return respond(c, http.StatusOK, "already_verified", userData(sess.User))
	}

	h.sessions.Set(c, sess.Token, sess.TTL)
	return respond(c, http.StatusOK, "email_verified", userData(sess.User))
}

// ResendOTP mails a fresh verification code.
func (h *AuthHandlers) ResendOTP(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.auth.ResendOTP(c.Request().Context(), user.ID); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "otp_resent", nil)
}

// ForgotPasswordRequest is the request body for POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword answers with the same message whether or not the account
// exists.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "forgot_password_sent", nil)
}

// ResetPasswordRequest is the request body for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token           flexString `json:"token"`
	Password        string     `json:"password"`
	PasswordConfirm string     `json:"passwordConfirm"`
}

// ResetPassword sets a new password and signs the user in.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.auth.ResetPassword(c.Request().Context(), req.Token.String(), req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}

	h.sessions.Set(c, sess.Token, sess.TTL)
	return respond(c, http.StatusOK, "password_reset_success", userData(sess.User))
}
