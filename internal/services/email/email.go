// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Service delivers verification codes and password reset tokens via SMTP.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
	appName string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL, appName string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		appName: appName,
	}, nil
}

// SendVerificationCode sends the 6-digit email verification code.
func (s *Service) SendVerificationCode(ctx context.Context, to, username, code string, resend bool) error {
	msg, err := s.VerificationMessage(ctx, to, username, code, resend)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// SendPasswordReset sends the password reset token together with a reset link.
func (s *Service) SendPasswordReset(ctx context.Context, to, username, token string) error {
	msg, err := s.ResetMessage(ctx, to, username, token)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// VerificationMessage builds the verification email without sending it.
func (s *Service) VerificationMessage(ctx context.Context, to, username, code string, resend bool) (*mail.Msg, error) {
	subjectID := "email_verification_subject"
	if resend {
		subjectID = "email_resend_subject"
	}
	data := map[string]any{
		"AppName":  s.appName,
		"Username": username,
		"Code":     code,
	}
	return s.compose(to, i18n.TData(ctx, subjectID, data), i18n.TData(ctx, "email_verification_body", data))
}

// ResetMessage builds the password reset email without sending it.
func (s *Service) ResetMessage(ctx context.Context, to, username, token string) (*mail.Msg, error) {
	data := map[string]any{
		"AppName":  s.appName,
		"Username": username,
		"Token":    token,
		"ResetURL": s.ResetURL(token),
	}
	return s.compose(to, i18n.TData(ctx, "email_reset_subject", data), i18n.TData(ctx, "email_reset_body", data))
}

// ResetURL returns the link embedded in password reset emails.
func (s *Service) ResetURL(token string) string {
	return s.baseURL + "/auth/reset-password?token=" + url.QueryEscape(token)
}

func (s *Service) compose(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}

// send delivers a message via SMTP using go-mail.
func (s *Service) send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
