// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"log/slog"
)

// LogSender stands in for SMTP delivery when no mail host is configured.
// Codes are written to the log so local accounts can still be verified.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// SendVerificationCode logs the verification code.
func (l *LogSender) SendVerificationCode(ctx context.Context, to, username, code string, resend bool) error {
	l.logger.InfoContext(ctx, "email_not_sent",
		"kind", "verification",
		"to", to,
		"username", username,
		"code", code,
		"resend", resend,
	)
	return nil
}

// SendPasswordReset logs the reset token.
func (l *LogSender) SendPasswordReset(ctx context.Context, to, username, token string) error {
	l.logger.InfoContext(ctx, "email_not_sent",
		"kind", "password_reset",
		"to", to,
		"username", username,
		"token", token,
	)
	return nil
}
