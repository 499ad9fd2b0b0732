package service

import (
	"context"
	"log/slog"
	"time"
)

// Mailer delivers password reset codes.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string, ttl time.Duration) error
}

// LogMailer writes reset codes to the debug log instead of sending them.
// It is meant for development setups without a mail provider.
type LogMailer struct{}

func (LogMailer) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	slog.DebugContext(ctx, "password reset code issued", "email", email, "code", code, "expires_in", ttl)
	return nil
}
