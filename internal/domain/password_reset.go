package domain

import (
	"time"

	"github.com/google/uuid"
)

// PasswordReset is a pending one-time code for resetting a user's password.
// Only the hash of the code is stored. A user has at most one.
type PasswordReset struct {
	UserID    uuid.UUID
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (p *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
