package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Pic          string    `json:"pic,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsBot reports whether the account is an automated participant. Bot
// accounts are recognised purely by their email suffix.
func (u *User) IsBot(suffix string) bool {
	if u == nil || suffix == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Email), strings.ToLower(suffix))
}
