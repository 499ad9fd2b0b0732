package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error
	UpdatePic(ctx context.Context, id uuid.UUID, pic string, at time.Time) error
}

type PasswordResetRepository interface {
	// Upsert replaces any pending reset of the same user.
	Upsert(ctx context.Context, reset *domain.PasswordReset) error
	Get(ctx context.Context, userID uuid.UUID) (*domain.PasswordReset, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type BlockRepository interface {
	Create(ctx context.Context, block *domain.Block) error
	Delete(ctx context.Context, blockerID, blockedID uuid.UUID) error
	Get(ctx context.Context, blockerID, blockedID uuid.UUID) (*domain.Block, error)
	// ListInvolving returns every relation where userID is blocker or blocked.
	ListInvolving(ctx context.Context, userID uuid.UUID) ([]domain.Block, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// FindOrCreateDirect returns the unique non-group conversation between
	// the two users, creating it when absent. Concurrent callers for the same
	// pair observe the same conversation.
	FindOrCreateDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	UpdateLatestMessage(ctx context.Context, conversationID, messageID uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	// ListRecent returns up to limit messages, newest first.
	ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error)
}
