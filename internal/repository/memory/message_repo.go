package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
)

type MessageRepo struct {
	mu       sync.RWMutex
	users    *UserRepo
	messages []domain.Message
}

// NewMessageRepo joins sender details from users when reading, like the SQL
// implementation does.
func NewMessageRepo(users *UserRepo) *MessageRepo {
	return &MessageRepo{users: users}
}

func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *msg
	stored.Conversation = nil
	stored.ReadBy = append([]uuid.UUID{}, msg.ReadBy...)
	r.messages = append(r.messages, stored)
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.messages {
		if m.ID == id {
			m = r.join(ctx, m)
			return &m, nil
		}
	}
	return nil, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, r.join(ctx, m))
		}
	}
	return out, nil
}

func (r *MessageRepo) ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Message
	for i := len(r.messages) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if r.messages[i].ConversationID == conversationID {
			out = append(out, r.join(ctx, r.messages[i]))
		}
	}
	return out, nil
}

// Count returns the number of stored messages.
func (r *MessageRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

func (r *MessageRepo) join(ctx context.Context, m domain.Message) domain.Message {
	m.ReadBy = append([]uuid.UUID{}, m.ReadBy...)
	if r.users == nil {
		return m
	}
	if u, _ := r.users.GetByID(ctx, m.SenderID); u != nil {
		m.SenderName = u.Name
		m.SenderPic = u.Pic
	}
	return m
}
