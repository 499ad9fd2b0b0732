package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
)

type ConversationRepo struct {
	mu     sync.RWMutex
	convs  map[uuid.UUID]domain.Conversation
	direct map[string]uuid.UUID
}

func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{
		convs:  make(map[uuid.UUID]domain.Conversation),
		direct: make(map[string]uuid.UUID),
	}
}

func (r *ConversationRepo) Create(_ context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[conv.ID] = cloneConversation(*conv)
	return nil
}

func (r *ConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, nil
	}
	c = cloneConversation(c)
	return &c, nil
}

func (r *ConversationRepo) FindOrCreateDirect(_ context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.DirectKey(userA, userB)
	if id, ok := r.direct[key]; ok {
		c := cloneConversation(r.convs[id])
		return &c, nil
	}
	// Conversations created through Create are matched too, so a pair that
	// already talks is never duplicated.
	for _, c := range r.convs {
		if !c.IsGroup && len(c.Participants) == 2 && domain.DirectKey(c.Participants[0], c.Participants[1]) == key {
			r.direct[key] = c.ID
			c = cloneConversation(c)
			return &c, nil
		}
	}

	now := time.Now()
	conv := domain.Conversation{
		ID:           uuid.New(),
		Name:         domain.DirectConversationName,
		Participants: []uuid.UUID{userA, userB},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.convs[conv.ID] = conv
	r.direct[key] = conv.ID
	conv = cloneConversation(conv)
	return &conv, nil
}

func (r *ConversationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Conversation
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *ConversationRepo) UpdateLatestMessage(_ context.Context, conversationID, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return nil
	}
	id := messageID
	c.LatestMessageID = &id
	c.UpdatedAt = time.Now()
	r.convs[conversationID] = c
	return nil
}

// Count returns the number of stored conversations.
func (r *ConversationRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.convs)
}

func cloneConversation(c domain.Conversation) domain.Conversation {
	c.Participants = append([]uuid.UUID(nil), c.Participants...)
	return c
}
