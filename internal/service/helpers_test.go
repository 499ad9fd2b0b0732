package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository/memory"
)

func newUser(t *testing.T, store *memory.Store, name, email string) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{ID: uuid.New(), Name: name, Email: email, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Users.Create(context.Background(), u))
	return u
}

func newConversation(t *testing.T, store *memory.Store, broadcast bool, users ...*domain.User) *domain.Conversation {
	t.Helper()
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	now := time.Now()
	conv := &domain.Conversation{
		ID:           uuid.New(),
		Name:         domain.DirectConversationName,
		IsGroup:      broadcast || len(users) > 2,
		IsBroadcast:  broadcast,
		Participants: ids,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.Conversations.Create(context.Background(), conv))
	return conv
}

func block(t *testing.T, store *memory.Store, blocker, blocked *domain.User) {
	t.Helper()
	require.NoError(t, store.Blocks.Create(context.Background(), &domain.Block{
		BlockerID: blocker.ID,
		BlockedID: blocked.ID,
		CreatedAt: time.Now(),
	}))
}

func newDispatch(store *memory.Store) *DispatchService {
	return NewDispatchService(store.Blocks, store.Conversations, store.Messages, store.Users)
}
