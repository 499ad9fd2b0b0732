package ws

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/repository"
)

// MembershipPolicy decides whether a connection may join a conversation room.
// Joining a room only grants typing relays; message delivery goes through
// personal rooms and is checked at dispatch time.
type MembershipPolicy interface {
	CanJoin(ctx context.Context, userID, conversationID uuid.UUID) (bool, error)
}

// OpenMembership admits every join.
type OpenMembership struct{}

func (OpenMembership) CanJoin(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

// ParticipantMembership admits only participants of an existing conversation.
type ParticipantMembership struct {
	convRepo repository.ConversationRepository
}

func NewParticipantMembership(convRepo repository.ConversationRepository) *ParticipantMembership {
	return &ParticipantMembership{convRepo: convRepo}
}

func (p *ParticipantMembership) CanJoin(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	conv, err := p.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return conv != nil && conv.HasParticipant(userID), nil
}
