package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository"
)

type ConversationService struct {
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
}

func NewConversationService(
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *ConversationService {
	return &ConversationService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

type CreateGroupInput struct {
	Name      string      `json:"name"`
	Users     []uuid.UUID `json:"users"`
	Broadcast bool        `json:"isBroadcast"`
}

// AccessDirect returns the one-to-one conversation between userID and
// otherID, creating it on first access.
func (s *ConversationService) AccessDirect(ctx context.Context, userID, otherID uuid.UUID) (*domain.Conversation, error) {
	if otherID == uuid.Nil {
		return nil, ErrUserIDRequired
	}
	if otherID == userID {
		return nil, ErrCannotChatSelf
	}

	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	conv, err := s.convRepo.FindOrCreateDirect(ctx, userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("resolving direct conversation: %w", err)
	}
	return conv, nil
}

// CreateGroup creates a group chat, or a broadcast list when
// input.Broadcast is set. The creator becomes admin and first participant.
func (s *ConversationService) CreateGroup(ctx context.Context, adminID uuid.UUID, input CreateGroupInput) (*domain.Conversation, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidData
	}

	participants := []uuid.UUID{adminID}
	seen := map[uuid.UUID]bool{adminID: true}
	for _, id := range input.Users {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, id)
	}
	if len(participants) < 3 {
		return nil, ErrGroupTooSmall
	}

	users, err := s.userRepo.GetByIDs(ctx, participants)
	if err != nil {
		return nil, fmt.Errorf("loading members: %w", err)
	}
	if len(users) != len(participants) {
		return nil, ErrUserNotFound
	}

	now := time.Now()
	admin := adminID
	conv := &domain.Conversation{
		ID:           uuid.New(),
		Name:         name,
		IsGroup:      true,
		IsBroadcast:  input.Broadcast,
		Participants: participants,
		AdminID:      &admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// ListForUser returns the user's conversations, most recently active first.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

// Messages returns the full history of a conversation in chronological
// order. Only participants may read it.
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID uuid.UUID) ([]domain.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrChatNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
