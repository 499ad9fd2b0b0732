package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/metrics"
	"github.com/vedran77/chatwave/internal/repository"
)

// Notifier pushes dispatched messages to connected clients.
type Notifier interface {
	NotifyDispatched(msgs []*domain.Message)
}

type DispatchService struct {
	blockRepo repository.BlockRepository
	convRepo  repository.ConversationRepository
	userRepo  repository.UserRepository
	writer    messageWriter
	notifier  Notifier
}

func NewDispatchService(
	blockRepo repository.BlockRepository,
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *DispatchService {
	return &DispatchService{
		blockRepo: blockRepo,
		convRepo:  convRepo,
		userRepo:  userRepo,
		writer:    messageWriter{messageRepo: messageRepo, convRepo: convRepo},
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *DispatchService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendInput struct {
	SenderID       uuid.UUID
	ConversationID uuid.UUID
	Content        string
	MediaURL       string
	MediaType      string
}

// Submit validates a send, applies blocking rules and persists the message.
// For broadcast conversations the message is also copied into the one-to-one
// conversation of every recipient that is not separated from the sender by a
// block. The first returned message always belongs to the target
// conversation; fan-out copies follow in participant order.
//
// Any store failure aborts the call. Messages already written by then stay
// persisted.
func (s *DispatchService) Submit(ctx context.Context, in SendInput) ([]*domain.Message, error) {
	msgs, err := s.submit(ctx, in)
	if err != nil {
		metrics.DispatchFailures.WithLabelValues(failureCode(err)).Inc()
		return nil, err
	}
	return msgs, nil
}

// Send is Submit followed by delivery through the notifier. It serves
// callers that are not connected to the gateway themselves.
func (s *DispatchService) Send(ctx context.Context, in SendInput) ([]*domain.Message, error) {
	msgs, err := s.Submit(ctx, in)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.NotifyDispatched(msgs)
	}
	return msgs, nil
}

// Record persists a message without blocking checks or fan-out. It is used
// for conversations with the bot participant.
func (s *DispatchService) Record(ctx context.Context, in SendInput) (*domain.Message, error) {
	tmpl, err := newTemplate(in)
	if err != nil {
		return nil, err
	}
	conv, sender, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.writer.write(ctx, tmpl, conv, sender, metrics.KindOrigin)
}

func (s *DispatchService) submit(ctx context.Context, in SendInput) ([]*domain.Message, error) {
	tmpl, err := newTemplate(in)
	if err != nil {
		return nil, err
	}

	conv, sender, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(sender.ID) {
		return nil, ErrNotParticipant
	}

	var blocks domain.BlockSet
	if conv.IsTwoParty() || conv.IsBroadcast {
		list, err := s.blockRepo.ListInvolving(ctx, sender.ID)
		if err != nil {
			return nil, fmt.Errorf("listing blocks: %w", err)
		}
		blocks = domain.NewBlockSet(sender.ID, list)
	}

	if conv.IsTwoParty() {
		if err := s.checkCounterpart(ctx, conv, sender.ID, blocks); err != nil {
			return nil, err
		}
	}

	origin, err := s.writer.write(ctx, tmpl, conv, sender, metrics.KindOrigin)
	if err != nil {
		return nil, err
	}
	results := []*domain.Message{origin}

	if !conv.IsBroadcast {
		return results, nil
	}

	for _, recipientID := range conv.Participants {
		if recipientID == sender.ID || blocks.Separated(recipientID) {
			continue
		}
		direct, err := s.convRepo.FindOrCreateDirect(ctx, sender.ID, recipientID)
		if err != nil {
			return nil, fmt.Errorf("resolving direct conversation: %w", err)
		}
		msg, err := s.writer.write(ctx, tmpl, direct, sender, metrics.KindFanout)
		if err != nil {
			return nil, err
		}
		results = append(results, msg)
	}

	return results, nil
}

func (s *DispatchService) resolve(ctx context.Context, in SendInput) (*domain.Conversation, *domain.User, error) {
	conv, err := s.convRepo.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, nil, ErrChatNotFound
	}

	sender, err := s.userRepo.GetByID(ctx, in.SenderID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading sender: %w", err)
	}
	if sender == nil {
		return nil, nil, ErrUserNotFound
	}
	return conv, sender, nil
}

func (s *DispatchService) checkCounterpart(ctx context.Context, conv *domain.Conversation, senderID uuid.UUID, blocks domain.BlockSet) error {
	counterpartID, ok := conv.Counterpart(senderID)
	if !ok {
		return ErrInvalidParticipants
	}
	counterpart, err := s.userRepo.GetByID(ctx, counterpartID)
	if err != nil {
		return fmt.Errorf("loading counterpart: %w", err)
	}
	if counterpart == nil {
		return ErrInvalidParticipants
	}

	if blocks.HasBlocked(counterpartID) {
		return errYouBlocked(counterpart.Name)
	}
	if blocks.IsBlockedBy(counterpartID) {
		return errBlockedYou(counterpart.Name)
	}
	return nil
}

// newTemplate validates the payload and returns the message fields shared
// by every copy of the send.
func newTemplate(in SendInput) (*domain.Message, error) {
	if in.ConversationID == uuid.Nil {
		return nil, ErrInvalidData
	}

	content := strings.TrimSpace(in.Content)
	mediaURL := strings.TrimSpace(in.MediaURL)
	hasContent, hasMedia := content != "", mediaURL != ""

	if !hasContent && !hasMedia {
		return nil, ErrInvalidData
	}

	tmpl := &domain.Message{Type: domain.MessageType(hasContent, hasMedia)}
	if hasContent {
		tmpl.Content = &content
	}
	if hasMedia {
		if !domain.IsMediaKind(in.MediaType) {
			return nil, ErrMediaKind
		}
		tmpl.Media = &domain.Media{URL: mediaURL, Kind: in.MediaType}
	}
	return tmpl, nil
}

func failureCode(err error) string {
	if code := CodeOf(err); code != "" {
		return string(code)
	}
	return "INTERNAL"
}
