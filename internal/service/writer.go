package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/metrics"
	"github.com/vedran77/chatwave/internal/repository"
)

// messageWriter persists a message and moves the conversation's latest
// message pointer. The two writes are not atomic; a failure between them
// leaves the pointer one message behind.
type messageWriter struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
}

func (w messageWriter) write(
	ctx context.Context,
	tmpl *domain.Message,
	conv *domain.Conversation,
	sender *domain.User,
	kind string,
) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Type:           tmpl.Type,
		ReadBy:         []uuid.UUID{},
		CreatedAt:      time.Now(),
	}
	if tmpl.Content != nil {
		content := *tmpl.Content
		msg.Content = &content
	}
	if tmpl.Media != nil {
		media := *tmpl.Media
		msg.Media = &media
	}

	if err := w.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	if err := w.convRepo.UpdateLatestMessage(ctx, conv.ID, msg.ID); err != nil {
		return nil, fmt.Errorf("updating latest message: %w", err)
	}

	latest := msg.ID
	conv.LatestMessageID = &latest
	conv.UpdatedAt = msg.CreatedAt

	msg.SenderName = sender.Name
	msg.SenderPic = sender.Pic
	msg.Conversation = conv

	metrics.MessagesDispatched.WithLabelValues(kind).Inc()
	return msg, nil
}
