package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/metrics"
	"github.com/vedran77/chatwave/internal/repository"
)

const (
	// FallbackReply is stored when every generation attempt failed.
	FallbackReply = "I'm currently unavailable. Try again later!"
	// EmptyReplyPlaceholder replaces an empty generation result.
	EmptyReplyPlaceholder = "The response was too long to display. Please try a shorter question."
)

// Generator produces the bot's next reply from role-tagged history and the
// new prompt.
type Generator interface {
	Generate(ctx context.Context, history []domain.ChatTurn, prompt string, maxTokens int) (string, error)
}

// RetryPolicy bounds how often a failed generation is retried. MaxRetries
// counts retries after the first attempt. A zero AttemptTimeout leaves each
// attempt bounded only by the caller's context.
type RetryPolicy struct {
	MaxRetries     int
	Delay          time.Duration
	AttemptTimeout time.Duration
}

type ResponderConfig struct {
	HistoryLimit int
	MaxTokens    int
	Retry        RetryPolicy
}

func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		HistoryLimit: 20,
		MaxTokens:    2000,
		Retry:        RetryPolicy{MaxRetries: 3, Delay: 3 * time.Second, AttemptTimeout: 30 * time.Second},
	}
}

type ResponderService struct {
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	writer      messageWriter
	generator   Generator
	cfg         ResponderConfig
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewResponderService(
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	generator Generator,
	cfg ResponderConfig,
) *ResponderService {
	return &ResponderService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		writer:      messageWriter{messageRepo: messageRepo, convRepo: convRepo},
		generator:   generator,
		cfg:         cfg,
		sleep:       sleepContext,
	}
}

// Respond generates and persists the bot's reply to prompt in a two-party
// conversation between senderID and the bot. Generation failures never
// surface: after the retries run out the fallback reply is stored instead.
// Only store failures are returned.
func (s *ResponderService) Respond(ctx context.Context, prompt string, senderID, conversationID uuid.UUID) (*domain.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrChatNotFound
	}

	botID, ok := conv.Counterpart(senderID)
	if !ok {
		return nil, ErrInvalidParticipants
	}
	bot, err := s.userRepo.GetByID(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("loading bot: %w", err)
	}
	if bot == nil {
		return nil, ErrInvalidParticipants
	}

	history, err := s.history(ctx, conversationID, senderID, prompt)
	if err != nil {
		return nil, err
	}

	reply := s.generate(ctx, history, prompt)
	tmpl := &domain.Message{Content: &reply, Type: domain.MessageTypeText}
	return s.writer.write(ctx, tmpl, conv, bot, metrics.KindBot)
}

// history returns the recent conversation in chronological order. Messages
// by senderID are user turns, everything else is the assistant. The prompt
// itself is usually already stored as the newest message, so a trailing
// copy of it is dropped to avoid sending it twice.
func (s *ResponderService) history(ctx context.Context, conversationID, senderID uuid.UUID, prompt string) ([]domain.ChatTurn, error) {
	recent, err := s.messageRepo.ListRecent(ctx, conversationID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	turns := make([]domain.ChatTurn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Content == nil || *m.Content == "" {
			continue
		}
		role := domain.RoleAssistant
		if m.SenderID == senderID {
			role = domain.RoleUser
		}
		turns = append(turns, domain.ChatTurn{Role: role, Content: *m.Content})
	}

	if n := len(turns); n > 0 && turns[n-1].Role == domain.RoleUser && turns[n-1].Content == strings.TrimSpace(prompt) {
		turns = turns[:n-1]
	}
	return turns, nil
}

func (s *ResponderService) generate(ctx context.Context, history []domain.ChatTurn, prompt string) string {
	policy := s.cfg.Retry

	for attempt := 0; ; attempt++ {
		text, err := s.attempt(ctx, history, prompt)
		if err == nil {
			metrics.GenerationAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
			if strings.TrimSpace(text) == "" {
				return EmptyReplyPlaceholder
			}
			return text
		}

		metrics.GenerationAttempts.WithLabelValues(metrics.OutcomeFailure).Inc()
		slog.Warn("generation attempt failed", "attempt", attempt+1, "error", err)

		if attempt >= policy.MaxRetries {
			break
		}
		if err := s.sleep(ctx, policy.Delay); err != nil {
			break
		}
	}

	metrics.BotFallbacks.Inc()
	return FallbackReply
}

func (s *ResponderService) attempt(ctx context.Context, history []domain.ChatTurn, prompt string) (string, error) {
	if s.cfg.Retry.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Retry.AttemptTimeout)
		defer cancel()
	}
	return s.generator.Generate(ctx, history, prompt, s.cfg.MaxTokens)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
