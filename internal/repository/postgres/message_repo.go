package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chatwave/internal/domain"
)

const messageSelect = `
	SELECT m.id, m.conversation_id, m.sender_id, m.content, m.media_url, m.media_type,
		m.type, m.read_by::text[], m.created_at, u.name, u.pic
	FROM messages m
	JOIN users u ON u.id = m.sender_id`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	var mediaURL, mediaKind *string
	if msg.Media != nil {
		mediaURL, mediaKind = &msg.Media.URL, &msg.Media.Kind
	}

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, media_url, media_type, type, read_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::uuid[], $9)`

	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content,
		mediaURL, mediaKind, msg.Type, uuidStrings(msg.ReadBy), msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, messageSelect+" WHERE m.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx,
		messageSelect+" WHERE m.conversation_id = $1 ORDER BY m.created_at ASC", conversationID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *MessageRepo) ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx,
		messageSelect+" WHERE m.conversation_id = $1 ORDER BY m.created_at DESC LIMIT $2",
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	var mediaURL, mediaKind *string
	var readBy []string
	if err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &mediaURL, &mediaKind,
		&m.Type, &readBy, &m.CreatedAt, &m.SenderName, &m.SenderPic,
	); err != nil {
		return nil, err
	}
	if mediaURL != nil {
		m.Media = &domain.Media{URL: *mediaURL}
		if mediaKind != nil {
			m.Media.Kind = *mediaKind
		}
	}
	ids, err := parseUUIDs(readBy)
	if err != nil {
		return nil, fmt.Errorf("parsing read_by: %w", err)
	}
	m.ReadBy = ids
	return &m, nil
}
