package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chatwave/internal/domain"
)

// Participants are aggregated in insertion order so broadcast fan-out
// iterates recipients deterministically.
const conversationSelect = `
	SELECT c.id, c.name, c.is_group, c.is_broadcast, c.admin_id, c.latest_message_id,
		c.created_at, c.updated_at,
		ARRAY(
			SELECT p.user_id::text FROM conversation_participants p
			WHERE p.conversation_id = c.id
			ORDER BY p.position
		)
	FROM conversations c`

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var directKey *string
	if !conv.IsGroup && len(conv.Participants) == 2 {
		key := domain.DirectKey(conv.Participants[0], conv.Participants[1])
		directKey = &key
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, name, is_group, is_broadcast, admin_id, direct_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		conv.ID, conv.Name, conv.IsGroup, conv.IsBroadcast, conv.AdminID,
		directKey, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	if err := insertParticipants(ctx, tx, conv.ID, conv.Participants); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, conversationSelect+" WHERE c.id = $1", id)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return conv, err
}

// FindOrCreateDirect relies on the unique direct_key index: concurrent
// inserts for the same pair collapse onto a single row and the loser reads
// the winner's conversation.
func (r *ConversationRepo) FindOrCreateDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	key := domain.DirectKey(userA, userB)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (id, name, is_group, is_broadcast, direct_key, created_at, updated_at)
		VALUES ($1, $2, FALSE, FALSE, $3, $4, $4)
		ON CONFLICT (direct_key) DO NOTHING
		RETURNING id`,
		uuid.New(), domain.DirectConversationName, key, now,
	).Scan(&id)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if err := tx.Rollback(ctx); err != nil {
			return nil, err
		}
		row := r.pool.QueryRow(ctx, conversationSelect+" WHERE c.direct_key = $1", key)
		return scanConversation(row)
	case err != nil:
		return nil, fmt.Errorf("inserting direct conversation: %w", err)
	}

	if err := insertParticipants(ctx, tx, id, []uuid.UUID{userA, userB}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.Conversation{
		ID:           id,
		Name:         domain.DirectConversationName,
		Participants: []uuid.UUID{userA, userB},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := conversationSelect + `
		WHERE EXISTS (
			SELECT 1 FROM conversation_participants p
			WHERE p.conversation_id = c.id AND p.user_id = $1
		)
		ORDER BY c.updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) UpdateLatestMessage(ctx context.Context, conversationID, messageID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET latest_message_id = $2, updated_at = now() WHERE id = $1`,
		conversationID, messageID)
	return err
}

func insertParticipants(ctx context.Context, tx pgx.Tx, convID uuid.UUID, userIDs []uuid.UUID) error {
	for i, userID := range userIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, convID, userID, i)
		if err != nil {
			return fmt.Errorf("adding participant: %w", err)
		}
	}
	return nil
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	var participants []string
	if err := row.Scan(
		&c.ID, &c.Name, &c.IsGroup, &c.IsBroadcast, &c.AdminID, &c.LatestMessageID,
		&c.CreatedAt, &c.UpdatedAt, &participants,
	); err != nil {
		return nil, err
	}
	ids, err := parseUUIDs(participants)
	if err != nil {
		return nil, fmt.Errorf("parsing participants: %w", err)
	}
	c.Participants = ids
	return &c, nil
}
