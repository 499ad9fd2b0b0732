package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository"
)

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

func (r *BlockRepo) Create(ctx context.Context, block *domain.Block) error {
	query := `
		INSERT INTO blocks (blocker_id, blocked_id, created_at)
		VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, block.BlockerID, block.BlockedID, block.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *BlockRepo) Delete(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`, blockerID, blockedID)
	return err
}

func (r *BlockRepo) Get(ctx context.Context, blockerID, blockedID uuid.UUID) (*domain.Block, error) {
	query := `
		SELECT blocker_id, blocked_id, created_at
		FROM blocks
		WHERE blocker_id = $1 AND blocked_id = $2`
	var b domain.Block
	err := r.pool.QueryRow(ctx, query, blockerID, blockedID).Scan(&b.BlockerID, &b.BlockedID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &b, err
}

func (r *BlockRepo) ListInvolving(ctx context.Context, userID uuid.UUID) ([]domain.Block, error) {
	query := `
		SELECT blocker_id, blocked_id, created_at
		FROM blocks
		WHERE blocker_id = $1 OR blocked_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		var b domain.Block
		if err := rows.Scan(&b.BlockerID, &b.BlockedID, &b.CreatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
