package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chatwave/internal/domain"
)

type PasswordResetRepo struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepo(pool *pgxpool.Pool) *PasswordResetRepo {
	return &PasswordResetRepo{pool: pool}
}

func (r *PasswordResetRepo) Upsert(ctx context.Context, reset *domain.PasswordReset) error {
	query := `
		INSERT INTO password_resets (user_id, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at`
	_, err := r.pool.Exec(ctx, query, reset.UserID, reset.CodeHash, reset.ExpiresAt, reset.CreatedAt)
	return err
}

func (r *PasswordResetRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.PasswordReset, error) {
	query := `
		SELECT user_id, code_hash, expires_at, created_at
		FROM password_resets
		WHERE user_id = $1`
	var p domain.PasswordReset
	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.CodeHash, &p.ExpiresAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &p, err
}

func (r *PasswordResetRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID)
	return err
}
