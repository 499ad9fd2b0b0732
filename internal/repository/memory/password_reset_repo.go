package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
)

type PasswordResetRepo struct {
	mu     sync.RWMutex
	resets map[uuid.UUID]domain.PasswordReset
}

func NewPasswordResetRepo() *PasswordResetRepo {
	return &PasswordResetRepo{resets: make(map[uuid.UUID]domain.PasswordReset)}
}

func (r *PasswordResetRepo) Upsert(_ context.Context, reset *domain.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets[reset.UserID] = *reset
	return nil
}

func (r *PasswordResetRepo) Get(_ context.Context, userID uuid.UUID) (*domain.PasswordReset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.resets[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PasswordResetRepo) Delete(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resets, userID)
	return nil
}
