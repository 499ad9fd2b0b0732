package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository"
)

type blockKey struct {
	blocker, blocked uuid.UUID
}

type BlockRepo struct {
	mu     sync.RWMutex
	blocks map[blockKey]domain.Block
	// lists counts ListInvolving calls, so tests can assert the registry was
	// never consulted.
	lists int
}

func NewBlockRepo() *BlockRepo {
	return &BlockRepo{blocks: make(map[blockKey]domain.Block)}
}

func (r *BlockRepo) Create(_ context.Context, block *domain.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := blockKey{block.BlockerID, block.BlockedID}
	if _, ok := r.blocks[key]; ok {
		return repository.ErrDuplicate
	}
	r.blocks[key] = *block
	return nil
}

func (r *BlockRepo) Delete(_ context.Context, blockerID, blockedID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blocks, blockKey{blockerID, blockedID})
	return nil
}

func (r *BlockRepo) Get(_ context.Context, blockerID, blockedID uuid.UUID) (*domain.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blocks[blockKey{blockerID, blockedID}]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BlockRepo) ListInvolving(_ context.Context, userID uuid.UUID) ([]domain.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	var out []domain.Block
	for _, b := range r.blocks {
		if b.BlockerID == userID || b.BlockedID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Lookups returns how many times ListInvolving has been called.
func (r *BlockRepo) Lookups() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lists
}
