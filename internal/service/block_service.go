package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository"
)

type BlockService struct {
	blockRepo repository.BlockRepository
	userRepo  repository.UserRepository
}

func NewBlockService(blockRepo repository.BlockRepository, userRepo repository.UserRepository) *BlockService {
	return &BlockService{blockRepo: blockRepo, userRepo: userRepo}
}

type BlockStatus struct {
	UserID    uuid.UUID `json:"userId"`
	IsBlocked bool      `json:"isBlocked"`
}

// Toggle blocks targetID when blockerID has not blocked them yet and
// unblocks otherwise. It returns the resulting state.
func (s *BlockService) Toggle(ctx context.Context, blockerID, targetID uuid.UUID) (*BlockStatus, error) {
	if targetID == uuid.Nil {
		return nil, ErrUserIDRequired
	}
	if targetID == blockerID {
		return nil, ErrCannotBlockSelf
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	existing, err := s.blockRepo.Get(ctx, blockerID, targetID)
	if err != nil {
		return nil, fmt.Errorf("loading block: %w", err)
	}

	if existing != nil {
		if err := s.blockRepo.Delete(ctx, blockerID, targetID); err != nil {
			return nil, fmt.Errorf("deleting block: %w", err)
		}
		return &BlockStatus{UserID: targetID, IsBlocked: false}, nil
	}

	block := &domain.Block{BlockerID: blockerID, BlockedID: targetID, CreatedAt: time.Now()}
	if err := s.blockRepo.Create(ctx, block); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("creating block: %w", err)
	}
	return &BlockStatus{UserID: targetID, IsBlocked: true}, nil
}

// Status reports whether blockerID has blocked targetID.
func (s *BlockService) Status(ctx context.Context, blockerID, targetID uuid.UUID) (*BlockStatus, error) {
	if targetID == uuid.Nil {
		return nil, ErrUserIDRequired
	}
	existing, err := s.blockRepo.Get(ctx, blockerID, targetID)
	if err != nil {
		return nil, fmt.Errorf("loading block: %w", err)
	}
	return &BlockStatus{UserID: targetID, IsBlocked: existing != nil}, nil
}

func (s *BlockService) ListInvolving(ctx context.Context, userID uuid.UUID) ([]domain.Block, error) {
	blocks, err := s.blockRepo.ListInvolving(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing blocks: %w", err)
	}
	if blocks == nil {
		blocks = []domain.Block{}
	}
	return blocks, nil
}
