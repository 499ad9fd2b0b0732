package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository"
)

type UserRepo struct {
	mu    sync.RWMutex
	order []uuid.UUID
	users map[uuid.UUID]domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[uuid.UUID]domain.User)}
}

func (r *UserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	r.users[user.ID] = *user
	r.order = append(r.order, user.ID)
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) Search(_ context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	var out []domain.User
	for _, id := range r.order {
		if id == excludeID {
			continue
		}
		u := r.users[id]
		if q == "" || strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *UserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string, at time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = at
	})
}

func (r *UserRepo) UpdatePic(_ context.Context, id uuid.UUID, pic string, at time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.Pic = pic
		u.UpdatedAt = at
	})
}

func (r *UserRepo) update(id uuid.UUID, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	fn(&u)
	r.users[id] = u
	return nil
}
