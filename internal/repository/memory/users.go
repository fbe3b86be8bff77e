package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/repository"
)

// UserRepository keeps users in a map guarded by a mutex. Emails are unique.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(user.Email)
	if _, taken := r.byEmail[email]; taken {
		return repository.ErrConflict
	}
	if _, taken := r.byID[user.ID]; taken {
		return repository.ErrConflict
	}

	now := r.now().UTC()
	user.Email = email
	user.CreatedAt, user.UpdatedAt = now, now
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[email] = user.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(r.byID[id])
	return &out, nil
}

// List returns users newest first.
func (r *UserRepository) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	r.mu.RLock()
	users := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, cloneUser(u))
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	if offset >= len(users) {
		return []domain.User{}, nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}

func (r *UserRepository) SetResetTicket(_ context.Context, id string, ticket *domain.PasswordResetTicket) error {
	return r.update(id, func(u *domain.User) {
		if ticket == nil {
			u.ResetTicket = nil
			return
		}
		t := *ticket
		u.ResetTicket = &t
	})
}

func (r *UserRepository) ResetPassword(_ context.Context, id string, passwordHash string) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.ResetTicket = nil
	})
}

func (r *UserRepository) Ping(context.Context) error { return nil }

func (r *UserRepository) update(id string, mutate func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	mutate(&u)
	u.UpdatedAt = r.now().UTC()
	r.byID[id] = u
	return nil
}

func cloneUser(u domain.User) domain.User {
	if u.ResetTicket != nil {
		t := *u.ResetTicket
		u.ResetTicket = &t
	}
	return u
}

var _ port.UserRepository = (*UserRepository)(nil)
