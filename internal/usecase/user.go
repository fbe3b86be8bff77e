package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// UserService serves read access to user records for the role-gated user routes.
type UserService struct {
	users port.UserRepository
}

func NewUserService(users port.UserRepository) *UserService {
	return &UserService{users: users}
}

// Get returns the user without its password hash or reset ticket. Ids that are
// not UUIDs cannot exist and are reported as not found without a lookup.
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.User{}, domain.NotFound("User not found")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.NotFound("User not found")
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return sanitize(*user), nil
}

// List pages through users newest first. limit is clamped to [1, 200].
func (s *UserService) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = sanitize(users[i])
	}
	return users, nil
}

func sanitize(u domain.User) domain.User {
	u.PasswordHash = ""
	u.ResetTicket = nil
	return u
}
