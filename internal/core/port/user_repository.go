package port

import (
	"context"

	"github.com/arklim/petclub-iam/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	// SetResetTicket writes token and expiry together; a nil ticket clears both.
	SetResetTicket(ctx context.Context, id string, ticket *domain.PasswordResetTicket) error
	// ResetPassword stores the new hash and clears any reset ticket in one write.
	ResetPassword(ctx context.Context, id string, passwordHash string) error
	Ping(ctx context.Context) error
}
