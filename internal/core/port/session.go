package port

import (
	"context"

	"github.com/arklim/petclub-iam/internal/core/domain"
)

// SessionStore tracks the live refresh token per user and blacklisted access tokens.
type SessionStore interface {
	Insert(ctx context.Context, userID, refreshTokenID string) error
	Validate(ctx context.Context, userID, refreshTokenID string) (bool, error)
	Invalidate(ctx context.Context, userID string) error
	AddToBlacklist(ctx context.Context, accessToken string) error
	IsBlacklisted(ctx context.Context, accessToken string) (bool, error)
}

// TokenIssuer signs token pairs and verifies presented tokens.
type TokenIssuer interface {
	GenerateTokenPair(ctx context.Context, user domain.User) (domain.TokenPair, error)
	VerifyAccess(raw string) (*domain.ActiveUser, error)
	VerifyRefresh(raw string) (domain.RefreshIdentity, error)
}
