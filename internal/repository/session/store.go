// Package session keeps the single live refresh-token slot per user and the
// access-token blacklist on top of a key-value store.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
)

const blacklistedValue = "blacklisted"

// Config holds key namespaces and lifetimes.
type Config struct {
	SessionPrefix   string
	BlacklistPrefix string
	// SessionTTL should equal the refresh token lifetime.
	SessionTTL   time.Duration
	BlacklistTTL time.Duration
}

// Store is the authoritative record of which refresh token is live for each user.
type Store struct {
	kv  port.KeyValueStore
	cfg Config
}

func NewStore(kv port.KeyValueStore, cfg Config) *Store {
	if cfg.SessionPrefix == "" {
		cfg.SessionPrefix = "auth:session"
	}
	if cfg.BlacklistPrefix == "" {
		cfg.BlacklistPrefix = "auth:blacklist"
	}
	if cfg.BlacklistTTL <= 0 {
		cfg.BlacklistTTL = 24 * time.Hour
	}
	return &Store{kv: kv, cfg: cfg}
}

// Insert makes refreshTokenID the live token for userID, replacing any previous one.
func (s *Store) Insert(ctx context.Context, userID, refreshTokenID string) error {
	if err := s.kv.Set(ctx, s.sessionKey(userID), refreshTokenID, s.cfg.SessionTTL); err != nil {
		return fmt.Errorf("session insert: %w", err)
	}
	return nil
}

// Validate succeeds only when refreshTokenID is the live token for userID.
// A missing or different record yields domain.ErrInvalidatedRefreshToken.
func (s *Store) Validate(ctx context.Context, userID, refreshTokenID string) (bool, error) {
	stored, ok, err := s.kv.Get(ctx, s.sessionKey(userID))
	if err != nil {
		return false, fmt.Errorf("session validate: %w", err)
	}
	if !ok || stored != refreshTokenID {
		return false, domain.ErrInvalidatedRefreshToken
	}
	return true, nil
}

// Invalidate removes the live session for userID.
func (s *Store) Invalidate(ctx context.Context, userID string) error {
	if err := s.kv.Delete(ctx, s.sessionKey(userID)); err != nil {
		return fmt.Errorf("session invalidate: %w", err)
	}
	return nil
}

// AddToBlacklist rejects accessToken for the fixed blacklist TTL.
func (s *Store) AddToBlacklist(ctx context.Context, accessToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil
	}
	if err := s.kv.Set(ctx, s.blacklistKey(accessToken), blacklistedValue, s.cfg.BlacklistTTL); err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	return nil
}

func (s *Store) IsBlacklisted(ctx context.Context, accessToken string) (bool, error) {
	ok, err := s.kv.Exists(ctx, s.blacklistKey(strings.TrimSpace(accessToken)))
	if err != nil {
		return false, fmt.Errorf("blacklist check: %w", err)
	}
	return ok, nil
}

func (s *Store) sessionKey(userID string) string {
	return s.cfg.SessionPrefix + ":" + userID
}

func (s *Store) blacklistKey(token string) string {
	return s.cfg.BlacklistPrefix + ":" + token
}
