package memory

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/arklim/petclub-iam/internal/core/port"
)

// KeyValueStore is a process-local port.KeyValueStore backed by go-cache.
// It is only suitable for single-instance deployments.
type KeyValueStore struct {
	cache *gocache.Cache
}

// NewKeyValueStore creates a store that sweeps expired keys every cleanupInterval.
func NewKeyValueStore(cleanupInterval time.Duration) *KeyValueStore {
	return &KeyValueStore{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *KeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	str, _ := v.(string)
	return str, true, nil
}

func (s *KeyValueStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("key must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *KeyValueStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *KeyValueStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.cache.Get(key)
	return ok, nil
}

var _ port.KeyValueStore = (*KeyValueStore)(nil)
