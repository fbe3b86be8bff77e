package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/arklim/petclub-iam/internal/core/port"
)

var errWindow = errors.New("window must be positive")

// RateLimitStore keeps attempt timestamps per identifier in process memory.
// Idle identifiers expire after ttl.
type RateLimitStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

func NewRateLimitStore(ttl time.Duration) *RateLimitStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RateLimitStore{cache: gocache.New(ttl, ttl), ttl: ttl}
}

func (s *RateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := append(s.attempts(identifier), at)
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].Before(attempts[j]) })
	s.cache.Set(identifier, attempts, s.ttl)
	return nil
}

func (s *RateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errWindow
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(inWindow(s.attempts(identifier), window, reference)), nil
}

func (s *RateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errWindow
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.attempts(identifier)
	start := reference.Add(-window)
	kept := attempts[:0]
	for _, at := range attempts {
		if !at.Before(start) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		s.cache.Delete(identifier)
		return nil
	}
	s.cache.Set(identifier, kept, s.ttl)
	return nil
}

func (s *RateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errWindow
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	active := inWindow(s.attempts(identifier), window, reference)
	if len(active) == 0 {
		return time.Time{}, false, nil
	}
	return active[0], true, nil
}

// attempts returns a copy of the stored timestamps; callers hold mu.
func (s *RateLimitStore) attempts(identifier string) []time.Time {
	v, ok := s.cache.Get(identifier)
	if !ok {
		return nil
	}
	stored, _ := v.([]time.Time)
	return append([]time.Time(nil), stored...)
}

func inWindow(attempts []time.Time, window time.Duration, reference time.Time) []time.Time {
	start := reference.Add(-window)
	out := attempts[:0:0]
	for _, at := range attempts {
		if !at.Before(start) && !at.After(reference) {
			out = append(out, at)
		}
	}
	return out
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
