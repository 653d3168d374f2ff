package memory

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

// Store is a process-local ports.KeyValueStore with optional per-key expiry.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

type item struct {
	value     []byte
	expiresAt time.Time
}

var _ ports.KeyValueStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		items: make(map[string]item),
		now:   time.Now,
	}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, exists := s.items[key]
	if !exists {
		return nil, apperrors.ErrKeyNotFound
	}
	if !it.expiresAt.IsZero() && !s.now().Before(it.expiresAt) {
		return nil, apperrors.ErrKeyNotFound
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores a copy of value. A zero ttl never expires.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = it
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, it := range s.items {
		if !it.expiresAt.IsZero() && !now.Before(it.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// StartPurging runs Purge every interval until ctx is done.
func (s *Store) StartPurging(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Purge()
			case <-ctx.Done():
				return
			}
		}
	}()
}
