package rates

import (
	"context"
	"time"

	"fxledger/internal/cache"
	"fxledger/internal/core"
)

// Store keeps authoritative tables between fetches.
type Store interface {
	// Get returns the table stored under key if it has not expired.
	Get(ctx context.Context, key string) (Table, bool, error)
	Set(ctx context.Context, key string, t Table, expiresAt time.Time) error
}

// StoreKey returns the key tables for base are stored under.
func StoreKey(base string) string {
	return "rates:" + core.NormalizeCurrency(base)
}

// MemoryStore is a Store backed by an in-process LRU cache.
type MemoryStore struct {
	cache *cache.LRUCache[Table]
}

// NewMemoryStore creates a MemoryStore holding at most size tables.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.NewLRUCache[Table](size, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Table, bool, error) {
	t, ok := s.cache.Get(key)
	return t, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, t Table, expiresAt time.Time) error {
	s.cache.SetWithExpiry(key, t, expiresAt)
	return nil
}

// CleanExpired lets a cache.Manager evict expired tables.
func (s *MemoryStore) CleanExpired() int { return s.cache.CleanExpired() }
