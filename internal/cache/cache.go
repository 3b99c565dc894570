// Package cache provides the lookup-acceleration layer used by the auth
// pipeline (api-key records by key hash). Correctness never
// depends on cache state: every Store implementation is a pure
// fallback-to-source optimization, never the system of record.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Store is the cache abstraction shared by the in-memory and Redis-backed
// implementations.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type entry struct {
	value   []byte
	expires time.Time
}

// InMemoryStore is a process-local Store used in tests and as the fallback
// when no Redis endpoint is configured.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]entry
}

// NewInMemoryStore creates an empty in-memory cache.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]entry)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	s.data[key] = entry{value: value, expires: expires}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// GetJSON is a convenience wrapper that unmarshals the cached value into dst.
// Returns found=false if the key is absent or expired.
func GetJSON(ctx context.Context, s Store, key string, dst interface{}) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON is a convenience wrapper that marshals v before storing it.
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw, ttl)
}
