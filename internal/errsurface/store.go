package errsurface

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultTTL = 24 * time.Hour

// Store keeps the last failure message per entity (line item id, or order id for tracking),
// partitioned by actor scope. A message lives until the same entity dispatches again or the
// user dismisses it.
type Store interface {
	Set(ctx context.Context, scope, entityID, message string) error
	Clear(ctx context.Context, scope, entityID string) error
	All(ctx context.Context, scope string) (map[string]string, error)
}

type scopeEntries struct {
	messages map[string]string
	touched  time.Time
}

// MemoryStore holds error messages in process memory. A scope nobody wrote to for the TTL is
// dropped as a whole.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	scopes map[string]*scopeEntries
}

// NewMemoryStore constructs an in-process error surface.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{
		ttl:    ttl,
		now:    time.Now,
		scopes: make(map[string]*scopeEntries),
	}
}

func (s *MemoryStore) Set(_ context.Context, scope, entityID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.live(scope)
	if entries == nil {
		entries = &scopeEntries{messages: make(map[string]string)}
		s.scopes[scope] = entries
	}
	entries.messages[entityID] = message
	entries.touched = s.now()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, scope, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entries := s.live(scope); entries != nil {
		delete(entries.messages, entityID)
	}
	return nil
}

func (s *MemoryStore) All(_ context.Context, scope string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	if entries := s.live(scope); entries != nil {
		for id, msg := range entries.messages {
			out[id] = msg
		}
	}
	return out, nil
}

// live returns the scope entries unless they expired; callers hold the lock.
func (s *MemoryStore) live(scope string) *scopeEntries {
	entries, ok := s.scopes[scope]
	if !ok {
		return nil
	}
	if s.now().Sub(entries.touched) > s.ttl {
		delete(s.scopes, scope)
		return nil
	}
	return entries
}

// redisStore defines the operations used by RedisStore.
type redisStore interface {
	HSetWithTTL(ctx context.Context, key, field, value string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	ErrorsKey(scope string) string
}

// RedisStore keeps one hash per scope; every write slides the hash TTL.
type RedisStore struct {
	client redisStore
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed error surface.
func NewRedisStore(client redisStore, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required for error surface")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Set(ctx context.Context, scope, entityID, message string) error {
	if err := s.client.HSetWithTTL(ctx, s.client.ErrorsKey(scope), entityID, message, s.ttl); err != nil {
		return fmt.Errorf("record error: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, scope, entityID string) error {
	if err := s.client.HDel(ctx, s.client.ErrorsKey(scope), entityID); err != nil {
		return fmt.Errorf("clear error: %w", err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context, scope string) (map[string]string, error) {
	all, err := s.client.HGetAll(ctx, s.client.ErrorsKey(scope))
	if err != nil {
		return nil, fmt.Errorf("read errors: %w", err)
	}
	if all == nil {
		all = map[string]string{}
	}
	return all, nil
}
