package inflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
)

// redisStore defines the operations used by RedisRegistry.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	Exists(ctx context.Context, keys ...string) ([]bool, error)
	InFlightKey(scope, entityID, operation string) string
}

// RedisRegistry shares slots across desk replicas using SETNX + TTL with owner-checked release.
type RedisRegistry struct {
	client redisStore
	ttl    time.Duration
	logg   *logger.Logger
}

// NewRedisRegistry constructs a Redis-backed registry.
func NewRedisRegistry(client redisStore, ttl time.Duration, logg *logger.Logger) (*RedisRegistry, error) {
	if client == nil {
		return nil, errors.New("redis client required for inflight registry")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisRegistry{client: client, ttl: ttl, logg: logg}, nil
}

// Acquire takes the slot for key or fails with an in-flight error wrapping ErrBusy.
func (r *RedisRegistry) Acquire(ctx context.Context, scope string, key Key) (Release, error) {
	redisKey := r.client.InFlightKey(scope, key.EntityID, key.Op.String())
	owner := uuid.NewString()

	ok, err := r.client.SetNX(ctx, redisKey, owner, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, busyError(key)
	}

	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			if _, err := r.client.DelIfValue(ctx, redisKey, owner); err != nil && r.logg != nil {
				r.logg.Error(ctx, "failed to release inflight slot", err)
			}
		})
	}, nil
}

// Active reports which of keys currently hold a live slot.
func (r *RedisRegistry) Active(ctx context.Context, scope string, keys []Key) (map[Key]bool, error) {
	out := make(map[Key]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = r.client.InFlightKey(scope, key.EntityID, key.Op.String())
	}
	present, err := r.client.Exists(ctx, redisKeys...)
	if err != nil {
		return nil, fmt.Errorf("read inflight slots: %w", err)
	}
	for i, key := range keys {
		if i < len(present) && present[i] {
			out[key] = true
		}
	}
	return out, nil
}
