package inflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
)

var cancelI1 = Key{EntityID: "I1", Op: enums.OperationCancelItem}

func TestMemoryRegistrySecondAcquireConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := NewMemoryRegistry(time.Minute)

	release, err := reg.Acquire(ctx, "seller:1", cancelI1)
	require.NoError(t, err)

	_, err = reg.Acquire(ctx, "seller:1", cancelI1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusy))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInFlight, typed.Code())

	// other operation, other entity and other scope are independent
	_, err = reg.Acquire(ctx, "seller:1", Key{EntityID: "I1", Op: enums.OperationAdvanceStatus})
	assert.NoError(t, err)
	_, err = reg.Acquire(ctx, "seller:1", Key{EntityID: "I2", Op: enums.OperationCancelItem})
	assert.NoError(t, err)
	_, err = reg.Acquire(ctx, "seller:2", cancelI1)
	assert.NoError(t, err)

	release(ctx)
	release(ctx)
	_, err = reg.Acquire(ctx, "seller:1", cancelI1)
	assert.NoError(t, err)
}

func TestMemoryRegistrySlotsExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := NewMemoryRegistry(time.Second)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	staleRelease, err := reg.Acquire(ctx, "s", cancelI1)
	require.NoError(t, err)

	active, err := reg.Active(ctx, "s", []Key{cancelI1})
	require.NoError(t, err)
	assert.True(t, active[cancelI1])

	now = now.Add(2 * time.Second)
	active, err = reg.Active(ctx, "s", []Key{cancelI1})
	require.NoError(t, err)
	assert.False(t, active[cancelI1])

	_, err = reg.Acquire(ctx, "s", cancelI1)
	require.NoError(t, err)

	// the expired owner must not free the new holder
	staleRelease(ctx)
	active, _ = reg.Active(ctx, "s", []Key{cancelI1})
	assert.True(t, active[cancelI1])
}

func TestMemoryRegistryConcurrentAcquireHasOneWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := NewMemoryRegistry(time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Acquire(ctx, "s", cancelI1); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestRedisRegistryAcquireRelease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newFakeRedis()
	reg, err := NewRedisRegistry(store, time.Minute, nil)
	require.NoError(t, err)

	release, err := reg.Acquire(ctx, "seller:1", cancelI1)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, store.ttls["inflight:seller:1:I1:cancel_item"])

	_, err = reg.Acquire(ctx, "seller:1", cancelI1)
	assert.True(t, errors.Is(err, ErrBusy))

	active, err := reg.Active(ctx, "seller:1", []Key{cancelI1, {EntityID: "I2", Op: enums.OperationCancelItem}})
	require.NoError(t, err)
	assert.Equal(t, map[Key]bool{cancelI1: true}, active)

	release(ctx)
	_, err = reg.Acquire(ctx, "seller:1", cancelI1)
	assert.NoError(t, err)
}

func TestRedisRegistryReleaseChecksOwner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newFakeRedis()
	reg, err := NewRedisRegistry(store, time.Minute, nil)
	require.NoError(t, err)

	release, err := reg.Acquire(ctx, "s", cancelI1)
	require.NoError(t, err)

	// slot expired and was taken by another replica
	store.values["inflight:s:I1:cancel_item"] = "someone-else"
	release(ctx)
	assert.Equal(t, "someone-else", store.values["inflight:s:I1:cancel_item"])
}

func TestNewRedisRegistryRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisRegistry(nil, time.Second, nil); err == nil {
		t.Fatalf("expected error without client")
	}
}

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeRedis) DelIfValue(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(keys))
	for i, key := range keys {
		_, out[i] = f.values[key]
	}
	return out, nil
}

func (f *fakeRedis) InFlightKey(scope, entityID, operation string) string {
	return "inflight:" + scope + ":" + entityID + ":" + operation
}
