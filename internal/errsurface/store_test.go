package errsurface

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "seller:1", "I1", "Stock unavailable"))
	require.NoError(t, store.Set(ctx, "seller:1", "O1", "Invalid tracking number"))
	require.NoError(t, store.Set(ctx, "seller:2", "I1", "other scope"))

	all, err := store.All(ctx, "seller:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"I1": "Stock unavailable", "O1": "Invalid tracking number"}, all)

	require.NoError(t, store.Clear(ctx, "seller:1", "I1"))
	all, err = store.All(ctx, "seller:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"O1": "Invalid tracking number"}, all)

	other, err := store.All(ctx, "seller:2")
	require.NoError(t, err)
	assert.Equal(t, "other scope", other["I1"])

	require.NoError(t, store.Clear(ctx, "unknown", "I9"))
	empty, err := store.All(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestRedisStore(t *testing.T) {
	t.Parallel()
	client := newFakeHashes()
	store, err := NewRedisStore(client, time.Hour)
	require.NoError(t, err)
	exerciseStore(t, store)
	assert.Equal(t, time.Hour, client.ttls["errors:seller:1"])
}

func TestMemoryStoreScopeExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "s", "I1", "boom"))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Set(ctx, "s", "I2", "bang"))

	now = now.Add(45 * time.Second)
	all, _ := store.All(ctx, "s")
	assert.Len(t, all, 2, "second write slid the ttl")

	now = now.Add(2 * time.Minute)
	all, _ = store.All(ctx, "s")
	assert.Empty(t, all)
}

func TestRedisStoreWrapsErrors(t *testing.T) {
	t.Parallel()

	client := newFakeHashes()
	client.err = errors.New("connection reset")
	store, err := NewRedisStore(client, 0)
	require.NoError(t, err)

	if err := store.Set(context.Background(), "s", "I1", "x"); err == nil || !errors.Is(err, client.err) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := store.All(context.Background(), "s"); err == nil {
		t.Fatalf("expected read error")
	}
}

type fakeHashes struct {
	hashes map[string]map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeHashes() *fakeHashes {
	return &fakeHashes{hashes: map[string]map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeHashes) HSetWithTTL(_ context.Context, key, field, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	f.hashes[key][field] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeHashes) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeHashes) HDel(_ context.Context, key string, fields ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, field := range fields {
		delete(f.hashes[key], field)
	}
	return nil
}

func (f *fakeHashes) ErrorsKey(scope string) string {
	return "errors:" + scope
}
