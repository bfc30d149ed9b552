package inflight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
)

const defaultTTL = 30 * time.Second

// ErrBusy marks an Acquire that lost to a dispatch already running for the same key.
var ErrBusy = errors.New("operation already in flight")

// Key identifies one kind of operation on one entity (a line item, or an order for tracking).
type Key struct {
	EntityID string
	Op       enums.OperationKind
}

// Release frees a slot taken by Acquire. Calling it more than once is safe.
type Release func(ctx context.Context)

// Registry guards dispatches so that only one of each kind runs per entity at a time.
type Registry interface {
	Acquire(ctx context.Context, scope string, key Key) (Release, error)
	Active(ctx context.Context, scope string, keys []Key) (map[Key]bool, error)
}

func busyError(key Key) error {
	return pkgerrors.Wrap(pkgerrors.CodeInFlight, ErrBusy, "operation already in progress for this item").
		WithDetails(map[string]string{
			"entity_id": key.EntityID,
			"operation": key.Op.String(),
		})
}

type slot struct {
	owner   string
	expires time.Time
}

// MemoryRegistry keeps slots in process memory. Slots expire after the TTL so a crashed
// dispatch cannot pin a control forever.
type MemoryRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	slots map[string]slot
}

// NewMemoryRegistry constructs an in-process registry.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryRegistry{
		ttl:   ttl,
		now:   time.Now,
		slots: make(map[string]slot),
	}
}

func memoryKey(scope string, key Key) string {
	return scope + "|" + key.EntityID + "|" + key.Op.String()
}

// Acquire takes the slot for key or fails with an in-flight error wrapping ErrBusy.
func (r *MemoryRegistry) Acquire(_ context.Context, scope string, key Key) (Release, error) {
	k := memoryKey(scope, key)
	owner := uuid.NewString()

	r.mu.Lock()
	now := r.now()
	if existing, ok := r.slots[k]; ok && now.Before(existing.expires) {
		r.mu.Unlock()
		return nil, busyError(key)
	}
	r.slots[k] = slot{owner: owner, expires: now.Add(r.ttl)}
	r.mu.Unlock()

	var once sync.Once
	return func(context.Context) {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if current, ok := r.slots[k]; ok && current.owner == owner {
				delete(r.slots, k)
			}
		})
	}, nil
}

// Active reports which of keys currently hold a live slot.
func (r *MemoryRegistry) Active(_ context.Context, scope string, keys []Key) (map[Key]bool, error) {
	out := make(map[Key]bool, len(keys))
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for _, key := range keys {
		k := memoryKey(scope, key)
		existing, ok := r.slots[k]
		if !ok {
			continue
		}
		if !now.Before(existing.expires) {
			delete(r.slots, k)
			continue
		}
		out[key] = true
	}
	return out, nil
}
