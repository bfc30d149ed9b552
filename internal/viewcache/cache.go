package viewcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
)

const (
	defaultIdleTTL      = 30 * time.Minute
	defaultFetchTimeout = 30 * time.Second
)

// FetchFunc loads the raw suborders behind a view.
type FetchFunc func(ctx context.Context) ([]orders.SubOrder, error)

// ItemRef addresses one item of a view the same way the aggregated view keys it.
type ItemRef struct {
	OrderID string
	ItemKey string
}

// Snapshot is an immutable committed view. Generation orders fetches; Versions holds the
// per-item version used for compare-and-set.
type Snapshot struct {
	Generation  uint64
	Orders      []orders.AggregatedOrder
	SubOrders   []orders.SubOrder
	Versions    map[ItemRef]uint64
	CommittedAt time.Time
}

// Version returns the current version of an item, or zero when it is not in the view.
func (s Snapshot) Version(ref ItemRef) uint64 {
	return s.Versions[ref]
}

type location struct {
	sub  int
	item int
}

type entry struct {
	issued    uint64
	committed uint64
	seq       uint64
	snapshot  *Snapshot
	locations map[ItemRef]location
	touched   time.Time
}

// Cache holds the latest committed snapshot per view key.
type Cache struct {
	mu      sync.Mutex
	views   map[string]*entry
	group        singleflight.Group
	idleTTL      time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	onStale      func()
}

// Option configures optional cache behavior.
type Option func(*Cache)

// WithIdleTTL drops views nobody read or wrote for the given duration.
func WithIdleTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.idleTTL = ttl
		}
	}
}

// WithFetchTimeout bounds a shared fetch. It runs detached from the caller that started it,
// so this is the only deadline it has.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		if timeout > 0 {
			c.fetchTimeout = timeout
		}
	}
}

// WithStaleHook is called whenever a commit loses to a newer generation.
func WithStaleHook(hook func()) Option {
	return func(c *Cache) {
		c.onStale = hook
	}
}

// New constructs an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		views:        make(map[string]*entry),
		idleTTL:      defaultIdleTTL,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Begin issues the generation a fetch for view must commit with.
func (c *Cache) Begin(view string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	e := c.entryLocked(view)
	e.issued++
	return e.issued
}

// Commit stores the fetched suborders unless a newer generation already committed.
func (c *Cache) Commit(view string, generation uint64, subOrders []orders.SubOrder) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(view)
	if generation <= e.committed && e.snapshot != nil {
		if c.onStale != nil {
			c.onStale()
		}
		return *e.snapshot, false
	}

	e.committed = generation
	e.seq++
	versions := make(map[ItemRef]uint64)
	e.locations = locate(subOrders)
	for ref := range e.locations {
		versions[ref] = e.seq
	}
	e.snapshot = &Snapshot{
		Generation:  generation,
		Orders:      orders.Aggregate(subOrders),
		SubOrders:   subOrders,
		Versions:    versions,
		CommittedAt: c.now(),
	}
	return *e.snapshot, true
}

// Get returns the committed snapshot of view.
func (c *Cache) Get(view string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.views[view]
	if !ok || e.snapshot == nil {
		return Snapshot{}, false
	}
	e.touched = c.now()
	return *e.snapshot, true
}

// CompareAndSetItem replaces one item with its server-confirmed state if its version is still
// expected. On success the view is re-aggregated and the item gets a new version.
func (c *Cache) CompareAndSetItem(view string, ref ItemRef, expected uint64, item orders.LineItem) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.views[view]
	if !ok || e.snapshot == nil {
		return Snapshot{}, false
	}
	loc, found := e.locations[ref]
	if !found || e.snapshot.Versions[ref] != expected {
		return *e.snapshot, false
	}

	subs := make([]orders.SubOrder, len(e.snapshot.SubOrders))
	copy(subs, e.snapshot.SubOrders)
	items := make([]orders.LineItem, len(subs[loc.sub].Items))
	copy(items, subs[loc.sub].Items)
	items[loc.item] = item
	subs[loc.sub].Items = items

	locations := locate(subs)
	if newLoc, still := locations[ref]; !still || newLoc != loc {
		// the replacement changed the item's key; let the caller refetch
		return *e.snapshot, false
	}

	e.seq++
	versions := make(map[ItemRef]uint64, len(e.snapshot.Versions))
	for k, v := range e.snapshot.Versions {
		versions[k] = v
	}
	versions[ref] = e.seq

	e.locations = locations
	e.touched = c.now()
	e.snapshot = &Snapshot{
		Generation:  e.snapshot.Generation,
		Orders:      orders.Aggregate(subs),
		SubOrders:   subs,
		Versions:    versions,
		CommittedAt: c.now(),
	}
	return *e.snapshot, true
}

// Load fetches and commits view. Callers asking for the same view while a fetch runs share
// its result. When fresh is set the call never joins a fetch that was already running, so
// the result reflects everything that completed before it.
//
// The shared fetch keeps ctx's values but not its cancellation: a caller that gives up only
// stops waiting, and the others still get the result.
func (c *Cache) Load(ctx context.Context, view string, fresh bool, fetch FetchFunc) (Snapshot, error) {
	if fresh {
		c.group.Forget(view)
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(view, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(shared, c.fetchTimeout)
		defer cancel()

		generation := c.Begin(view)
		subs, err := fetch(fetchCtx)
		if err != nil {
			return Snapshot{}, err
		}
		snapshot, _ := c.Commit(view, generation, subs)
		return snapshot, nil
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

func (c *Cache) entryLocked(view string) *entry {
	e, ok := c.views[view]
	if !ok {
		e = &entry{}
		c.views[view] = e
	}
	e.touched = c.now()
	return e
}

func (c *Cache) pruneLocked() {
	cutoff := c.now().Add(-c.idleTTL)
	for key, e := range c.views {
		if e.touched.Before(cutoff) {
			delete(c.views, key)
		}
	}
}

// locate mirrors the keying of orders.Aggregate so an item ref can be traced back to the
// suborder slot it came from.
func locate(subOrders []orders.SubOrder) map[ItemRef]location {
	keys := make(map[string]*orders.ItemKeys)
	out := make(map[ItemRef]location)
	for si, sub := range subOrders {
		parentID := sub.ParentID()
		if parentID == "" {
			continue
		}
		k, ok := keys[parentID]
		if !ok {
			k = &orders.ItemKeys{}
			keys[parentID] = k
		}
		for ii, item := range sub.Items {
			ref := ItemRef{OrderID: parentID, ItemKey: k.Next(item)}
			// two items sharing a backend id: the first one owns the ref
			if _, dup := out[ref]; dup {
				continue
			}
			out[ref] = location{sub: si, item: ii}
		}
	}
	return out
}
