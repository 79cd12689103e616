package cache

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries is the size cap used when none is configured.
const DefaultMaxEntries = 1000

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Computes    int64 `json:"computes"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
	Size        int   `json:"size"`
}

type entry[V any] struct {
	key       string
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// Cache memoizes values by key for a bounded time.
//
// Entries expire after their TTL and the oldest insertion is evicted once
// the size cap is reached. GetOrCompute collapses concurrent misses for one
// key into a single computation. All methods are safe for concurrent use.
//
// Design decision: eviction follows insertion order rather than access
// order. Analyses are cached for minutes, so a popular URL is recomputed
// at most once per TTL anyway and the list stays untouched on reads.
type Cache[V any] struct {
	name       string
	maxEntries int
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is the oldest insertion
	stats   Stats

	group   singleflight.Group
	flights map[string]*flight
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	name       string
	maxEntries int
	now        func() time.Time
	logger     *slog.Logger
}

// WithMaxEntries sets the size cap. Values below 1 select DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.maxEntries = n
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithName labels log records of this cache.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{
		name:       "cache",
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEntries < 1 {
		o.maxEntries = DefaultMaxEntries
	}
	return &Cache[V]{
		name:       o.name,
		maxEntries: o.maxEntries,
		now:        o.now,
		logger:     o.logger,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		flights:    make(map[string]*flight),
	}
}

// Get returns the value for key if present and not expired.
// An expired entry is removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[V]) getLocked(key string) (V, bool) {
	var zero V
	elem, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := elem.Value.(*entry[V]) //nolint:forcetypeassert // list only holds *entry[V]
	if !c.now().Before(e.expiresAt) {
		c.removeLocked(elem)
		c.stats.Expirations++
		c.stats.Misses++
		return zero, false
	}
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	elem := c.order.PushBack(&entry[V]{key: key, value: value, storedAt: now, expiresAt: now.Add(ttl)})
	c.entries[key] = elem

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		c.removeLocked(oldest)
		c.stats.Evictions++
		c.logger.Debug("cache evicted oldest entry",
			"cache", c.name, "cache_key", oldest.Value.(*entry[V]).key) //nolint:forcetypeassert // see getLocked
	}
}

func (c *Cache[V]) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry[V]) //nolint:forcetypeassert // see getLocked
	delete(c.entries, e.key)
	c.order.Remove(elem)
}

// flight is one shared computation and the callers waiting for it.
//
// Design decision: the computation runs on a context of its own that ends
// only when every caller has left. Tying it to the caller that happened to
// start it would fail everyone else waiting on the same key.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	callers []context.Context
	active  int
}

// GetOrCompute returns the cached value for key or computes it with fn.
//
// Concurrent callers for the same key share one in-flight computation. The
// computation does not belong to the caller that started it: fn receives a
// context that is cancelled only after every waiting caller has gone away,
// so one superseded request never fails the others. A caller whose own
// context ends returns early with ctx.Err().
//
// Results are stored only when fn succeeds and at least one caller is still
// waiting, so abandoned requests never populate the cache.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	f, leave := c.join(ctx, key)
	defer leave()

	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished just before this one started may have stored the value.
		if v, ok := c.Get(key); ok {
			return v, nil
		}

		c.mu.Lock()
		c.stats.Computes++
		c.mu.Unlock()

		v, err := fn(f.ctx)
		if err != nil {
			return v, err
		}
		if err := c.abandoned(f); err != nil {
			c.logger.Debug("discarding result of abandoned computation", "cache", c.name, "cache_key", key)
			return v, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// join registers ctx as a waiter of the flight for key, creating the flight
// when none is pending. The returned func must be called once the caller
// stops waiting; it is also run when ctx ends.
func (c *Cache[V]) join(ctx context.Context, key string) (*flight, func()) {
	c.mu.Lock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.callers = append(f.callers, ctx)
	f.active++
	c.mu.Unlock()

	var once sync.Once
	release := func() { once.Do(func() { c.release(key, f) }) }
	stop := context.AfterFunc(ctx, release)
	return f, func() {
		stop()
		release()
	}
}

// release drops one waiter. The last waiter cancels the flight and makes
// the next caller start a fresh one.
func (c *Cache[V]) release(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.active--
	if f.active > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
		c.group.Forget(key)
	}
}

// abandoned returns the error of the first caller when every caller of f
// has gone away, and nil while at least one is still waiting.
func (c *Cache[V]) abandoned(f *flight) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for _, ctx := range f.callers {
		err := ctx.Err()
		if err == nil {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// waiters returns the number of callers waiting on key.
func (c *Cache[V]) waiters(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flights[key]; ok {
		return f.active
	}
	return 0
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	return s
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*entry[V]) //nolint:forcetypeassert // see getLocked
		if !now.Before(e.expiresAt) {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	c.stats.Expirations += int64(removed)
	return removed
}

// StartSweeper runs Sweep every interval until ctx ends.
// A non-positive interval does nothing.
func (c *Cache[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.logger.Debug("cache sweep", "cache", c.name, "removed", n)
				}
			}
		}
	}()
}
