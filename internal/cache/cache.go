// Package cache provides a generic in-memory key-value cache with per-entry
// TTL expiration. Expired entries behave as absent: they are evicted lazily
// when read and eagerly by Prune. All caches are process-lifetime only.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a mutex-guarded TTL cache. The zero value is not usable; create
// instances with New.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	entries    map[K]entry[V]
	maxEntries int
	now        func() time.Time
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithMaxEntries bounds the cache size. When an insert overflows the bound,
// expired entries are pruned first and the earliest-expiring live entry is
// evicted if still necessary.
func WithMaxEntries[K comparable, V any](n int) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.maxEntries = n
	}
}

// WithClock substitutes the time source, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}

// New creates an empty cache.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the live value for key. An expired entry is evicted and
// reported as absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for the given TTL, replacing any prior entry.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.pruneLocked()
		for len(c.entries) > c.maxEntries {
			c.evictEarliestLocked()
		}
	}
}

// Has reports whether a live entry exists for key without evicting.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return ok && c.now().Before(e.expiresAt)
}

// Remove deletes key. Removing an absent key is a no-op.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Prune evicts every expired entry and returns how many were removed.
func (c *Cache[K, V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked()
}

// Len counts all entries, including expired-but-unpruned ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ActiveLen counts only live entries.
func (c *Cache[K, V]) ActiveLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// GetOrSet returns the cached value for key, or computes, stores, and
// returns a fresh one. The compute function runs without the cache lock
// held; two concurrent callers missing on the same key may both compute,
// with the last write winning. Compute errors are returned and nothing is
// stored.
func (c *Cache[K, V]) GetOrSet(key K, ttl time.Duration, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// GetOrSetContext is GetOrSet for context-aware compute functions.
func (c *Cache[K, V]) GetOrSetContext(ctx context.Context, key K, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

func (c *Cache[K, V]) pruneLocked() int {
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *Cache[K, V]) evictEarliestLocked() {
	var victim K
	var earliest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expiresAt.Before(earliest) {
			victim = k
			earliest = e.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}
