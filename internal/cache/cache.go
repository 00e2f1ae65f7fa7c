// Package cache provides a small in-process TTL cache for rarely-changing
// derived data, such as parsed persona opinion lists. It is read-through
// convenience only and never the system of record: expiry or a miss always
// falls back to the loader.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a generic expiring cache. The zero value is not usable; construct
// with New.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// New builds a cache whose entries live for ttl.
func New[V any](ttl time.Duration) *TTL[V] {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock overrides the cache clock, for tests.
func (c *TTL[V]) WithClock(now func() time.Time) *TTL[V] {
	c.now = now
	return c
}

// Get returns the cached value and whether it was present and fresh.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores the value under key for the cache's TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// GetOrLoad returns the cached value or runs the loader and caches its
// result. Loader errors are returned uncached.
func (c *TTL[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Invalidate drops one key.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge drops every expired entry. Opportunistic housekeeping; correctness
// never depends on it running.
func (c *TTL[V]) Purge() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
