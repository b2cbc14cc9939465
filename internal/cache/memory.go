package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired in-process entries are purged.
const DefaultCleanupInterval = 10 * time.Minute

// MemoryCache is an in-process Cache backed by go-cache.
type MemoryCache struct {
	cache  *gocache.Cache
	ttl    time.Duration
	closed atomic.Bool
}

// NewMemoryCache creates an in-process cache with the given default TTL.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
		ttl:   defaultTTL,
	}
}

// Get returns a copy of the cached value.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.closed.Load() {
		return nil, false, ErrClosed
	}
	v, found := c.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

// Set stores a copy of value.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	b := make([]byte, len(value))
	copy(b, value)
	c.cache.Set(key, b, ttl)
	return nil
}

// Delete removes keys.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	for _, k := range keys {
		c.cache.Delete(k)
	}
	return nil
}

// Len returns the number of live entries, including not-yet-purged expired ones.
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

// Close flushes the cache and rejects further use.
func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.cache.Flush()
	return nil
}
