// Package cache provides the key-value cache fronting anchor and alias lookups.
//
// Two backends exist: RedisCache for a shared external cache and MemoryCache
// for a process-local one. Both are read-through helpers only; the registry's
// in-memory maps remain authoritative and cached values may be stale for up
// to one TTL window.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// DefaultTTL is the default lifetime of a cached entry.
const DefaultTTL = time.Hour

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// Cache is a TTL-based byte cache.
type Cache interface {
	// Get returns the cached value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Close releases backend resources.
	Close() error
}

const keyPrefix = "ssot:"

// AnchorKey is the cache key of an anchor record.
func AnchorKey(id string) string {
	return keyPrefix + "anchor:" + id
}

// AliasKey is the cache key of a resolved alias.
func AliasKey(context, name string) string {
	return keyPrefix + "alias:" + models.AliasKey{Context: context, Name: name}.ID()
}
