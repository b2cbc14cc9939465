package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ajitpratap0/ssot-registry/internal/cache"
	"github.com/ajitpratap0/ssot-registry/internal/metrics"
	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// Cache errors are logged and treated as misses; they never fail an operation.

func (r *Registry) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, ok, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		r.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	case !ok:
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	default:
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return data, true
	}
}

func (r *Registry) cacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if r.cache == nil || ttl <= 0 {
		return
	}
	if err := r.cache.Set(ctx, key, value, ttl); err != nil {
		r.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (r *Registry) cacheAnchor(ctx context.Context, a models.Anchor) {
	data, err := json.Marshal(a)
	if err != nil {
		r.logger.Warn("encoding anchor for cache", "anchor_id", a.ID, "error", err)
		return
	}
	r.cacheSet(ctx, cache.AnchorKey(a.ID), data, r.cacheTTL)
}

// invalidate deletes keys after a mutation.
func (r *Registry) invalidate(ctx context.Context, keys ...string) {
	if r.cache == nil || len(keys) == 0 {
		return
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
