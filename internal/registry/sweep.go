package registry

import (
	"context"
	"sort"
	"time"

	"github.com/ajitpratap0/ssot-registry/internal/cache"
	"github.com/ajitpratap0/ssot-registry/internal/metrics"
	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// ExpiredAliases lists aliases past their expiry or marked expired, without
// removing them.
func (r *Registry) ExpiredAliases() []models.AliasDefinition {
	now := r.clock()
	r.mu.Lock()
	out := r.expiredLocked(now)
	r.mu.Unlock()
	return out
}

func (r *Registry) expiredLocked(now time.Time) []models.AliasDefinition {
	var out []models.AliasDefinition
	for _, bucket := range r.aliases {
		for _, a := range bucket {
			if a.Status == models.AliasStatusExpired || a.IsExpired(now) {
				out = append(out, a.Clone())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Context != out[j].Context {
			return out[i].Context < out[j].Context
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SweepExpired removes expired aliases, drops contexts left empty and
// audits each removal. It returns the removed aliases.
func (r *Registry) SweepExpired(ctx context.Context) []models.AliasDefinition {
	now := r.clock()

	r.mu.Lock()
	expired := r.expiredLocked(now)
	for _, a := range expired {
		delete(r.aliases[a.Context], a.Name)
		if len(r.aliases[a.Context]) == 0 {
			delete(r.aliases, a.Context)
		}
	}
	if len(expired) > 0 {
		r.dirty = true
	}
	r.mu.Unlock()

	if len(expired) == 0 {
		return nil
	}

	keys := make([]string, 0, len(expired))
	for _, a := range expired {
		details := map[string]any{"canonical": a.Canonical, "type": string(a.Type)}
		if a.ExpiresAt != nil {
			details["expires_at"] = a.ExpiresAt.Format(time.RFC3339)
		}
		r.LogOperation(ctx, r.entry(ctx, models.OpAliasExpired, models.EntityAlias, aliasEntityID(a.Context, a.Name), a.Context, details))
		keys = append(keys, cache.AliasKey(a.Context, a.Name))
	}
	r.invalidate(ctx, keys...)
	metrics.LifecycleExpired.Add(float64(len(expired)))
	r.refreshGauges()

	r.logger.Info("expired aliases swept", "count", len(expired))
	return expired
}
