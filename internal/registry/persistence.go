package registry

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// Load replaces the in-memory state with the persisted document. Loading is
// best effort: when the document is missing the registry starts empty, and
// when it cannot be read or decoded the registry also starts empty, logs a
// warning and returns the error for the caller to report.
func (r *Registry) Load(ctx context.Context) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Warn("registry document unreadable, starting empty", "location", r.store.Location(), "error", err)
		r.mu.Lock()
		r.anchors = make(map[string]models.Anchor)
		r.aliases = make(map[string]map[string]models.AliasDefinition)
		r.auditLog = nil
		r.dirty = false
		r.mu.Unlock()
		r.refreshGauges()
		return fmt.Errorf("loading registry: %w", err)
	}

	r.mu.Lock()
	r.anchors = snap.Anchors
	r.aliases = make(map[string]map[string]models.AliasDefinition, len(snap.Aliases))
	for ctxName, bucket := range snap.Aliases {
		if len(bucket) > 0 {
			r.aliases[ctxName] = bucket
		}
	}
	r.auditLog = snap.AuditLog
	r.dirty = false
	anchors, aliases := len(r.anchors), snap.AliasCount()
	r.mu.Unlock()

	r.refreshGauges()
	r.logger.Info("registry loaded", "location", r.store.Location(), "anchors", anchors, "aliases", aliases)
	return nil
}

// Flush writes the state to the store if it changed since the last flush.
// The snapshot is taken under the lock and written outside it. On failure
// the registry stays dirty so the next flush retries. It reports whether a
// write happened.
func (r *Registry) Flush(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return false, nil
	}
	snap := r.snapshotLocked()
	r.dirty = false
	r.mu.Unlock()

	if err := r.store.Save(ctx, snap); err != nil {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
		return false, fmt.Errorf("flushing registry: %w", err)
	}
	r.logger.Debug("registry flushed", "location", r.store.Location(), "anchors", len(snap.Anchors), "aliases", snap.AliasCount())
	return true, nil
}

// Dirty reports whether there are unflushed changes.
func (r *Registry) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}
