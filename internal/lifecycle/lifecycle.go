// Package lifecycle runs the registry's periodic maintenance: flushing the
// document, sweeping expired aliases, scanning for conflicts and purging old
// audit rows.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// Default loop intervals.
const (
	DefaultSaveInterval      = 300 * time.Second
	DefaultSweepInterval     = time.Hour
	DefaultScanInterval      = 30 * time.Minute
	DefaultRetentionInterval = 24 * time.Hour

	shutdownFlushTimeout = 10 * time.Second
)

// Registry is the part of the registry the manager drives.
type Registry interface {
	Flush(ctx context.Context) (bool, error)
	SweepExpired(ctx context.Context) []models.AliasDefinition
	ExpiredAliases() []models.AliasDefinition
}

// Scanner finds and auto-resolves conflicts.
type Scanner interface {
	Scan(ctx context.Context) ([]models.ConflictDetection, error)
	AutoResolveConflicts(ctx context.Context) ([]models.ConflictResolution, error)
}

// Purger deletes audit rows past their retention.
type Purger interface {
	CleanupByRetention(ctx context.Context, policy audit.RetentionPolicy) (map[models.LogLevel]int64, error)
}

// Watcher is a long-running background task such as a rules file watcher.
type Watcher interface {
	Watch(ctx context.Context) error
}

// Report summarizes the results of a lifecycle run.
type Report struct {
	Expired           int   `json:"expired"`
	ConflictsFound    int   `json:"conflicts_found"`
	ConflictsResolved int   `json:"conflicts_resolved"`
	AuditPurged       int64 `json:"audit_purged"`
	Flushed           bool  `json:"flushed"`
}

// Intervals sets how often each loop fires. Zero values use the defaults.
type Intervals struct {
	Save      time.Duration
	Sweep     time.Duration
	Scan      time.Duration
	Retention time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	if iv.Save <= 0 {
		iv.Save = DefaultSaveInterval
	}
	if iv.Sweep <= 0 {
		iv.Sweep = DefaultSweepInterval
	}
	if iv.Scan <= 0 {
		iv.Scan = DefaultScanInterval
	}
	if iv.Retention <= 0 {
		iv.Retention = DefaultRetentionInterval
	}
	return iv
}

// Manager handles registry lifecycle operations.
type Manager struct {
	registry  Registry
	scanner   Scanner
	purger    Purger
	watchers  []Watcher
	retention audit.RetentionPolicy
	intervals Intervals
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithScanner enables the conflict scan loop.
func WithScanner(s Scanner) Option { return func(m *Manager) { m.scanner = s } }

// WithPurger enables audit retention with policy; a nil policy uses the
// default tiers.
func WithPurger(p Purger, policy audit.RetentionPolicy) Option {
	return func(m *Manager) {
		m.purger = p
		if policy != nil {
			m.retention = policy
		}
	}
}

// WithWatcher runs w alongside the loops.
func WithWatcher(w Watcher) Option { return func(m *Manager) { m.watchers = append(m.watchers, w) } }

// WithIntervals overrides the loop intervals.
func WithIntervals(iv Intervals) Option { return func(m *Manager) { m.intervals = iv } }

// NewManager creates a new lifecycle manager.
func NewManager(reg Registry, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		registry:  reg,
		retention: audit.DefaultRetention(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.intervals = m.intervals.withDefaults()
	return m
}

// Run executes every lifecycle task once. With dryRun nothing is modified:
// expired aliases and conflicts are counted, and no resolution, purge or
// flush happens.
func (m *Manager) Run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{}

	// 1. Expiry
	if dryRun {
		expired := m.registry.ExpiredAliases()
		for _, a := range expired {
			m.logger.Info("would expire alias", "context", a.Context, "name", a.Name, "expires_at", a.ExpiresAt)
		}
		report.Expired = len(expired)
	} else {
		report.Expired = len(m.registry.SweepExpired(ctx))
	}

	// 2. Conflicts
	if m.scanner != nil {
		found, err := m.scanner.Scan(ctx)
		if err != nil {
			m.logger.Error("conflict scan failed", "error", err)
		}
		report.ConflictsFound = len(found)
		if !dryRun && err == nil {
			resolved, err := m.scanner.AutoResolveConflicts(ctx)
			if err != nil {
				m.logger.Error("conflict auto-resolve failed", "error", err)
			}
			for _, r := range resolved {
				if r.Success {
					report.ConflictsResolved++
				}
			}
		}
	}

	// 3. Audit retention
	if m.purger != nil && !dryRun {
		purged, err := m.purger.CleanupByRetention(ctx, m.retention)
		if err != nil {
			m.logger.Error("audit retention failed", "error", err)
		}
		for _, n := range purged {
			report.AuditPurged += n
		}
	}

	// 4. Flush
	if !dryRun {
		flushed, err := m.registry.Flush(ctx)
		if err != nil {
			return report, fmt.Errorf("flushing registry: %w", err)
		}
		report.Flushed = flushed
	}

	return report, nil
}

// Start runs the background loops until ctx is cancelled, then flushes one
// last time. Errors inside an iteration are logged and the loop continues;
// the returned error is from a watcher or the final flush.
func (m *Manager) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.every(gctx, "flush", m.intervals.Save, func(ctx context.Context) {
			if _, err := m.registry.Flush(ctx); err != nil {
				m.logger.Error("periodic flush failed", "error", err)
			}
		})
	})
	g.Go(func() error {
		return m.every(gctx, "sweep", m.intervals.Sweep, func(ctx context.Context) {
			m.registry.SweepExpired(ctx)
		})
	})
	if m.scanner != nil {
		g.Go(func() error {
			return m.every(gctx, "conflict-scan", m.intervals.Scan, func(ctx context.Context) {
				resolved, err := m.scanner.AutoResolveConflicts(ctx)
				if err != nil {
					m.logger.Error("conflict scan failed", "error", err)
					return
				}
				if len(resolved) > 0 {
					m.logger.Info("conflicts auto-resolved", "count", len(resolved))
				}
			})
		})
	}
	if m.purger != nil {
		g.Go(func() error {
			return m.every(gctx, "audit-retention", m.intervals.Retention, func(ctx context.Context) {
				purged, err := m.purger.CleanupByRetention(ctx, m.retention)
				if err != nil {
					m.logger.Error("audit retention failed", "error", err)
					return
				}
				m.logger.Info("audit retention applied", "purged", purged)
			})
		})
	}
	for _, w := range m.watchers {
		g.Go(func() error { return w.Watch(gctx) })
	}

	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	if _, ferr := m.registry.Flush(flushCtx); ferr != nil {
		m.logger.Error("final flush failed", "error", ferr)
		if err == nil {
			err = fmt.Errorf("final flush: %w", ferr)
		}
	}
	return err
}

// every calls fn on each tick until ctx is done. A panicking iteration is
// logged and does not stop the loop.
func (m *Manager) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.logger.Debug("lifecycle loop started", "loop", name, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.runOnce(ctx, name, fn)
		}
	}
}

func (m *Manager) runOnce(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("lifecycle iteration panicked", "loop", name, "panic", r)
		}
	}()
	fn(ctx)
}
