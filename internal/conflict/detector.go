// Package conflict scans registry state for inconsistencies between anchors
// and aliases and applies resolution strategies to what it finds.
package conflict

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/ssot-registry/internal/classifier"
	"github.com/ajitpratap0/ssot-registry/internal/metrics"
	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// DefaultSimilarityThreshold is the ratio above which two names are
// considered confusable.
const DefaultSimilarityThreshold = 0.8

var (
	// ErrConflictNotFound is returned when a conflict id is not in the latest scan.
	ErrConflictNotFound = errors.New("conflict not found")
	// ErrAlreadyResolved is returned when resolving a conflict twice.
	ErrAlreadyResolved = errors.New("conflict already resolved")
	// ErrInvalidStrategy is returned for an unknown resolution strategy.
	ErrInvalidStrategy = errors.New("invalid resolution strategy")
)

// conflictNamespace seeds the UUIDv5 conflict ids.
var conflictNamespace = uuid.MustParse("6f1c0a52-3d0e-5c4b-9a8e-2b7f4e1d9c30")

// Source provides point-in-time copies of registry state.
type Source interface {
	Snapshot() *models.Snapshot
}

// Mutator applies resolution changes to the registry.
type Mutator interface {
	DeprecateAlias(ctx context.Context, name, aliasContext, reason, by string) (*models.AliasDefinition, error)
	RenameAlias(ctx context.Context, name, aliasContext, newName, by string) (*models.AliasDefinition, error)
}

// AuditLogger records resolution outcomes.
type AuditLogger interface {
	LogOperation(ctx context.Context, entry models.AuditEntry) models.AuditEntry
}

// Config tunes detection and automatic resolution.
type Config struct {
	SimilarityThreshold float64
	// AutoResolve marks the conflict types AutoResolveConflicts may apply
	// without review. Every type is off by default since each strategy
	// changes or deprecates live aliases.
	AutoResolve map[models.ConflictType]bool
	// DeepCycles enables reporting generates cycles other than 2-cycles.
	DeepCycles bool
}

// DefaultConfig returns the detection defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		AutoResolve: map[models.ConflictType]bool{
			models.ConflictAliasDuplicate:    false,
			models.ConflictCanonicalMismatch: false,
			models.ConflictContextOverlap:    false,
			models.ConflictNaming:            false,
			models.ConflictSemantic:          false,
			models.ConflictDependency:        false,
			models.ConflictVersion:           false,
			models.ConflictOwnership:         false,
		},
		DeepCycles: true,
	}
}

// record is a tracked detection plus the alias keys its strategies act on.
type record struct {
	detection models.ConflictDetection
	aliases   []models.AliasKey
	busy      bool
}

// Detector runs the conflict detectors and tracks the latest scan's results.
type Detector struct {
	source     Source
	mutator    Mutator
	audit      AuditLogger
	notifier   Notifier
	reviewer   Reviewer
	classifier classifier.Classifier
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	conflicts   map[string]*record
	order       []string
	resolutions []models.ConflictResolution
}

// Option customizes a Detector.
type Option func(*Detector)

// WithNotifier sets the sink for escalated conflicts.
func WithNotifier(n Notifier) Option { return func(d *Detector) { d.notifier = n } }

// WithReviewer attaches a reviewer consulted for escalated conflicts.
func WithReviewer(r Reviewer) Option { return func(d *Detector) { d.reviewer = r } }

// WithClassifier replaces the name classifier used for semantic conflicts.
func WithClassifier(c classifier.Classifier) Option {
	return func(d *Detector) { d.classifier = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(d *Detector) { d.now = now } }

// NewDetector creates a Detector. source and mutator are usually the registry.
func NewDetector(source Source, mutator Mutator, auditLog AuditLogger, cfg Config, logger *slog.Logger, opts ...Option) *Detector {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	d := &Detector{
		source:     source,
		mutator:    mutator,
		audit:      auditLog,
		notifier:   NewLogNotifier(logger),
		classifier: classifier.NewClassifier(logger),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		conflicts:  make(map[string]*record),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Scan runs every detector over a fresh snapshot and replaces the tracked
// conflicts with the result. Statuses of conflicts seen in an earlier scan
// are carried forward.
func (d *Detector) Scan(ctx context.Context) ([]models.ConflictDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := d.source.Snapshot()
	found := d.detect(snap)

	d.mu.Lock()
	next := make(map[string]*record, len(found))
	order := make([]string, 0, len(found))
	for i := range found {
		rec := &found[i]
		id := rec.detection.ID
		if prev, ok := d.conflicts[id]; ok {
			rec.detection.Status = prev.detection.Status
			rec.detection.DetectedAt = prev.detection.DetectedAt
			if v, ok := prev.detection.Evidence[evidenceRecommendation]; ok {
				rec.detection.Evidence[evidenceRecommendation] = v
			}
		} else {
			metrics.ConflictsDetected.WithLabelValues(string(rec.detection.Type), string(rec.detection.Severity)).Inc()
		}
		if _, dup := next[id]; dup {
			continue
		}
		next[id] = rec
		order = append(order, id)
	}
	d.conflicts = next
	d.order = order
	out := d.listLocked()
	d.mu.Unlock()

	d.logger.Info("conflict scan complete", "conflicts", len(out))
	return out, nil
}

// Detect runs every detector over snap without touching tracked state.
func (d *Detector) Detect(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.detect(snap))
}

func (d *Detector) detect(snap *models.Snapshot) []record {
	var out []record
	out = append(out, d.aliasDuplicates(snap)...)
	out = append(out, d.canonicalMismatches(snap)...)
	out = append(out, d.contextOverlaps(snap)...)
	out = append(out, d.namingConflicts(snap)...)
	out = append(out, d.semanticConflicts(snap)...)
	out = append(out, d.dependencyConflicts(snap)...)
	if d.cfg.DeepCycles {
		out = append(out, d.dependencyCycles(snap)...)
	}
	out = append(out, d.versionConflicts(snap)...)
	out = append(out, d.ownershipConflicts(snap)...)
	return out
}

// Conflicts returns the tracked conflicts of the latest scan.
func (d *Detector) Conflicts() []models.ConflictDetection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listLocked()
}

// Get returns one tracked conflict.
func (d *Detector) Get(id string) (models.ConflictDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.conflicts[id]
	if !ok {
		return models.ConflictDetection{}, ErrConflictNotFound
	}
	return cloneDetection(rec.detection), nil
}

// Resolutions returns every resolution attempted by this detector, oldest first.
func (d *Detector) Resolutions() []models.ConflictResolution {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.ConflictResolution, len(d.resolutions))
	copy(out, d.resolutions)
	return out
}

func (d *Detector) listLocked() []models.ConflictDetection {
	out := make([]models.ConflictDetection, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, cloneDetection(d.conflicts[id].detection))
	}
	return out
}

// newRecord builds a detection with a stable id derived from its type and
// affected entities.
func (d *Detector) newRecord(typ models.ConflictType, sev models.Severity, strategy models.ResolutionStrategy,
	description string, affected []string, evidence map[string]any, aliases []models.AliasKey) record {
	if evidence == nil {
		evidence = map[string]any{}
	}
	return record{
		detection: models.ConflictDetection{
			ID:                  conflictID(typ, affected),
			Type:                typ,
			Severity:            sev,
			Description:         description,
			AffectedEntities:    affected,
			Evidence:            evidence,
			SuggestedResolution: strategy,
			DetectedAt:          d.now().UTC().Round(0),
			Status:              models.ConflictStatusOpen,
			AutoResolvable:      d.cfg.AutoResolve[typ],
		},
		aliases: aliases,
	}
}

// conflictID is a UUIDv5 over the type and the affected ids in the order
// given. Callers pass ids in a canonical order.
func conflictID(typ models.ConflictType, affected []string) string {
	return uuid.NewSHA1(conflictNamespace, []byte(string(typ)+"|"+strings.Join(affected, ","))).String()
}

// AliasEntityID is the entity id of an alias in conflicts and audit entries.
func AliasEntityID(aliasContext, name string) string {
	return models.AliasKey{Context: aliasContext, Name: name}.ID()
}

func cloneDetection(c models.ConflictDetection) models.ConflictDetection {
	c.AffectedEntities = append([]string(nil), c.AffectedEntities...)
	ev := make(map[string]any, len(c.Evidence))
	for k, v := range c.Evidence {
		ev[k] = v
	}
	c.Evidence = ev
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
