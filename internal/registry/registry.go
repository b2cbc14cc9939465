// Package registry is the single source of truth mapping context-scoped
// aliases to canonical anchors.
//
// One mutex guards the anchor and alias maps. Cache, audit and store I/O
// always run outside it on copies, so a slow backend never blocks other
// callers. Every mutation deletes the affected cache keys after the lock is
// released; cache TTLs bound staleness across processes.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/cache"
	"github.com/ajitpratap0/ssot-registry/internal/governance"
	"github.com/ajitpratap0/ssot-registry/internal/metrics"
	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/internal/store"
)

// DefaultDocumentAuditLimit bounds the audit tail kept in the registry
// document. The durable audit store keeps every entry.
const DefaultDocumentAuditLimit = 10000

// AuditSink receives every audit entry after it is recorded in the document.
type AuditSink interface {
	LogOperation(ctx context.Context, entry models.AuditEntry) models.AuditEntry
}

// Options tunes a Registry. Zero values select defaults.
type Options struct {
	// CacheTTL is the lifetime of cached anchors and resolutions.
	CacheTTL time.Duration
	// DocumentAuditLimit caps the audit tail kept in the document; a negative
	// value keeps everything.
	DocumentAuditLimit int
	// Clock overrides time.Now.
	Clock func() time.Time
}

// AddAliasRequest carries the arguments of AddAlias.
type AddAliasRequest struct {
	Name             string           `json:"name"`
	Canonical        string           `json:"canonical"`
	Context          string           `json:"context"`
	Type             models.AliasType `json:"type"`
	Description      string           `json:"description"`
	CreatedBy        string           `json:"created_by"`
	ExpiresInDays    *int             `json:"expires_in_days,omitempty"`
	RequiresApproval bool             `json:"requires_approval"`
}

// Registry owns anchors and aliases.
type Registry struct {
	mu         sync.Mutex
	anchors    map[string]models.Anchor
	aliases    map[string]map[string]models.AliasDefinition
	auditLog   []models.AuditEntry
	dirty      bool
	auditLimit int

	store    store.Store
	cache    cache.Cache
	sink     AuditSink
	gov      *governance.Engine
	logger   *slog.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// New creates an empty registry. c and sink may be nil; gov nil uses the
// default governance rules. Call Load to restore persisted state.
func New(st store.Store, c cache.Cache, sink AuditSink, gov *governance.Engine, logger *slog.Logger, opts Options) *Registry {
	if gov == nil {
		gov = governance.NewEngine(nil, logger)
	}
	r := &Registry{
		anchors:    make(map[string]models.Anchor),
		aliases:    make(map[string]map[string]models.AliasDefinition),
		auditLimit: opts.DocumentAuditLimit,
		store:      st,
		cache:      c,
		sink:       sink,
		gov:        gov,
		logger:     logger,
		cacheTTL:   opts.CacheTTL,
		now:        opts.Clock,
	}
	if r.auditLimit == 0 {
		r.auditLimit = DefaultDocumentAuditLimit
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = cache.DefaultTTL
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Governance returns the rule engine used by AddAlias.
func (r *Registry) Governance() *governance.Engine { return r.gov }

func (r *Registry) clock() time.Time {
	return r.now().UTC().Round(0)
}

// RegisterAnchor creates an anchor. It fails with ErrConflict if id exists.
func (r *Registry) RegisterAnchor(ctx context.Context, id string, attrs models.AnchorAttributes) (*models.Anchor, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationError("non_empty_id", "anchor id must not be empty")
	}

	r.mu.Lock()
	if _, exists := r.anchors[id]; exists {
		r.mu.Unlock()
		metrics.IncAlias(models.OpRegisterAnchor, metrics.StatusConflict, "")
		return nil, fmt.Errorf("%w: anchor %q", ErrConflict, id)
	}
	anchor := models.NewAnchor(id, attrs, r.clock())
	r.anchors[id] = anchor
	r.dirty = true
	r.mu.Unlock()

	metrics.IncAlias(models.OpRegisterAnchor, metrics.StatusSuccess, "")
	r.LogOperation(ctx, r.entry(ctx, models.OpRegisterAnchor, models.EntityAnchor, id, "", map[string]any{
		"family":  anchor.Family,
		"owner":   anchor.Owner,
		"version": anchor.Version,
	}))
	r.cacheAnchor(ctx, anchor)

	out := anchor.Clone()
	return &out, nil
}

// UpsertAnchor registers id or, if it exists, replaces its attributes.
// Owner and CentralityScore are kept when attrs leaves them empty, and the
// original registration time is always kept. created reports whether the
// anchor was new.
func (r *Registry) UpsertAnchor(ctx context.Context, id string, attrs models.AnchorAttributes) (anchor *models.Anchor, created bool, err error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, validationError("non_empty_id", "anchor id must not be empty")
	}

	r.mu.Lock()
	prev, exists := r.anchors[id]
	if !exists {
		r.mu.Unlock()
		a, err := r.RegisterAnchor(ctx, id, attrs)
		if errors.Is(err, ErrConflict) {
			// Lost a race with a concurrent register; update instead.
			return r.UpsertAnchor(ctx, id, attrs)
		}
		return a, err == nil, err
	}
	next := models.NewAnchor(id, attrs, prev.RegisteredAt)
	if next.Owner == "" {
		next.Owner = prev.Owner
	}
	if next.CentralityScore == 0 {
		next.CentralityScore = prev.CentralityScore
	}
	r.anchors[id] = next
	r.dirty = true
	r.mu.Unlock()

	metrics.IncAlias(models.OpUpdateAnchor, metrics.StatusSuccess, "")
	r.LogOperation(ctx, r.entry(ctx, models.OpUpdateAnchor, models.EntityAnchor, id, "", map[string]any{
		"previous_version": prev.Version,
		"version":          next.Version,
		"owner":            next.Owner,
	}))
	r.invalidate(ctx, cache.AnchorKey(id))

	out := next.Clone()
	return &out, false, nil
}

// GetAnchor returns the anchor with id, or nil and no error if it does not
// exist. The cache is consulted first.
func (r *Registry) GetAnchor(ctx context.Context, id string) (*models.Anchor, error) {
	if data, ok := r.cacheGet(ctx, cache.AnchorKey(id)); ok {
		var a models.Anchor
		if err := json.Unmarshal(data, &a); err == nil {
			return &a, nil
		}
		r.logger.Warn("dropping undecodable cached anchor", "anchor_id", id)
		r.invalidate(ctx, cache.AnchorKey(id))
	}

	r.mu.Lock()
	a, ok := r.anchors[id]
	if ok {
		a = a.Clone()
	}
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}

	r.cacheAnchor(ctx, a)
	return &a, nil
}

// AddAlias creates an alias. Checks run in order: an existing (name,
// context) fails with ErrConflict, an unknown canonical with
// ErrAliasNotFound, and a governance violation with *ValidationError.
func (r *Registry) AddAlias(ctx context.Context, req AddAliasRequest) (*models.AliasDefinition, error) {
	r.mu.Lock()
	if _, exists := r.aliases[req.Context][req.Name]; exists {
		r.mu.Unlock()
		metrics.IncAlias(models.OpAddAlias, metrics.StatusConflict, req.Context)
		return nil, fmt.Errorf("%w: alias %q in context %q", ErrConflict, req.Name, req.Context)
	}
	anchor, ok := r.anchors[req.Canonical]
	if !ok {
		r.mu.Unlock()
		metrics.IncAlias(models.OpAddAlias, metrics.StatusNotFound, req.Context)
		return nil, fmt.Errorf("%w: canonical anchor %q", ErrAliasNotFound, req.Canonical)
	}

	govReq := governance.Request{
		Name:          req.Name,
		Canonical:     req.Canonical,
		Context:       req.Context,
		Type:          req.Type,
		Description:   req.Description,
		CreatedBy:     req.CreatedBy,
		ExpiresInDays: req.ExpiresInDays,
	}
	if err := r.gov.Validate(govReq, &anchor); err != nil {
		r.mu.Unlock()
		r.rejectAlias(ctx, req, err)
		return nil, err
	}
	if !req.Type.IsValid() {
		r.mu.Unlock()
		err := validationError("valid_alias_type", fmt.Sprintf("unknown alias type %q", req.Type))
		r.rejectAlias(ctx, req, err)
		return nil, err
	}

	now := r.clock()
	alias := models.AliasDefinition{
		Name:        req.Name,
		Canonical:   req.Canonical,
		Context:     req.Context,
		Type:        req.Type,
		Status:      models.AliasStatusActive,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		LastUpdated: now,
	}
	switch {
	case req.ExpiresInDays != nil:
		exp := now.Add(time.Duration(*req.ExpiresInDays) * 24 * time.Hour)
		alias.ExpiresAt = &exp
	default:
		if ttl, ok := r.gov.DefaultTTL(req.Type); ok {
			exp := now.Add(ttl)
			alias.ExpiresAt = &exp
		}
	}
	if req.RequiresApproval {
		alias.Status = models.AliasStatusPendingApproval
	}

	if r.aliases[req.Context] == nil {
		r.aliases[req.Context] = make(map[string]models.AliasDefinition)
	}
	r.aliases[req.Context][req.Name] = alias
	r.dirty = true
	r.mu.Unlock()

	metrics.IncAlias(models.OpAddAlias, metrics.StatusSuccess, req.Context)
	details := map[string]any{
		"canonical": alias.Canonical,
		"type":      string(alias.Type),
		"status":    string(alias.Status),
	}
	if alias.ExpiresAt != nil {
		details["expires_at"] = alias.ExpiresAt.Format(time.RFC3339)
	}
	r.LogOperation(ctx, r.entry(ctx, models.OpAddAlias, models.EntityAlias,
		aliasEntityID(req.Context, req.Name), req.Context, details, withActor(req.CreatedBy)))
	r.invalidate(ctx, cache.AliasKey(req.Context, req.Name))
	r.refreshGauges()

	out := alias.Clone()
	return &out, nil
}

// rejectAlias records a governance rejection as a security event.
func (r *Registry) rejectAlias(ctx context.Context, req AddAliasRequest, err error) {
	rule := "unknown"
	var verr *ValidationError
	if errors.As(err, &verr) {
		rule = verr.Rule
	}
	metrics.ValidationFailures.WithLabelValues(rule, models.OpAddAlias).Inc()
	metrics.IncAlias(models.OpAddAlias, metrics.StatusInvalid, req.Context)
	r.logger.Warn("alias rejected by governance", "name", req.Name, "context", req.Context, "rule", rule)

	e := r.entry(ctx, models.OpSecurityEvent, models.EntityAlias, aliasEntityID(req.Context, req.Name), req.Context,
		map[string]any{
			"attempted_operation": models.OpAddAlias,
			"rule":                rule,
			"reason":              err.Error(),
			"canonical":           req.Canonical,
			"type":                string(req.Type),
		}, withActor(req.CreatedBy))
	e.Level = models.LogLevelWarning
	r.LogOperation(ctx, e)
}

// ResolveAlias returns the canonical id that name maps to in aliasContext.
// A cache hit short-circuits. Otherwise the alias must exist, be active and
// not be past its expiry.
func (r *Registry) ResolveAlias(ctx context.Context, name, aliasContext string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ResolutionDuration.WithLabelValues(aliasContext).Observe(time.Since(start).Seconds())
	}()

	key := cache.AliasKey(aliasContext, name)
	if data, ok := r.cacheGet(ctx, key); ok {
		metrics.IncAlias(models.OpResolveAlias, metrics.StatusCacheHit, aliasContext)
		return string(data), nil
	}

	r.mu.Lock()
	alias, ok := r.aliases[aliasContext][name]
	r.mu.Unlock()

	if !ok {
		metrics.IncAlias(models.OpResolveAlias, metrics.StatusNotFound, aliasContext)
		return "", fmt.Errorf("%w: %q in context %q", ErrAliasNotFound, name, aliasContext)
	}
	now := r.clock()
	if alias.Status == models.AliasStatusExpired {
		metrics.IncAlias(models.OpResolveAlias, metrics.StatusExpired, aliasContext)
		return "", fmt.Errorf("%w: %q in context %q", ErrExpiredAlias, name, aliasContext)
	}
	if alias.Status != models.AliasStatusActive {
		metrics.IncAlias(models.OpResolveAlias, metrics.StatusInvalid, aliasContext)
		return "", validationError("alias_not_active", fmt.Sprintf("alias %q in context %q is %s", name, aliasContext, alias.Status))
	}
	if alias.IsExpired(now) {
		metrics.IncAlias(models.OpResolveAlias, metrics.StatusExpired, aliasContext)
		return "", fmt.Errorf("%w: %q in context %q expired at %s", ErrExpiredAlias, name, aliasContext, alias.ExpiresAt.Format(time.RFC3339))
	}

	ttl := r.cacheTTL
	if alias.ExpiresAt != nil {
		if left := alias.ExpiresAt.Sub(now); left < ttl {
			ttl = left
		}
	}
	r.cacheSet(ctx, key, []byte(alias.Canonical), ttl)

	metrics.IncAlias(models.OpResolveAlias, metrics.StatusSuccess, aliasContext)
	e := r.entry(ctx, models.OpResolveAlias, models.EntityAlias, aliasEntityID(aliasContext, name), aliasContext,
		map[string]any{"canonical": alias.Canonical}, withActorFallback("anonymous"))
	e.Level = models.LogLevelDebug
	r.LogOperation(ctx, e)

	return alias.Canonical, nil
}

// ApproveAlias moves a pending alias to active.
func (r *Registry) ApproveAlias(ctx context.Context, name, aliasContext, approver string) (*models.AliasDefinition, error) {
	if strings.TrimSpace(approver) == "" {
		return nil, validationError("approver_required", "approver must not be empty")
	}
	r.mu.Lock()
	alias, ok := r.aliases[aliasContext][name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q in context %q", ErrAliasNotFound, name, aliasContext)
	}
	if alias.Status != models.AliasStatusPendingApproval {
		r.mu.Unlock()
		return nil, validationError("approval_requires_pending", fmt.Sprintf("alias %q in context %q is %s", name, aliasContext, alias.Status))
	}
	now := r.clock()
	alias.Status = models.AliasStatusActive
	alias.ApprovedBy = approver
	alias.ApprovedAt = &now
	alias.LastUpdated = now
	r.aliases[aliasContext][name] = alias
	r.dirty = true
	r.mu.Unlock()

	metrics.IncAlias(models.OpApproveAlias, metrics.StatusSuccess, aliasContext)
	r.LogOperation(ctx, r.entry(ctx, models.OpApproveAlias, models.EntityAlias, aliasEntityID(aliasContext, name), aliasContext,
		map[string]any{"canonical": alias.Canonical}, withActor(approver)))
	r.invalidate(ctx, cache.AliasKey(aliasContext, name))
	r.refreshGauges()

	out := alias.Clone()
	return &out, nil
}

// DeprecateAlias marks an alias deprecated. Deprecating an already
// deprecated alias is a no-op.
func (r *Registry) DeprecateAlias(ctx context.Context, name, aliasContext, reason, by string) (*models.AliasDefinition, error) {
	r.mu.Lock()
	alias, ok := r.aliases[aliasContext][name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q in context %q", ErrAliasNotFound, name, aliasContext)
	}
	if alias.Status == models.AliasStatusDeprecated {
		r.mu.Unlock()
		out := alias.Clone()
		return &out, nil
	}
	prevStatus := alias.Status
	alias.Status = models.AliasStatusDeprecated
	alias.LastUpdated = r.clock()
	r.aliases[aliasContext][name] = alias
	r.dirty = true
	r.mu.Unlock()

	metrics.IncAlias(models.OpDeprecateAlias, metrics.StatusSuccess, aliasContext)
	r.LogOperation(ctx, r.entry(ctx, models.OpDeprecateAlias, models.EntityAlias, aliasEntityID(aliasContext, name), aliasContext,
		map[string]any{"reason": reason, "previous_status": string(prevStatus)}, withActor(by)))
	r.invalidate(ctx, cache.AliasKey(aliasContext, name))
	r.refreshGauges()

	out := alias.Clone()
	return &out, nil
}

// RenameAlias moves an alias to newName within its context. It fails with
// ErrConflict if newName is taken.
func (r *Registry) RenameAlias(ctx context.Context, name, aliasContext, newName, by string) (*models.AliasDefinition, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, validationError("non_empty_name", "new alias name must not be empty")
	}
	r.mu.Lock()
	alias, ok := r.aliases[aliasContext][name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q in context %q", ErrAliasNotFound, name, aliasContext)
	}
	if _, taken := r.aliases[aliasContext][newName]; taken {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: alias %q in context %q", ErrConflict, newName, aliasContext)
	}
	delete(r.aliases[aliasContext], name)
	alias.Name = newName
	alias.LastUpdated = r.clock()
	r.aliases[aliasContext][newName] = alias
	r.dirty = true
	r.mu.Unlock()

	metrics.IncAlias(models.OpRenameAlias, metrics.StatusSuccess, aliasContext)
	r.LogOperation(ctx, r.entry(ctx, models.OpRenameAlias, models.EntityAlias, aliasEntityID(aliasContext, newName), aliasContext,
		map[string]any{"old_name": name, "new_name": newName, "canonical": alias.Canonical}, withActor(by)))
	r.invalidate(ctx, cache.AliasKey(aliasContext, name), cache.AliasKey(aliasContext, newName))

	out := alias.Clone()
	return &out, nil
}

// RemoveAlias deletes an alias, dropping its context when it becomes empty.
func (r *Registry) RemoveAlias(ctx context.Context, name, aliasContext, by string) error {
	r.mu.Lock()
	alias, ok := r.aliases[aliasContext][name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q in context %q", ErrAliasNotFound, name, aliasContext)
	}
	delete(r.aliases[aliasContext], name)
	if len(r.aliases[aliasContext]) == 0 {
		delete(r.aliases, aliasContext)
	}
	r.dirty = true
	r.mu.Unlock()

	metrics.IncAlias(models.OpRemoveAlias, metrics.StatusSuccess, aliasContext)
	r.LogOperation(ctx, r.entry(ctx, models.OpRemoveAlias, models.EntityAlias, aliasEntityID(aliasContext, name), aliasContext,
		map[string]any{"canonical": alias.Canonical, "status": string(alias.Status)}, withActor(by)))
	r.invalidate(ctx, cache.AliasKey(aliasContext, name))
	r.refreshGauges()
	return nil
}

// GetAlias returns a copy of one alias without validating its status.
func (r *Registry) GetAlias(name, aliasContext string) (*models.AliasDefinition, error) {
	r.mu.Lock()
	alias, ok := r.aliases[aliasContext][name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q in context %q", ErrAliasNotFound, name, aliasContext)
	}
	out := alias.Clone()
	return &out, nil
}

// ListAliases returns the aliases of aliasContext, or of every context when
// it is empty, ordered by context then name.
func (r *Registry) ListAliases(aliasContext string) []models.AliasDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.AliasDefinition
	for ctxName, bucket := range r.aliases {
		if aliasContext != "" && ctxName != aliasContext {
			continue
		}
		for _, a := range bucket {
			out = append(out, a.Clone())
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

// ListAnchors returns every anchor ordered by id.
func (r *Registry) ListAnchors() []models.Anchor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Anchor, 0, len(r.anchors))
	for _, a := range r.anchors {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns summary counts.
func (r *Registry) Stats() models.RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := models.RegistryStats{
		Anchors:   len(r.anchors),
		Contexts:  len(r.aliases),
		ByStatus:  make(map[string]int),
		ByType:    make(map[string]int),
		ByContext: make(map[string]map[string]int),
	}
	for ctxName, bucket := range r.aliases {
		perStatus := make(map[string]int)
		for _, a := range bucket {
			stats.Aliases++
			stats.ByStatus[string(a.Status)]++
			stats.ByType[string(a.Type)]++
			perStatus[string(a.Status)]++
		}
		stats.ByContext[ctxName] = perStatus
	}
	return stats
}

// Snapshot returns a deep copy of the registry state, including the
// document's audit tail.
func (r *Registry) Snapshot() *models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() *models.Snapshot {
	snap := models.NewSnapshot()
	for id, a := range r.anchors {
		snap.Anchors[id] = a.Clone()
	}
	for ctxName, bucket := range r.aliases {
		m := make(map[string]models.AliasDefinition, len(bucket))
		for name, a := range bucket {
			m[name] = a.Clone()
		}
		snap.Aliases[ctxName] = m
	}
	snap.AuditLog = append(make([]models.AuditEntry, 0, len(r.auditLog)), r.auditLog...)
	return snap
}

// LogOperation records entry in the document's audit tail and forwards it
// to the audit sink. It never fails.
func (r *Registry) LogOperation(ctx context.Context, entry models.AuditEntry) models.AuditEntry {
	entry = audit.Prepare(entry, r.now)

	r.mu.Lock()
	r.auditLog = append(r.auditLog, entry)
	if r.auditLimit > 0 && len(r.auditLog) > r.auditLimit {
		drop := len(r.auditLog) - r.auditLimit
		r.auditLog = append(r.auditLog[:0:0], r.auditLog[drop:]...)
	}
	r.dirty = true
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.LogOperation(ctx, entry)
	}
	return entry
}

type entryOption func(ctx context.Context, e *models.AuditEntry)

func withActor(actor string) entryOption {
	return func(_ context.Context, e *models.AuditEntry) {
		if actor != "" {
			e.PerformedBy = actor
		}
	}
}

func withActorFallback(fallback string) entryOption {
	return func(ctx context.Context, e *models.AuditEntry) {
		if e.PerformedBy == "" {
			e.PerformedBy = actorOr(ctx, fallback)
		}
	}
}

// entry builds an audit entry, taking request metadata and the default
// actor from the caller in ctx.
func (r *Registry) entry(ctx context.Context, op, entityType, entityID, aliasContext string, details map[string]any, opts ...entryOption) models.AuditEntry {
	e := models.AuditEntry{
		Operation:  op,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		Context:    aliasContext,
		Level:      models.LogLevelInfo,
	}
	if c, ok := CallerFrom(ctx); ok {
		e.PerformedBy = c.Actor
		e.IPAddress = c.IPAddress
		e.UserAgent = c.UserAgent
		e.SessionID = c.SessionID
	}
	for _, opt := range opts {
		opt(ctx, &e)
	}
	if e.PerformedBy == "" {
		e.PerformedBy = "system"
	}
	return e
}

func aliasEntityID(aliasContext, name string) string {
	return models.AliasKey{Context: aliasContext, Name: name}.ID()
}

// refreshGauges recomputes the alias gauge from current state.
func (r *Registry) refreshGauges() {
	r.mu.Lock()
	counts := make(map[[2]string]int)
	for ctxName, bucket := range r.aliases {
		for _, a := range bucket {
			counts[[2]string{ctxName, string(a.Status)}]++
		}
	}
	r.mu.Unlock()

	metrics.Aliases.Reset()
	for k, n := range counts {
		metrics.Aliases.WithLabelValues(k[0], k[1]).Set(float64(n))
	}
}
