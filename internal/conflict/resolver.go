package conflict

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// AutoResolveActor is recorded as the approver of automatic resolutions.
const AutoResolveActor = "system:auto-resolve"

var (
	// ErrResolutionInProgress is returned when a conflict is already being resolved.
	ErrResolutionInProgress = errors.New("conflict resolution in progress")
	// ErrStrategyNotApplicable is returned when a strategy cannot act on a conflict.
	ErrStrategyNotApplicable = errors.New("strategy not applicable to conflict")
)

// outcome is the result of applying a strategy.
type outcome struct {
	status     models.ConflictStatus
	reversible bool
	details    map[string]any
}

// ResolveConflict applies strategy to the tracked conflict id. An empty
// strategy uses the conflict's suggested resolution. A conflict that is
// already resolved is rejected with ErrAlreadyResolved. Every attempt is
// audited, including ones rejected before the registry is touched.
func (d *Detector) ResolveConflict(ctx context.Context, id string, strategy models.ResolutionStrategy, approvedBy string) (*models.ConflictResolution, error) {
	d.mu.Lock()
	rec, ok := d.conflicts[id]
	if !ok {
		d.mu.Unlock()
		d.auditRejection(ctx, models.ConflictDetection{ID: id}, strategy, approvedBy, ErrConflictNotFound)
		return nil, ErrConflictNotFound
	}
	if strategy == "" {
		strategy = rec.detection.SuggestedResolution
	}
	var rejectErr error
	switch {
	case rec.detection.Status == models.ConflictStatusResolved:
		rejectErr = ErrAlreadyResolved
	case rec.busy:
		rejectErr = ErrResolutionInProgress
	case !strategy.IsValid():
		rejectErr = fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}
	if rejectErr != nil {
		det := cloneDetection(rec.detection)
		d.mu.Unlock()
		d.auditRejection(ctx, det, strategy, approvedBy, rejectErr)
		return nil, rejectErr
	}
	rec.busy = true
	target := record{detection: cloneDetection(rec.detection), aliases: append([]models.AliasKey(nil), rec.aliases...)}
	d.mu.Unlock()

	out, applyErr := d.apply(ctx, target, strategy, approvedBy)

	res := models.ConflictResolution{
		ConflictID: id,
		Strategy:   strategy,
		AppliedAt:  d.now().UTC().Round(0),
		ApprovedBy: approvedBy,
		Success:    applyErr == nil,
		Reversible: out.reversible,
		Details:    out.details,
	}
	status := out.status
	if applyErr != nil {
		res.Error = applyErr.Error()
		status = models.ConflictStatusFailed
	}

	d.mu.Lock()
	if cur, ok := d.conflicts[id]; ok {
		cur.busy = false
		cur.detection.Status = status
		if v, ok := out.details[evidenceRecommendation]; ok {
			cur.detection.Evidence[evidenceRecommendation] = v
		}
	}
	d.resolutions = append(d.resolutions, res)
	d.mu.Unlock()

	d.auditResolution(ctx, target.detection, res, status)

	if applyErr != nil {
		d.logger.Warn("conflict resolution failed", "conflict_id", id, "strategy", strategy, "error", applyErr)
		return &res, applyErr
	}
	d.logger.Info("conflict resolution applied", "conflict_id", id, "strategy", strategy, "status", status)
	return &res, nil
}

// AutoResolveConflicts scans, then resolves every open or previously failed
// conflict whose type is marked auto-resolvable, using its suggested
// strategy. Failures are recorded in the returned resolutions.
func (d *Detector) AutoResolveConflicts(ctx context.Context) ([]models.ConflictResolution, error) {
	found, err := d.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.ConflictResolution
	for _, c := range found {
		if !c.AutoResolvable {
			continue
		}
		if c.Status != models.ConflictStatusOpen && c.Status != models.ConflictStatusFailed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := d.ResolveConflict(ctx, c.ID, c.SuggestedResolution, AutoResolveActor)
		if res != nil {
			out = append(out, *res)
		}
		if err != nil {
			d.logger.Debug("auto-resolve attempt failed", "conflict_id", c.ID, "error", err)
		}
	}
	return out, nil
}

func (d *Detector) apply(ctx context.Context, rec record, strategy models.ResolutionStrategy, by string) (outcome, error) {
	switch strategy {
	case models.StrategyMerge, models.StrategyEscalate:
		return d.escalate(ctx, rec, strategy, nil), nil
	case models.StrategyRename:
		if rec.detection.Type == models.ConflictContextOverlap || len(rec.aliases) < 2 {
			// Contexts are never renamed automatically.
			return d.escalate(ctx, rec, strategy, map[string]any{"advisory": true}), nil
		}
		return d.renameAliases(ctx, rec, by)
	case models.StrategyDeprecate:
		if len(rec.aliases) == 0 {
			return outcome{}, fmt.Errorf("%w: %s has no alias to act on", ErrStrategyNotApplicable, rec.detection.Type)
		}
		return d.deprecateLosers(ctx, rec, strategy, by)
	case models.StrategyFirstWins, models.StrategyLastWins, models.StrategyMostRecent, models.StrategyHighestPriority:
		if len(rec.aliases) < 2 {
			return outcome{}, fmt.Errorf("%w: %s has no competing aliases", ErrStrategyNotApplicable, rec.detection.Type)
		}
		return d.deprecateLosers(ctx, rec, strategy, by)
	default:
		return outcome{}, fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}
}

func (d *Detector) escalate(ctx context.Context, rec record, strategy models.ResolutionStrategy, extra map[string]any) outcome {
	details := map[string]any{"escalated": true}
	for k, v := range extra {
		details[k] = v
	}
	if d.reviewer != nil {
		if rs, reason, ok := d.reviewer.Review(ctx, rec.detection); ok {
			details[evidenceRecommendation] = string(rs)
			details["reviewer_reason"] = reason
			rec.detection.Evidence[evidenceRecommendation] = string(rs)
		}
	}
	if d.notifier != nil {
		res := models.ConflictResolution{ConflictID: rec.detection.ID, Strategy: strategy, Details: details}
		if err := d.notifier.Notify(ctx, rec.detection, res); err != nil {
			d.logger.Warn("conflict notification failed", "conflict_id", rec.detection.ID, "error", err)
		}
	}
	return outcome{status: models.ConflictStatusEscalated, reversible: true, details: details}
}

// liveAliases returns the affected aliases that still exist and are not
// deprecated, ordered by creation time then key.
func (d *Detector) liveAliases(rec record) (*models.Snapshot, []models.AliasDefinition) {
	snap := d.source.Snapshot()
	var out []models.AliasDefinition
	for _, k := range rec.aliases {
		a, ok := snap.Aliases[k.Context][k.Name]
		if ok && live(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return AliasEntityID(out[i].Context, out[i].Name) < AliasEntityID(out[j].Context, out[j].Name)
	})
	return snap, out
}

// deprecateLosers keeps the winning alias and deprecates the rest.
func (d *Detector) deprecateLosers(ctx context.Context, rec record, strategy models.ResolutionStrategy, by string) (outcome, error) {
	snap, aliases := d.liveAliases(rec)
	need := 2
	if strategy == models.StrategyDeprecate && len(rec.aliases) == 1 {
		need = 1
	}
	if len(aliases) < need {
		return outcome{status: models.ConflictStatusResolved, reversible: true, details: map[string]any{"obsolete": true}}, nil
	}

	keep := -1
	switch strategy {
	case models.StrategyFirstWins:
		keep = 0
	case models.StrategyLastWins:
		keep = len(aliases) - 1
	case models.StrategyMostRecent:
		keep = 0
		for i := range aliases {
			if !aliases[i].LastUpdated.Before(aliases[keep].LastUpdated) {
				keep = i
			}
		}
	case models.StrategyHighestPriority:
		keep = 0
		for i := range aliases {
			if centrality(snap, aliases[i]) > centrality(snap, aliases[keep]) {
				keep = i
			}
		}
	case models.StrategyDeprecate:
		if len(aliases) > 1 {
			keep = 0
		}
	}

	details := map[string]any{}
	if keep >= 0 {
		details["kept"] = AliasEntityID(aliases[keep].Context, aliases[keep].Name)
	}
	var deprecated []string
	reason := fmt.Sprintf("conflict %s resolved by %s", rec.detection.ID, strategy)
	for i, a := range aliases {
		if i == keep {
			continue
		}
		if _, err := d.mutator.DeprecateAlias(ctx, a.Name, a.Context, reason, by); err != nil {
			details["deprecated"] = deprecated
			return outcome{reversible: true, details: details}, fmt.Errorf("deprecating %s: %w", AliasEntityID(a.Context, a.Name), err)
		}
		deprecated = append(deprecated, AliasEntityID(a.Context, a.Name))
	}
	details["deprecated"] = deprecated
	return outcome{status: models.ConflictStatusResolved, reversible: true, details: details}, nil
}

// renameAliases keeps the first-created alias and renames the others to
// "<name>-<context>", adding a numeric suffix when that name is taken.
func (d *Detector) renameAliases(ctx context.Context, rec record, by string) (outcome, error) {
	snap, aliases := d.liveAliases(rec)
	if len(aliases) < 2 {
		return outcome{status: models.ConflictStatusResolved, details: map[string]any{"obsolete": true}}, nil
	}

	taken := make(map[models.AliasKey]bool)
	for ctxName, bucket := range snap.Aliases {
		for name := range bucket {
			taken[models.AliasKey{Context: ctxName, Name: name}] = true
		}
	}

	renamed := map[string]string{}
	details := map[string]any{"kept": AliasEntityID(aliases[0].Context, aliases[0].Name), "renamed": renamed}
	for _, a := range aliases[1:] {
		base := a.Name + "-" + a.Context
		newName := base
		for n := 2; taken[models.AliasKey{Context: a.Context, Name: newName}]; n++ {
			newName = fmt.Sprintf("%s-%d", base, n)
		}
		if _, err := d.mutator.RenameAlias(ctx, a.Name, a.Context, newName, by); err != nil {
			return outcome{details: details}, fmt.Errorf("renaming %s: %w", AliasEntityID(a.Context, a.Name), err)
		}
		taken[models.AliasKey{Context: a.Context, Name: newName}] = true
		renamed[AliasEntityID(a.Context, a.Name)] = newName
	}
	return outcome{status: models.ConflictStatusResolved, details: details}, nil
}

func centrality(snap *models.Snapshot, a models.AliasDefinition) float64 {
	anchor, ok := snap.Anchors[a.Canonical]
	if !ok {
		return -1
	}
	return anchor.CentralityScore
}

func (d *Detector) auditResolution(ctx context.Context, det models.ConflictDetection, res models.ConflictResolution, status models.ConflictStatus) {
	if d.audit == nil {
		return
	}
	details := map[string]any{
		"type":              string(det.Type),
		"severity":          string(det.Severity),
		"strategy":          string(res.Strategy),
		"status":            string(status),
		"affected_entities": det.AffectedEntities,
	}
	for k, v := range res.Details {
		details[k] = v
	}

	entry := models.AuditEntry{
		Operation:   models.OpConflictResolved,
		EntityType:  models.EntityConflict,
		EntityID:    det.ID,
		PerformedBy: res.ApprovedBy,
		Level:       models.LogLevelInfo,
		Details:     details,
	}
	switch {
	case !res.Success:
		entry.Operation = models.OpConflictResolutionFailed
		entry.Level = models.LogLevelError
		details["error"] = res.Error
	case status == models.ConflictStatusEscalated:
		entry.Operation = models.OpConflictEscalated
		entry.Level = models.LogLevelWarning
	}
	d.audit.LogOperation(ctx, entry)
}

// auditRejection records a resolution attempt refused before any strategy
// ran. The conflict's tracked status is left as it was.
func (d *Detector) auditRejection(ctx context.Context, det models.ConflictDetection, strategy models.ResolutionStrategy, by string, err error) {
	if d.audit == nil {
		return
	}
	d.audit.LogOperation(ctx, models.AuditEntry{
		Operation:   models.OpConflictResolutionFailed,
		EntityType:  models.EntityConflict,
		EntityID:    det.ID,
		PerformedBy: by,
		Level:       models.LogLevelWarning,
		Details: map[string]any{
			"type":     string(det.Type),
			"strategy": string(strategy),
			"status":   string(det.Status),
			"rejected": true,
			"error":    err.Error(),
		},
	})
}
