package models

import "time"

// ConflictType names one class of registry inconsistency.
type ConflictType string

const (
	ConflictAliasDuplicate    ConflictType = "alias_duplicate"
	ConflictCanonicalMismatch ConflictType = "canonical_mismatch"
	ConflictContextOverlap    ConflictType = "context_overlap"
	ConflictNaming            ConflictType = "naming_conflict"
	ConflictSemantic          ConflictType = "semantic_conflict"
	ConflictDependency        ConflictType = "dependency_conflict"
	ConflictVersion           ConflictType = "version_conflict"
	ConflictOwnership         ConflictType = "ownership_conflict"
)

// ValidConflictTypes is the set of all conflict types, in detection order.
var ValidConflictTypes = []ConflictType{
	ConflictAliasDuplicate,
	ConflictCanonicalMismatch,
	ConflictContextOverlap,
	ConflictNaming,
	ConflictSemantic,
	ConflictDependency,
	ConflictVersion,
	ConflictOwnership,
}

// IsValid returns true if the conflict type is recognized.
func (t ConflictType) IsValid() bool {
	for _, v := range ValidConflictTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Severity ranks how urgently a conflict needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (1) to critical (4); unknown is 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ResolutionStrategy is the policy used to fix a detected conflict.
type ResolutionStrategy string

const (
	StrategyFirstWins       ResolutionStrategy = "first_wins"
	StrategyLastWins        ResolutionStrategy = "last_wins"
	StrategyMostRecent      ResolutionStrategy = "most_recent"
	StrategyHighestPriority ResolutionStrategy = "highest_priority"
	StrategyMerge           ResolutionStrategy = "merge"
	StrategyRename          ResolutionStrategy = "rename"
	StrategyDeprecate       ResolutionStrategy = "deprecate"
	StrategyEscalate        ResolutionStrategy = "escalate"
)

// ValidStrategies is the set of all resolution strategies.
var ValidStrategies = []ResolutionStrategy{
	StrategyFirstWins,
	StrategyLastWins,
	StrategyMostRecent,
	StrategyHighestPriority,
	StrategyMerge,
	StrategyRename,
	StrategyDeprecate,
	StrategyEscalate,
}

// IsValid returns true if the strategy is recognized.
func (s ResolutionStrategy) IsValid() bool {
	for _, v := range ValidStrategies {
		if s == v {
			return true
		}
	}
	return false
}

// ConflictStatus tracks a detection through review and resolution.
type ConflictStatus string

const (
	ConflictStatusOpen      ConflictStatus = "open"
	ConflictStatusResolved  ConflictStatus = "resolved"
	ConflictStatusEscalated ConflictStatus = "escalated"
	ConflictStatusFailed    ConflictStatus = "failed"
)

// ConflictDetection is one inconsistency found by a scan.
type ConflictDetection struct {
	ID                  string             `json:"id"`
	Type                ConflictType       `json:"type"`
	Severity            Severity           `json:"severity"`
	Description         string             `json:"description"`
	AffectedEntities    []string           `json:"affected_entities"`
	Evidence            map[string]any     `json:"evidence"`
	SuggestedResolution ResolutionStrategy `json:"suggested_resolution,omitempty"`
	DetectedAt          time.Time          `json:"detected_at"`
	Status              ConflictStatus     `json:"status"`
	AutoResolvable      bool               `json:"auto_resolvable"`
}

// ConflictResolution records the outcome of applying a strategy to a conflict.
type ConflictResolution struct {
	ConflictID string             `json:"conflict_id"`
	Strategy   ResolutionStrategy `json:"strategy"`
	AppliedAt  time.Time          `json:"applied_at"`
	ApprovedBy string             `json:"approved_by"`
	Success    bool               `json:"success"`
	Reversible bool               `json:"reversible"`
	Details    map[string]any     `json:"details,omitempty"`
	Error      string             `json:"error,omitempty"`
}
