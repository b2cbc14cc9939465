package models

import "time"

// LogLevel is the severity recorded with an audit entry.
type LogLevel string

const (
	LogLevelDebug    LogLevel = "debug"
	LogLevelInfo     LogLevel = "info"
	LogLevelWarning  LogLevel = "warning"
	LogLevelError    LogLevel = "error"
	LogLevelCritical LogLevel = "critical"
)

// ValidLogLevels is the set of all valid audit log levels.
var ValidLogLevels = []LogLevel{
	LogLevelDebug,
	LogLevelInfo,
	LogLevelWarning,
	LogLevelError,
	LogLevelCritical,
}

// IsValid returns true if the level is recognized.
func (l LogLevel) IsValid() bool {
	for _, v := range ValidLogLevels {
		if l == v {
			return true
		}
	}
	return false
}

// Audit operation names emitted by the registry and conflict detector.
const (
	OpRegisterAnchor           = "register_anchor"
	OpUpdateAnchor             = "update_anchor"
	OpAddAlias                 = "add_alias"
	OpResolveAlias             = "resolve_alias"
	OpApproveAlias             = "approve_alias"
	OpDeprecateAlias           = "deprecate_alias"
	OpRenameAlias              = "rename_alias"
	OpRemoveAlias              = "remove_alias"
	OpAliasExpired             = "alias_expired"
	OpSecurityEvent            = "security_event"
	OpConflictResolved         = "conflict_resolved"
	OpConflictResolutionFailed = "conflict_resolution_failed"
	OpConflictEscalated        = "conflict_escalated"
)

// Audit entity types.
const (
	EntityAnchor   = "anchor"
	EntityAlias    = "alias"
	EntityConflict = "conflict"
)

// AuditEntry is an immutable record of one registry operation.
type AuditEntry struct {
	ID          string         `json:"id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Operation   string         `json:"operation"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Details     map[string]any `json:"details"`
	PerformedBy string         `json:"performed_by"`
	Context     string         `json:"context"`
	Level       LogLevel       `json:"log_level,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
}
