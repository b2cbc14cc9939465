package models

// Snapshot is the full registry state as persisted to the JSON document.
// Aliases are keyed by context, then by alias name.
type Snapshot struct {
	Anchors  map[string]Anchor                     `json:"anchors"`
	Aliases  map[string]map[string]AliasDefinition `json:"aliases"`
	AuditLog []AuditEntry                          `json:"audit_log"`
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Anchors:  make(map[string]Anchor),
		Aliases:  make(map[string]map[string]AliasDefinition),
		AuditLog: []AuditEntry{},
	}
}

// AliasCount returns the number of aliases across all contexts.
func (s *Snapshot) AliasCount() int {
	n := 0
	for _, byName := range s.Aliases {
		n += len(byName)
	}
	return n
}
