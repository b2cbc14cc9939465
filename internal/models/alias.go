package models

import (
	"strings"
	"time"
)

// AliasType classifies the purpose and lifetime of an alias.
type AliasType string

const (
	AliasTypePermanent   AliasType = "permanent"
	AliasTypeTemporary   AliasType = "temporary"
	AliasTypeContextual  AliasType = "contextual"
	AliasTypeMigration   AliasType = "migration"
	AliasTypeSystem      AliasType = "system"
	AliasTypeApplication AliasType = "application"
	AliasTypeFrenlyAI    AliasType = "frenly_ai"
)

// ValidAliasTypes is the set of all valid alias types.
var ValidAliasTypes = []AliasType{
	AliasTypePermanent,
	AliasTypeTemporary,
	AliasTypeContextual,
	AliasTypeMigration,
	AliasTypeSystem,
	AliasTypeApplication,
	AliasTypeFrenlyAI,
}

// IsValid returns true if the alias type is recognized.
func (t AliasType) IsValid() bool {
	for _, v := range ValidAliasTypes {
		if t == v {
			return true
		}
	}
	return false
}

// AliasStatus is the lifecycle state of an alias.
type AliasStatus string

const (
	AliasStatusActive          AliasStatus = "active"
	AliasStatusExpired         AliasStatus = "expired"
	AliasStatusDeprecated      AliasStatus = "deprecated"
	AliasStatusPendingApproval AliasStatus = "pending_approval"
)

// ValidAliasStatuses is the set of all valid alias statuses.
var ValidAliasStatuses = []AliasStatus{
	AliasStatusActive,
	AliasStatusExpired,
	AliasStatusDeprecated,
	AliasStatusPendingApproval,
}

// IsValid returns true if the alias status is recognized.
func (s AliasStatus) IsValid() bool {
	for _, v := range ValidAliasStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// AliasDefinition is a named pointer to a canonical anchor within one context.
type AliasDefinition struct {
	Name        string      `json:"name"`
	Canonical   string      `json:"canonical"`
	Context     string      `json:"context"`
	Type        AliasType   `json:"type"`
	Status      AliasStatus `json:"status"`
	Description string      `json:"description"`
	CreatedBy   string      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   *time.Time  `json:"expires_at"`
	ApprovedBy  string      `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time  `json:"approved_at"`
	LastUpdated time.Time   `json:"last_updated"`
}

// IsExpired reports whether the alias has a TTL that lapsed at or before now.
func (a *AliasDefinition) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// Clone returns a copy that shares no pointers with a.
func (a AliasDefinition) Clone() AliasDefinition {
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		a.ExpiresAt = &t
	}
	if a.ApprovedAt != nil {
		t := *a.ApprovedAt
		a.ApprovedAt = &t
	}
	return a
}

// AliasKey identifies an alias by (context, name).
type AliasKey struct {
	Context string `json:"context"`
	Name    string `json:"name"`
}

var idEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// ID renders the key as "context:name" with '%' and ':' percent-encoded in
// each segment, so distinct keys never share an id.
func (k AliasKey) ID() string {
	return idEscaper.Replace(k.Context) + ":" + idEscaper.Replace(k.Name)
}

// RegistryStats holds summary counts about the registry contents.
type RegistryStats struct {
	Anchors   int                       `json:"anchors"`
	Aliases   int                       `json:"aliases"`
	Contexts  int                       `json:"contexts"`
	ByStatus  map[string]int            `json:"by_status"`
	ByType    map[string]int            `json:"by_type"`
	ByContext map[string]map[string]int `json:"by_context"`
}
