package governance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// RuleKind selects how a rule is evaluated. Rules are data, not code:
// each kind maps to one branch of Engine.evaluate.
type RuleKind string

const (
	// KindRequireNonEmpty rejects requests whose Field is blank.
	KindRequireNonEmpty RuleKind = "require_non_empty"
	// KindMaxLength rejects requests whose Field is longer than Max runes.
	KindMaxLength RuleKind = "max_length"
	// KindRequireValidType rejects unknown alias types.
	KindRequireValidType RuleKind = "require_valid_type"
	// KindRequireOwner rejects aliases of anchors that are missing or have no owner.
	KindRequireOwner RuleKind = "require_owner"
	// KindForbidTypeInReservedContext rejects Types placed in a reserved context.
	KindForbidTypeInReservedContext RuleKind = "forbid_type_in_reserved_context"
	// KindRequireExpiry rejects Types created without an explicit expiry.
	KindRequireExpiry RuleKind = "require_expiry"
	// KindNonNegativeExpiry rejects negative expiry offsets.
	KindNonNegativeExpiry RuleKind = "non_negative_expiry"
)

var knownKinds = map[RuleKind]bool{
	KindRequireNonEmpty:             true,
	KindMaxLength:                   true,
	KindRequireValidType:            true,
	KindRequireOwner:                true,
	KindForbidTypeInReservedContext: true,
	KindRequireExpiry:               true,
	KindNonNegativeExpiry:           true,
}

// Request fields addressable by require_non_empty and max_length.
const (
	FieldName        = "name"
	FieldContext     = "context"
	FieldCanonical   = "canonical"
	FieldCreatedBy   = "created_by"
	FieldDescription = "description"
)

// Rule is one declarative precondition on alias creation.
type Rule struct {
	Name  string             `yaml:"name"`
	Kind  RuleKind           `yaml:"kind"`
	Field string             `yaml:"field,omitempty"`
	Max   int                `yaml:"max,omitempty"`
	Types []models.AliasType `yaml:"types,omitempty"`
}

// TypePolicy holds per-alias-type settings.
type TypePolicy struct {
	DefaultTTLDays int `yaml:"default_ttl_days"`
}

// Document is the governance rules file.
type Document struct {
	AliasTypes       map[models.AliasType]TypePolicy `yaml:"alias_types"`
	ReservedContexts []string                        `yaml:"reserved_contexts"`
	Rules            []Rule                          `yaml:"rules"`
}

// DefaultDocument returns the built-in rule set used when no file is configured.
func DefaultDocument() *Document {
	return &Document{
		AliasTypes: map[models.AliasType]TypePolicy{
			models.AliasTypeTemporary: {DefaultTTLDays: 90},
		},
		ReservedContexts: []string{"global"},
		Rules: []Rule{
			{Name: "non_empty_name", Kind: KindRequireNonEmpty, Field: FieldName},
			{Name: "non_empty_context", Kind: KindRequireNonEmpty, Field: FieldContext},
			{Name: "valid_alias_type", Kind: KindRequireValidType},
			{Name: "non_negative_expiry", Kind: KindNonNegativeExpiry},
			{Name: "canonical_owner_required", Kind: KindRequireOwner},
			{Name: "no_temporary_in_reserved_context", Kind: KindForbidTypeInReservedContext, Types: []models.AliasType{models.AliasTypeTemporary}},
			{Name: "migration_requires_expiry", Kind: KindRequireExpiry, Types: []models.AliasType{models.AliasTypeMigration}},
		},
	}
}

// ParseDocument decodes and validates a YAML rules document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing governance rules: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads a YAML rules document from path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading governance rules %s: %w", path, err)
	}
	return ParseDocument(data)
}

// Validate checks that every rule is well formed.
func (d *Document) Validate() error {
	for t, p := range d.AliasTypes {
		if !t.IsValid() {
			return fmt.Errorf("governance: unknown alias type %q in alias_types", t)
		}
		if p.DefaultTTLDays < 0 {
			return fmt.Errorf("governance: alias_types.%s.default_ttl_days must be >= 0", t)
		}
	}

	seen := make(map[string]bool, len(d.Rules))
	for i, r := range d.Rules {
		if r.Name == "" {
			return fmt.Errorf("governance: rule %d has no name", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("governance: duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true

		if !knownKinds[r.Kind] {
			return fmt.Errorf("governance: rule %q has unknown kind %q", r.Name, r.Kind)
		}
		switch r.Kind {
		case KindRequireNonEmpty, KindMaxLength:
			if !validField(r.Field) {
				return fmt.Errorf("governance: rule %q has unknown field %q", r.Name, r.Field)
			}
			if r.Kind == KindMaxLength && r.Max <= 0 {
				return fmt.Errorf("governance: rule %q needs max > 0", r.Name)
			}
		case KindForbidTypeInReservedContext, KindRequireExpiry:
			if len(r.Types) == 0 {
				return fmt.Errorf("governance: rule %q needs at least one type", r.Name)
			}
			for _, t := range r.Types {
				if !t.IsValid() {
					return fmt.Errorf("governance: rule %q lists unknown type %q", r.Name, t)
				}
			}
		}
	}
	return nil
}

func validField(f string) bool {
	switch f {
	case FieldName, FieldContext, FieldCanonical, FieldCreatedBy, FieldDescription:
		return true
	}
	return false
}
