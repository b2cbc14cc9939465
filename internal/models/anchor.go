package models

import "time"

// Anchor is a canonical, uniquely identified resource record that aliases point to.
type Anchor struct {
	ID                 string         `json:"id"`
	Family             string         `json:"family"`
	Description        string         `json:"description"`
	Format             string         `json:"format"`
	SourceHint         string         `json:"source_hint"`
	Owner              string         `json:"owner"`
	Version            string         `json:"version"`
	CentralityScore    float64        `json:"centrality_score"`
	ModificationPolicy string         `json:"modification_policy"`
	ValidationRules    []string       `json:"validation_rules"`
	Generates          []string       `json:"generates"`
	Aliasing           map[string]any `json:"aliasing"`
	RegisteredAt       time.Time      `json:"registered_at"`
}

// AnchorAttributes carries the caller-supplied fields of an anchor.
// ID and RegisteredAt are owned by the registry.
type AnchorAttributes struct {
	Family             string         `json:"family"`
	Description        string         `json:"description"`
	Format             string         `json:"format"`
	SourceHint         string         `json:"source_hint"`
	Owner              string         `json:"owner"`
	Version            string         `json:"version"`
	CentralityScore    float64        `json:"centrality_score"`
	ModificationPolicy string         `json:"modification_policy"`
	ValidationRules    []string       `json:"validation_rules"`
	Generates          []string       `json:"generates"`
	Aliasing           map[string]any `json:"aliasing"`
}

// NewAnchor builds an anchor from attributes.
func NewAnchor(id string, attrs AnchorAttributes, registeredAt time.Time) Anchor {
	return Anchor{
		ID:                 id,
		Family:             attrs.Family,
		Description:        attrs.Description,
		Format:             attrs.Format,
		SourceHint:         attrs.SourceHint,
		Owner:              attrs.Owner,
		Version:            attrs.Version,
		CentralityScore:    attrs.CentralityScore,
		ModificationPolicy: attrs.ModificationPolicy,
		ValidationRules:    cloneStrings(attrs.ValidationRules),
		Generates:          cloneStrings(attrs.Generates),
		Aliasing:           cloneMap(attrs.Aliasing),
		RegisteredAt:       registeredAt,
	}
}

// Clone returns a deep copy so callers never share slices or maps with the registry.
func (a Anchor) Clone() Anchor {
	a.ValidationRules = cloneStrings(a.ValidationRules)
	a.Generates = cloneStrings(a.Generates)
	a.Aliasing = cloneMap(a.Aliasing)
	return a
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
