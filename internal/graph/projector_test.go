package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

func TestAnchorParams_SortedByID(t *testing.T) {
	got := anchorParams([]models.Anchor{
		{ID: "b", Family: "api", Owner: "team2", Version: "2.0"},
		{ID: "a", Family: "db", Owner: "team1", Version: "1.0", CentralityScore: 0.5},
	})
	assert.Equal(t, []map[string]any{
		{"id": "a", "family": "db", "owner": "team1", "version": "1.0", "centrality_score": 0.5},
		{"id": "b", "family": "api", "owner": "team2", "version": "2.0", "centrality_score": 0.0},
	}, got)
}

func TestEdgeParams_SkipsUnknownAndDuplicates(t *testing.T) {
	got := edgeParams([]models.Anchor{
		{ID: "b", Generates: []string{"a", "a", "ghost"}},
		{ID: "a", Generates: []string{"b", "a"}},
	})
	assert.Equal(t, []map[string]any{
		{"source": "a", "target": "a"},
		{"source": "a", "target": "b"},
		{"source": "b", "target": "a"},
	}, got)
}

func TestNormalizeCycles(t *testing.T) {
	raw := [][]string{
		{"c", "a", "b", "c"},
		{"a", "b", "c", "a"},
		{"b", "c", "a", "b"},
		{"x", "x"},
		{"b", "a", "b"},
		{"a", "b", "a"},
		{},
	}
	assert.Equal(t, [][]string{
		{"x"},
		{"a", "b"},
		{"a", "b", "c"},
	}, normalizeCycles(raw))
}
