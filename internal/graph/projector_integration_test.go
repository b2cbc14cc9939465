//go:build integration

package graph

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

func TestProjector_SyncAndCycles(t *testing.T) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	ctx := context.Background()
	p, err := NewProjector(ctx, Options{
		URI:      uri,
		User:     os.Getenv("NEO4J_USER"),
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: "neo4j",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	res, err := p.Sync(ctx, []models.Anchor{
		{ID: "it-a", Generates: []string{"it-b"}},
		{ID: "it-b", Generates: []string{"it-c"}},
		{ID: "it-c", Generates: []string{"it-a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Anchors: 3, Edges: 3}, res)

	cycles, err := p.Cycles(ctx, 5)
	require.NoError(t, err)
	assert.Contains(t, cycles, []string{"it-a", "it-b", "it-c"})

	_, err = p.Sync(ctx, nil)
	require.NoError(t, err)
}
