package conflict_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ssot-registry/internal/conflict"
	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/internal/registry"
	"github.com/ajitpratap0/ssot-registry/internal/store"
)

func TestDetectorAgainstRegistry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	reg := registry.New(store.NewMockStore(), nil, nil, nil, logger, registry.Options{Clock: clock})
	ctx := context.Background()

	for _, id := range []string{"A1", "A2"} {
		_, err := reg.RegisterAnchor(ctx, id, models.AnchorAttributes{Owner: "team-" + id})
		require.NoError(t, err)
	}
	add := func(name, canonical, aliasContext string) {
		_, err := reg.AddAlias(ctx, registry.AddAliasRequest{
			Name: name, Canonical: canonical, Context: aliasContext,
			Type: models.AliasTypePermanent, CreatedBy: "u1",
		})
		require.NoError(t, err)
		now = now.Add(time.Minute)
	}
	add("checkout", "A1", "frontend")
	add("checkout", "A2", "backend")

	d := conflict.NewDetector(reg, reg, reg, conflict.DefaultConfig(), logger, conflict.WithClock(clock))
	found, err := d.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, models.ConflictAliasDuplicate, found[0].Type)
	assert.Equal(t, []string{"backend:checkout", "frontend:checkout"}, found[0].AffectedEntities)

	res, err := d.ResolveConflict(ctx, found[0].ID, models.StrategyFirstWins, "alice")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "frontend:checkout", res.Details["kept"])

	got, err := reg.ResolveAlias(ctx, "checkout", "frontend")
	require.NoError(t, err)
	assert.Equal(t, "A1", got)
	_, err = reg.ResolveAlias(ctx, "checkout", "backend")
	assert.ErrorIs(t, err, registry.ErrValidation)

	var ops []string
	for _, e := range reg.Snapshot().AuditLog {
		ops = append(ops, e.Operation)
		if e.Operation == models.OpDeprecateAlias {
			assert.Equal(t, "alice", e.PerformedBy)
			assert.Equal(t, "backend:checkout", e.EntityID)
		}
	}
	assert.Contains(t, ops, models.OpDeprecateAlias)
	assert.Contains(t, ops, models.OpConflictResolved)

	found, err = d.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}
