package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/internal/store"
)

type cliEnv struct {
	dir        string
	configPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	configPath := filepath.Join(dir, "config.yaml")
	yaml := "registry:\n  path: " + filepath.Join(dir, "registry.json") + "\n" +
		"audit:\n  path: " + filepath.Join(dir, "audit.db") + "\n  report_dir: " + filepath.Join(dir, "reports") + "\n" +
		"cache:\n  backend: memory\n" +
		"logging:\n  level: error\n"
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))
	return &cliEnv{dir: dir, configPath: configPath}
}

func (e *cliEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(append([]string{"--config", e.configPath, "--actor", "tester"}, args...))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func (e *cliEnv) snapshot(t *testing.T) *models.Snapshot {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(e.dir, "registry.json"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func TestCLI_AnchorAliasRoundTrip(t *testing.T) {
	env := newCLIEnv(t)

	require.NoError(t, env.run(t, "anchor", "register", "A1", "--owner", "team1", "--family", "api"))
	require.Error(t, env.run(t, "anchor", "register", "A1"), "duplicate anchor")
	require.NoError(t, env.run(t, "alias", "add", "checkout", "A1", "frontend"))
	require.NoError(t, env.run(t, "alias", "resolve", "checkout", "frontend"))
	require.Error(t, env.run(t, "alias", "resolve", "checkout", "backend"))
	require.Error(t, env.run(t, "alias", "add", "tmp", "A1", "global", "--type", "temporary"))

	snap := env.snapshot(t)
	require.Contains(t, snap.Anchors, "A1")
	alias, ok := snap.Aliases["frontend"]["checkout"]
	require.True(t, ok)
	assert.Equal(t, "A1", alias.Canonical)
	assert.Equal(t, "tester", alias.CreatedBy)

	eng, err := audit.Open(context.Background(), audit.Options{Path: filepath.Join(env.dir, "audit.db")}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()
	res, err := eng.QueryAuditLogs(context.Background(), audit.Filter{Operations: []string{models.OpAddAlias}})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, "tester", res.Entries[0].PerformedBy)
	assert.Equal(t, "ssot-registry-cli", res.Entries[0].UserAgent)
}

func TestCLI_ExpiryAndMaintain(t *testing.T) {
	env := newCLIEnv(t)

	require.NoError(t, env.run(t, "anchor", "register", "A1"))
	require.NoError(t, env.run(t, "alias", "add", "flash", "A1", "sale", "--expires-in-days", "0"))
	require.Error(t, env.run(t, "alias", "resolve", "flash", "sale"))

	require.NoError(t, env.run(t, "maintain", "--dry-run"))
	assert.Contains(t, env.snapshot(t).Aliases["sale"], "flash", "dry run keeps the alias")

	require.NoError(t, env.run(t, "maintain"))
	assert.NotContains(t, env.snapshot(t).Aliases, "sale")
}

func TestCLI_ConflictsAndExport(t *testing.T) {
	env := newCLIEnv(t)

	require.NoError(t, env.run(t, "anchor", "register", "A1"))
	require.NoError(t, env.run(t, "anchor", "register", "A2"))
	require.NoError(t, env.run(t, "alias", "add", "checkout", "A1", "frontend"))
	require.NoError(t, env.run(t, "alias", "add", "checkout", "A2", "backend"))
	require.NoError(t, env.run(t, "conflicts", "scan"))
	require.Error(t, env.run(t, "conflicts", "resolve", "no-such-id"))

	out := filepath.Join(env.dir, "aliases.csv")
	require.NoError(t, env.run(t, "export", "--format", "csv", "-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "frontend,checkout,A1")
	assert.Contains(t, string(data), "backend,checkout,A2")

	require.Error(t, env.run(t, "export", "--format", "xml", "-o", filepath.Join(env.dir, "x")))
}

func TestCLI_AuditCommands(t *testing.T) {
	env := newCLIEnv(t)

	require.NoError(t, env.run(t, "anchor", "register", "A1"))
	require.NoError(t, env.run(t, "audit", "query", "--operation", "register_anchor"))
	require.NoError(t, env.run(t, "audit", "stats"))
	require.Error(t, env.run(t, "audit", "query", "--since", "yesterday"))

	require.NoError(t, env.run(t, "audit", "report", "--format", "json"))
	entries, err := os.ReadDir(filepath.Join(env.dir, "reports"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, env.run(t, "audit", "cleanup"))
	require.NoError(t, env.run(t, "audit", "cleanup", "--days", "0", "--level", "info"))
}

func TestCLI_GraphRequiresURI(t *testing.T) {
	env := newCLIEnv(t)
	err := env.run(t, "graph", "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph.uri")
}
