package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/conflict"
	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/internal/registry"
	"github.com/ajitpratap0/ssot-registry/internal/store"
)

func newMCPServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := audit.Open(context.Background(), audit.Options{Path: filepath.Join(t.TempDir(), "audit.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	reg := registry.New(store.NewMockStore(), nil, eng, nil, logger, registry.Options{})
	det := conflict.NewDetector(reg, reg, reg, conflict.DefaultConfig(), logger)
	return NewServer(reg, det, eng, logger)
}

// makeReq builds a CallToolRequest with the given arguments.
func makeReq(toolName string, args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args
	return req
}

// textContent extracts the first TextContent string from a CallToolResult.
func textContent(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content item")
	tc, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func call(t *testing.T, h func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error), name string, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()
	res, err := h(context.Background(), makeReq(name, args))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestRegisterAddResolve(t *testing.T) {
	srv := newMCPServer(t)

	res := call(t, srv.HandleRegisterAnchor, "register_anchor", map[string]any{
		"id": "A1", "owner": "team1", "generates": "A2, A3",
	})
	require.False(t, res.IsError, textContent(t, res))
	var anchor models.Anchor
	require.NoError(t, json.Unmarshal([]byte(textContent(t, res)), &anchor))
	assert.Equal(t, []string{"A2", "A3"}, anchor.Generates)

	res = call(t, srv.HandleAddAlias, "add_alias", map[string]any{
		"name": "checkout", "canonical": "A1", "context": "frontend", "actor": "bot",
	})
	require.False(t, res.IsError, textContent(t, res))
	var alias models.AliasDefinition
	require.NoError(t, json.Unmarshal([]byte(textContent(t, res)), &alias))
	assert.Equal(t, models.AliasTypePermanent, alias.Type)
	assert.Equal(t, "bot", alias.CreatedBy)

	res = call(t, srv.HandleResolveAlias, "resolve_alias", map[string]any{"name": "checkout", "context": "frontend"})
	require.False(t, res.IsError)
	assert.JSONEq(t, `{"name":"checkout","context":"frontend","canonical":"A1"}`, textContent(t, res))

	res = call(t, srv.HandleListAliases, "list_aliases", map[string]any{"context": "frontend"})
	assert.Contains(t, textContent(t, res), `"checkout"`)

	res = call(t, srv.HandleStats, "registry_stats", nil)
	assert.False(t, res.IsError)
}

func TestToolErrors(t *testing.T) {
	srv := newMCPServer(t)

	res := call(t, srv.HandleResolveAlias, "resolve_alias", map[string]any{"name": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, textContent(t, res), "context is required")

	res = call(t, srv.HandleResolveAlias, "resolve_alias", map[string]any{"name": "x", "context": "y"})
	assert.True(t, res.IsError)
	assert.Contains(t, textContent(t, res), "not found")

	res = call(t, srv.HandleAddAlias, "add_alias", map[string]any{"name": "x", "canonical": "ghost", "context": "y"})
	assert.True(t, res.IsError)

	call(t, srv.HandleRegisterAnchor, "register_anchor", map[string]any{"id": "A1"})
	res = call(t, srv.HandleAddAlias, "add_alias", map[string]any{
		"name": "x", "canonical": "A1", "context": "y", "expires_in_days": -1,
	})
	assert.True(t, res.IsError)
	assert.Contains(t, textContent(t, res), "rule non_negative_expiry")
}

func TestConflictTools(t *testing.T) {
	srv := newMCPServer(t)
	for _, id := range []string{"A1", "A2"} {
		call(t, srv.HandleRegisterAnchor, "register_anchor", map[string]any{"id": id})
	}
	call(t, srv.HandleAddAlias, "add_alias", map[string]any{"name": "checkout", "canonical": "A1", "context": "frontend"})
	call(t, srv.HandleAddAlias, "add_alias", map[string]any{"name": "checkout", "canonical": "A2", "context": "backend"})

	res := call(t, srv.HandleListConflicts, "list_conflicts", nil)
	require.False(t, res.IsError)
	var listed struct {
		Conflicts []models.ConflictDetection `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, res)), &listed))
	require.Len(t, listed.Conflicts, 1)

	res = call(t, srv.HandleResolveConflict, "resolve_conflict", map[string]any{
		"id": listed.Conflicts[0].ID, "strategy": "first_wins", "actor": "alice",
	})
	require.False(t, res.IsError, textContent(t, res))
	var resolution models.ConflictResolution
	require.NoError(t, json.Unmarshal([]byte(textContent(t, res)), &resolution))
	assert.True(t, resolution.Success)

	res = call(t, srv.HandleQueryAudit, "query_audit", map[string]any{"operation": "conflict_resolved"})
	require.False(t, res.IsError)
	var result audit.QueryResult
	require.NoError(t, json.Unmarshal([]byte(textContent(t, res)), &result))
	require.EqualValues(t, 1, result.Total)
	assert.Equal(t, "alice", result.Entries[0].PerformedBy)
}

func TestQueryAudit_InvalidDate(t *testing.T) {
	srv := newMCPServer(t)
	res := call(t, srv.HandleQueryAudit, "query_audit", map[string]any{"start_date": "yesterday"})
	assert.True(t, res.IsError)
}

func TestNilDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(store.NewMockStore(), nil, nil, nil, logger, registry.Options{})
	srv := NewServer(reg, nil, nil, logger)
	require.NotNil(t, srv.MCPServer())

	assert.True(t, call(t, srv.HandleListConflicts, "list_conflicts", nil).IsError)
	assert.True(t, call(t, srv.HandleResolveConflict, "resolve_conflict", map[string]any{"id": "x"}).IsError)
	assert.True(t, call(t, srv.HandleQueryAudit, "query_audit", nil).IsError)
}
