// Package mcp exposes the alias registry as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/conflict"
	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/internal/registry"
)

const (
	// defaultAuditLimit caps query_audit results when no limit is given.
	defaultAuditLimit = 50

	// mcpActor is recorded as the performer when a tool call names no actor.
	mcpActor = "mcp"
)

// Server wraps an MCPServer with registry dependencies.
type Server struct {
	mcp      *mcpserver.MCPServer
	registry *registry.Registry
	detector *conflict.Detector
	audit    *audit.Engine
	logger   *slog.Logger
}

// NewServer creates a new MCP server. det and auditEngine may be nil; the
// tools that need them then return an error result instead of panicking.
func NewServer(reg *registry.Registry, det *conflict.Detector, auditEngine *audit.Engine, logger *slog.Logger) *Server {
	s := &Server{
		registry: reg,
		detector: det,
		audit:    auditEngine,
		logger:   logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"ssot-registry",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildResolveAliasTool(), s.handleResolveAlias)
	mcpSrv.AddTool(buildAddAliasTool(), s.handleAddAlias)
	mcpSrv.AddTool(buildRegisterAnchorTool(), s.handleRegisterAnchor)
	mcpSrv.AddTool(buildListAliasesTool(), s.handleListAliases)
	mcpSrv.AddTool(buildListConflictsTool(), s.handleListConflicts)
	mcpSrv.AddTool(buildResolveConflictTool(), s.handleResolveConflict)
	mcpSrv.AddTool(buildQueryAuditTool(), s.handleQueryAudit)
	mcpSrv.AddTool(buildStatsTool(), s.handleStats)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleResolveAlias is the exported handler for the "resolve_alias" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleResolveAlias(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleResolveAlias(ctx, req)
}

// HandleAddAlias is the exported handler for the "add_alias" tool.
func (s *Server) HandleAddAlias(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAddAlias(ctx, req)
}

// HandleRegisterAnchor is the exported handler for the "register_anchor" tool.
func (s *Server) HandleRegisterAnchor(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRegisterAnchor(ctx, req)
}

// HandleListAliases is the exported handler for the "list_aliases" tool.
func (s *Server) HandleListAliases(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListAliases(ctx, req)
}

// HandleListConflicts is the exported handler for the "list_conflicts" tool.
func (s *Server) HandleListConflicts(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListConflicts(ctx, req)
}

// HandleResolveConflict is the exported handler for the "resolve_conflict" tool.
func (s *Server) HandleResolveConflict(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleResolveConflict(ctx, req)
}

// HandleQueryAudit is the exported handler for the "query_audit" tool.
func (s *Server) HandleQueryAudit(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleQueryAudit(ctx, req)
}

// HandleStats is the exported handler for the "registry_stats" tool.
func (s *Server) HandleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStats(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// toolError renders a registry error as a tool error result. Validation
// errors carry the rule name so the client can react to it.
func toolError(op string, err error) *mcpgo.CallToolResult {
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		return mcpgo.NewToolResultErrorf("%s failed (rule %s): %s", op, verr.Rule, err.Error())
	}
	return mcpgo.NewToolResultErrorf("%s failed: %s", op, err.Error())
}

// withActor attaches the tool's actor argument as the caller.
func withActor(ctx context.Context, req mcpgo.CallToolRequest) (context.Context, string) {
	actor := strings.TrimSpace(req.GetString("actor", ""))
	if actor == "" {
		actor = mcpActor
	}
	return registry.WithCaller(ctx, registry.Caller{Actor: actor, UserAgent: "mcp"}), actor
}

func required(req mcpgo.CallToolRequest, keys ...string) (map[string]string, *mcpgo.CallToolResult) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v := strings.TrimSpace(req.GetString(k, ""))
		if v == "" {
			return nil, mcpgo.NewToolResultErrorf("%s is required and must not be empty", k)
		}
		out[k] = v
	}
	return out, nil
}

// --- tool definitions ---

func actorOption() mcpgo.ToolOption {
	return mcpgo.WithString("actor",
		mcpgo.Description("Who is performing the operation (default: mcp)"),
	)
}

func buildResolveAliasTool() mcpgo.Tool {
	return mcpgo.NewTool("resolve_alias",
		mcpgo.WithDescription("Resolve an alias name within a context to its canonical anchor id."),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Alias name")),
		mcpgo.WithString("context", mcpgo.Required(), mcpgo.Description("Alias context")),
		actorOption(),
	)
}

func buildAddAliasTool() mcpgo.Tool {
	return mcpgo.NewTool("add_alias",
		mcpgo.WithDescription("Add an alias for a registered anchor. Governance rules apply."),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Alias name")),
		mcpgo.WithString("canonical", mcpgo.Required(), mcpgo.Description("Canonical anchor id")),
		mcpgo.WithString("context", mcpgo.Required(), mcpgo.Description("Alias context")),
		mcpgo.WithString("type",
			mcpgo.Description("Alias type: permanent, temporary, contextual, migration, system, application, frenly_ai (default: permanent)"),
		),
		mcpgo.WithString("description", mcpgo.Description("Free-form description")),
		mcpgo.WithNumber("expires_in_days",
			mcpgo.Description("Days until the alias expires; 0 expires immediately. Omit for the type default."),
		),
		mcpgo.WithBoolean("requires_approval", mcpgo.Description("Create the alias pending approval")),
		actorOption(),
	)
}

func buildRegisterAnchorTool() mcpgo.Tool {
	return mcpgo.NewTool("register_anchor",
		mcpgo.WithDescription("Register a new canonical anchor."),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Anchor id")),
		mcpgo.WithString("family", mcpgo.Description("Anchor family")),
		mcpgo.WithString("owner", mcpgo.Description("Owning team")),
		mcpgo.WithString("version", mcpgo.Description("Semantic version")),
		mcpgo.WithString("generates",
			mcpgo.Description("Comma-separated ids of anchors this one generates"),
		),
		actorOption(),
	)
}

func buildListAliasesTool() mcpgo.Tool {
	return mcpgo.NewTool("list_aliases",
		mcpgo.WithDescription("List aliases, optionally restricted to one context."),
		mcpgo.WithString("context", mcpgo.Description("Only list aliases in this context")),
	)
}

func buildListConflictsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_conflicts",
		mcpgo.WithDescription("Scan the registry for conflicts and list every tracked conflict."),
		mcpgo.WithBoolean("scan", mcpgo.Description("Run a fresh scan first (default: true)")),
	)
}

func buildResolveConflictTool() mcpgo.Tool {
	return mcpgo.NewTool("resolve_conflict",
		mcpgo.WithDescription("Resolve a detected conflict with a strategy."),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Conflict id")),
		mcpgo.WithString("strategy",
			mcpgo.Description("first_wins, last_wins, most_recent, highest_priority, merge, rename, deprecate or manual (default: the suggested strategy)"),
		),
		actorOption(),
	)
}

func buildQueryAuditTool() mcpgo.Tool {
	return mcpgo.NewTool("query_audit",
		mcpgo.WithDescription("Query the audit log."),
		mcpgo.WithString("operation", mcpgo.Description("Comma-separated operations")),
		mcpgo.WithString("entity_id", mcpgo.Description("Comma-separated entity ids")),
		mcpgo.WithString("performed_by", mcpgo.Description("Actor")),
		mcpgo.WithString("context", mcpgo.Description("Alias context")),
		mcpgo.WithString("search", mcpgo.Description("Free-text search over details")),
		mcpgo.WithString("start_date", mcpgo.Description("RFC 3339 or YYYY-MM-DD")),
		mcpgo.WithString("end_date", mcpgo.Description("RFC 3339 or YYYY-MM-DD")),
		mcpgo.WithNumber("limit", mcpgo.Description("Maximum entries (default: 50)")),
	)
}

func buildStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("registry_stats",
		mcpgo.WithDescription("Registry statistics: anchors, aliases by context, type and status."),
	)
}

// --- tool handlers ---

func (s *Server) handleResolveAlias(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, errResult := required(req, "name", "context")
	if errResult != nil {
		return errResult, nil
	}
	ctx, _ = withActor(ctx, req)
	canonical, err := s.registry.ResolveAlias(ctx, args["name"], args["context"])
	if err != nil {
		return toolError("resolve", err), nil
	}
	return toolResultJSON(map[string]any{
		"name":      args["name"],
		"context":   args["context"],
		"canonical": canonical,
	})
}

func (s *Server) handleAddAlias(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, errResult := required(req, "name", "canonical", "context")
	if errResult != nil {
		return errResult, nil
	}
	ctx, actor := withActor(ctx, req)

	aliasType := models.AliasTypePermanent
	if t := req.GetString("type", ""); t != "" {
		aliasType = models.AliasType(t)
	}
	addReq := registry.AddAliasRequest{
		Name:             args["name"],
		Canonical:        args["canonical"],
		Context:          args["context"],
		Type:             aliasType,
		Description:      req.GetString("description", ""),
		CreatedBy:        actor,
		RequiresApproval: req.GetBool("requires_approval", false),
	}
	if _, ok := req.GetArguments()["expires_in_days"]; ok {
		days := req.GetInt("expires_in_days", 0)
		addReq.ExpiresInDays = &days
	}

	alias, err := s.registry.AddAlias(ctx, addReq)
	if err != nil {
		return toolError("add alias", err), nil
	}
	s.logger.Info("mcp: alias added", "name", alias.Name, "context", alias.Context, "canonical", alias.Canonical)
	return toolResultJSON(alias)
}

func (s *Server) handleRegisterAnchor(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, errResult := required(req, "id")
	if errResult != nil {
		return errResult, nil
	}
	ctx, _ = withActor(ctx, req)

	attrs := models.AnchorAttributes{
		Family:  req.GetString("family", ""),
		Owner:   req.GetString("owner", ""),
		Version: req.GetString("version", ""),
	}
	for _, g := range strings.Split(req.GetString("generates", ""), ",") {
		if g = strings.TrimSpace(g); g != "" {
			attrs.Generates = append(attrs.Generates, g)
		}
	}

	anchor, err := s.registry.RegisterAnchor(ctx, args["id"], attrs)
	if err != nil {
		return toolError("register anchor", err), nil
	}
	s.logger.Info("mcp: anchor registered", "id", anchor.ID)
	return toolResultJSON(anchor)
}

func (s *Server) handleListAliases(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return toolResultJSON(map[string]any{
		"aliases": s.registry.ListAliases(req.GetString("context", "")),
	})
}

func (s *Server) handleListConflicts(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.detector == nil {
		return mcpgo.NewToolResultError("conflict detection is unavailable"), nil
	}
	if req.GetBool("scan", true) {
		if _, err := s.detector.Scan(ctx); err != nil {
			return mcpgo.NewToolResultErrorf("scan failed: %s", err.Error()), nil
		}
	}
	return toolResultJSON(map[string]any{
		"conflicts": s.detector.Conflicts(),
	})
}

func (s *Server) handleResolveConflict(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.detector == nil {
		return mcpgo.NewToolResultError("conflict detection is unavailable"), nil
	}
	args, errResult := required(req, "id")
	if errResult != nil {
		return errResult, nil
	}
	ctx, actor := withActor(ctx, req)

	res, err := s.detector.ResolveConflict(ctx, args["id"], models.ResolutionStrategy(req.GetString("strategy", "")), actor)
	if err != nil && res == nil {
		return toolError("resolve conflict", err), nil
	}
	if !res.Success {
		b, _ := json.Marshal(res)
		return mcpgo.NewToolResultError(string(b)), nil
	}
	return toolResultJSON(res)
}

func (s *Server) handleQueryAudit(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.audit == nil {
		return mcpgo.NewToolResultError("audit store is unavailable"), nil
	}
	values := make(map[string][]string)
	for _, k := range []string{"operation", "entity_id", "performed_by", "context", "search", "start_date", "end_date"} {
		if v := req.GetString(k, ""); v != "" {
			values[k] = []string{v}
		}
	}
	f, err := audit.FilterFromValues(values)
	if err != nil {
		return mcpgo.NewToolResultErrorf("invalid filter: %s", err.Error()), nil
	}
	f.Limit = req.GetInt("limit", defaultAuditLimit)
	if f.Limit <= 0 {
		f.Limit = defaultAuditLimit
	}

	res, err := s.audit.QueryAuditLogs(ctx, f)
	if err != nil {
		return mcpgo.NewToolResultErrorf("audit query failed: %s", err.Error()), nil
	}
	return toolResultJSON(res)
}

func (s *Server) handleStats(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return toolResultJSON(s.registry.Stats())
}
