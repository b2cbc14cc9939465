package main

import (
	"context"
	"fmt"
	"log"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	ssotmcp "github.com/ajitpratap0/ssot-registry/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  resolve_alias     resolve an alias to its canonical id
  add_alias         add an alias (governance rules apply)
  register_anchor   register a canonical anchor
  list_aliases      list aliases, optionally by context
  list_conflicts    scan for and list conflicts
  resolve_conflict  resolve a conflict with a strategy
  query_audit       query the audit log
  registry_stats    registry statistics

Changes are flushed to the registry document when the server exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			srv := ssotmcp.NewServer(a.registry, a.detector, a.audit, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: ssot-registry MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
