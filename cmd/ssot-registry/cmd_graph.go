package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/ssot-registry/internal/graph"
)

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Project anchors and their generates edges into Neo4j",
	}
	cmd.AddCommand(graphSyncCmd(), graphCyclesCmd())
	return cmd
}

func newProjector(ctx context.Context, logger *slog.Logger) (*graph.Projector, error) {
	if !cfg.Graph.Enabled() {
		return nil, errors.New("graph.uri is not configured")
	}
	return graph.NewProjector(ctx, graph.Options{
		URI:      cfg.Graph.URI,
		User:     cfg.Graph.User,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	}, logger)
}

func graphSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replace the graph projection with the registry's anchors",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			p, err := newProjector(ctx, logger)
			if err != nil {
				return fmt.Errorf("graph sync: %w", err)
			}
			defer func() { _ = p.Close(context.WithoutCancel(ctx)) }()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("graph sync: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			res, err := p.Sync(ctx, a.registry.ListAnchors())
			if err != nil {
				return fmt.Errorf("graph sync: %w", err)
			}
			fmt.Printf("Projected %d anchors and %d generates edges\n", res.Anchors, res.Edges)
			return nil
		},
	}
}

func graphCyclesCmd() *cobra.Command {
	var maxLen int

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "List generates cycles found in the graph projection",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			p, err := newProjector(ctx, logger)
			if err != nil {
				return fmt.Errorf("graph cycles: %w", err)
			}
			defer func() { _ = p.Close(context.WithoutCancel(ctx)) }()

			cycles, err := p.Cycles(ctx, maxLen)
			if err != nil {
				return fmt.Errorf("graph cycles: %w", err)
			}
			for _, c := range cycles {
				fmt.Println(strings.Join(append(c, c[0]), " -> "))
			}
			if len(cycles) == 0 {
				fmt.Println("No cycles found.")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxLen, "max-length", 8, "longest cycle to search for")
	return cmd
}
