package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

func conflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect and resolve registry conflicts",
	}
	cmd.AddCommand(conflictsScanCmd(), conflictsResolveCmd())
	return cmd
}

func conflictsScanCmd() *cobra.Command {
	var (
		autoResolve bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run every conflict detector",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("conflicts scan: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			found, err := a.detector.Scan(ctx)
			if err != nil {
				return fmt.Errorf("conflicts scan: %w", err)
			}
			if asJSON {
				if err := printJSON(found); err != nil {
					return err
				}
			} else {
				for _, c := range found {
					fmt.Printf("%s [%s/%s] %s\n", c.ID, c.Type, c.Severity, c.Description)
					fmt.Printf("    Affects: %s | Suggested: %s\n", strings.Join(c.AffectedEntities, ", "), c.SuggestedResolution)
				}
				if len(found) == 0 {
					fmt.Println("No conflicts found.")
				}
			}

			if !autoResolve {
				return nil
			}
			results, err := a.detector.AutoResolveConflicts(ctx)
			if err != nil {
				return fmt.Errorf("conflicts scan: auto-resolving: %w", err)
			}
			for _, r := range results {
				printResolution(r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoResolve, "auto-resolve", false, "apply suggested strategies to auto-resolvable conflict types")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print conflicts as JSON")
	return cmd
}

func conflictsResolveCmd() *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "resolve [conflict-id]",
		Short: "Resolve a conflict found by a scan in the same run",
		Long: `Conflicts are tracked in memory, so resolve rescans the registry first and
then applies the strategy to the conflict with the given id. Conflict ids are
stable across scans while the same aliases are involved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("conflicts resolve: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			if _, err := a.detector.Scan(ctx); err != nil {
				return fmt.Errorf("conflicts resolve: scanning: %w", err)
			}
			res, err := a.detector.ResolveConflict(ctx, args[0], models.ResolutionStrategy(strategy), actor)
			if res != nil {
				printResolution(*res)
			}
			if err != nil {
				return fmt.Errorf("conflicts resolve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "resolution strategy (default: the suggested one)")
	return cmd
}

func printResolution(r models.ConflictResolution) {
	status := "resolved"
	if !r.Success {
		status = "FAILED: " + r.Error
	}
	fmt.Printf("%s via %s: %s\n", r.ConflictID, r.Strategy, status)
}
