package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/ssot-registry/internal/lifecycle"
)

func maintainCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run lifecycle maintenance once (expiry sweep, conflict auto-resolution, audit retention, flush)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("maintain: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			lm := lifecycle.NewManager(a.registry, logger,
				lifecycle.WithScanner(a.detector),
				lifecycle.WithPurger(a.audit, retentionPolicy()),
			)
			report, err := lm.Run(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("maintain: running lifecycle: %w", err)
			}

			fmt.Printf("Lifecycle report:\n")
			fmt.Printf("  Expired aliases:     %d\n", report.Expired)
			fmt.Printf("  Conflicts found:     %d\n", report.ConflictsFound)
			fmt.Printf("  Conflicts resolved:  %d\n", report.ConflictsResolved)
			fmt.Printf("  Audit rows purged:   %d\n", report.AuditPurged)
			fmt.Printf("  Document flushed:    %t\n", report.Flushed)
			if dryRun {
				fmt.Println("  (dry run, no changes applied)")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without applying")
	return cmd
}
