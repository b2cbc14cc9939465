package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the registry document as JSON or the aliases as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			var w *os.File
			if output == "" || output == "-" {
				w = os.Stdout
			} else {
				w, err = os.Create(output)
				if err != nil {
					return fmt.Errorf("export: creating output file: %w", err)
				}
				defer func() { _ = w.Close() }()
			}

			count := 0
			switch format {
			case "json":
				snap := a.registry.Snapshot()
				count = len(snap.Anchors)
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(snap); encErr != nil {
					return fmt.Errorf("export: encoding JSON: %w", encErr)
				}
			case "csv":
				cw := csv.NewWriter(w)
				headers := []string{"context", "name", "canonical", "type", "status", "created_by", "created_at", "expires_at", "approved_by"}
				if writeErr := cw.Write(headers); writeErr != nil {
					return fmt.Errorf("export: writing CSV header: %w", writeErr)
				}
				aliases := a.registry.ListAliases("")
				count = len(aliases)
				for _, al := range aliases {
					expires := ""
					if al.ExpiresAt != nil {
						expires = al.ExpiresAt.Format(time.RFC3339)
					}
					row := []string{
						al.Context,
						al.Name,
						al.Canonical,
						string(al.Type),
						string(al.Status),
						al.CreatedBy,
						al.CreatedAt.Format(time.RFC3339),
						expires,
						al.ApprovedBy,
					}
					if writeErr := cw.Write(row); writeErr != nil {
						return fmt.Errorf("export: writing CSV row: %w", writeErr)
					}
				}
				cw.Flush()
				if flushErr := cw.Error(); flushErr != nil {
					return fmt.Errorf("export: flushing CSV: %w", flushErr)
				}
			default:
				return fmt.Errorf("export: unsupported format %q (use json or csv)", format)
			}

			if output != "" && output != "-" {
				fmt.Fprintf(os.Stderr, "Exported %s records to %s\n", strconv.Itoa(count), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json (full document) or csv (aliases)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	return cmd
}
