package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

func anchorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Manage canonical anchors",
	}
	cmd.AddCommand(anchorRegisterCmd(), anchorGetCmd(), anchorListCmd())
	return cmd
}

func anchorRegisterCmd() *cobra.Command {
	var (
		attrs  models.AnchorAttributes
		upsert bool
	)

	cmd := &cobra.Command{
		Use:   "register [anchor-id]",
		Short: "Register a canonical anchor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("anchor register: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			if upsert {
				anchor, created, upsertErr := a.registry.UpsertAnchor(ctx, args[0], attrs)
				if upsertErr != nil {
					return fmt.Errorf("anchor register: %w", upsertErr)
				}
				verb := "Updated"
				if created {
					verb = "Registered"
				}
				fmt.Printf("%s anchor %s\n", verb, anchor.ID)
				return nil
			}

			anchor, err := a.registry.RegisterAnchor(ctx, args[0], attrs)
			if err != nil {
				return fmt.Errorf("anchor register: %w", err)
			}
			fmt.Printf("Registered anchor %s\n", anchor.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&attrs.Family, "family", "", "anchor family")
	cmd.Flags().StringVar(&attrs.Description, "description", "", "description")
	cmd.Flags().StringVar(&attrs.Format, "format", "", "data format")
	cmd.Flags().StringVar(&attrs.Owner, "owner", "", "owning team")
	cmd.Flags().StringVar(&attrs.Version, "version", "", "semantic version")
	cmd.Flags().Float64Var(&attrs.CentralityScore, "centrality", 0, "centrality score used by highest_priority resolution")
	cmd.Flags().StringSliceVar(&attrs.Generates, "generates", nil, "ids of anchors this anchor generates")
	cmd.Flags().BoolVar(&upsert, "upsert", false, "update the anchor if it already exists")
	return cmd
}

func anchorGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [anchor-id]",
		Short: "Show an anchor as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("anchor get: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			anchor, err := a.registry.GetAnchor(ctx, args[0])
			if err != nil {
				return fmt.Errorf("anchor get: %w", err)
			}
			if anchor == nil {
				return fmt.Errorf("anchor get: anchor %q not found", args[0])
			}
			return printJSON(anchor)
		},
	}
}

func anchorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered anchors",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("anchor list: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			anchors := a.registry.ListAnchors()
			for _, an := range anchors {
				fmt.Printf("%-30s family=%-12s owner=%-15s version=%s\n", an.ID, an.Family, an.Owner, an.Version)
			}
			if len(anchors) == 0 {
				fmt.Println("No anchors registered.")
			}
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}
