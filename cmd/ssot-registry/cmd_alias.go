package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/internal/registry"
)

func aliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage aliases",
	}
	cmd.AddCommand(
		aliasAddCmd(),
		aliasResolveCmd(),
		aliasApproveCmd(),
		aliasDeprecateCmd(),
		aliasRenameCmd(),
		aliasListCmd(),
		aliasRemoveCmd(),
	)
	return cmd
}

func aliasAddCmd() *cobra.Command {
	var (
		aliasType        string
		description      string
		expiresInDays    int
		requiresApproval bool
	)

	cmd := &cobra.Command{
		Use:   "add [name] [canonical-id] [context]",
		Short: "Add an alias for a canonical anchor",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("alias add: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			req := registry.AddAliasRequest{
				Name:             args[0],
				Canonical:        args[1],
				Context:          args[2],
				Type:             models.AliasType(aliasType),
				Description:      description,
				CreatedBy:        actor,
				RequiresApproval: requiresApproval,
			}
			if cmd.Flags().Changed("expires-in-days") {
				req.ExpiresInDays = &expiresInDays
			}

			alias, err := a.registry.AddAlias(ctx, req)
			if err != nil {
				return fmt.Errorf("alias add: %w", err)
			}
			fmt.Printf("Added %s alias %s:%s -> %s [%s]\n", alias.Type, alias.Context, alias.Name, alias.Canonical, alias.Status)
			if alias.ExpiresAt != nil {
				fmt.Printf("  Expires: %s\n", alias.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&aliasType, "type", string(models.AliasTypePermanent), "alias type")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().IntVar(&expiresInDays, "expires-in-days", 0, "days until expiry (0 expires immediately; omit for the type default)")
	cmd.Flags().BoolVar(&requiresApproval, "requires-approval", false, "create the alias pending approval")
	return cmd
}

func aliasResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [name] [context]",
		Short: "Resolve an alias to its canonical id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("alias resolve: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			canonical, err := a.registry.ResolveAlias(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("alias resolve: %w", err)
			}
			fmt.Println(canonical)
			return nil
		},
	}
}

func aliasApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve [name] [context]",
		Short: "Approve a pending alias",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("alias approve: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			alias, err := a.registry.ApproveAlias(ctx, args[0], args[1], actor)
			if err != nil {
				return fmt.Errorf("alias approve: %w", err)
			}
			fmt.Printf("Approved %s:%s by %s\n", alias.Context, alias.Name, alias.ApprovedBy)
			return nil
		},
	}
}

func aliasDeprecateCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "deprecate [name] [context]",
		Short: "Deprecate an alias",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("alias deprecate: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			if _, err := a.registry.DeprecateAlias(ctx, args[0], args[1], reason, actor); err != nil {
				return fmt.Errorf("alias deprecate: %w", err)
			}
			fmt.Printf("Deprecated %s:%s\n", args[1], args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the alias is deprecated")
	return cmd
}

func aliasRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename [name] [context] [new-name]",
		Short: "Rename an alias within its context",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("alias rename: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			alias, err := a.registry.RenameAlias(ctx, args[0], args[1], args[2], actor)
			if err != nil {
				return fmt.Errorf("alias rename: %w", err)
			}
			fmt.Printf("Renamed %s:%s to %s\n", alias.Context, args[0], alias.Name)
			return nil
		},
	}
}

func aliasListCmd() *cobra.Command {
	var aliasContext string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("alias list: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			aliases := a.registry.ListAliases(aliasContext)
			for i, al := range aliases {
				fmt.Printf("[%d] %s:%s -> %s [%s/%s]\n", i+1, al.Context, al.Name, al.Canonical, al.Type, al.Status)
				if al.ExpiresAt != nil {
					fmt.Printf("    Expires: %s\n", al.ExpiresAt.Format(time.RFC3339))
				}
			}
			if len(aliases) == 0 {
				fmt.Println("No aliases found.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&aliasContext, "context", "", "only list aliases in this context")
	return cmd
}

func aliasRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [name] [context]",
		Short: "Remove an alias",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{})
			if err != nil {
				return fmt.Errorf("alias remove: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			if err := a.registry.RemoveAlias(ctx, args[0], args[1], actor); err != nil {
				return fmt.Errorf("alias remove: %w", err)
			}
			fmt.Printf("Removed alias %s:%s\n", args[1], args[0])
			return nil
		},
	}
}
