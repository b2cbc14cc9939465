package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/cache"
	"github.com/ajitpratap0/ssot-registry/internal/config"
	"github.com/ajitpratap0/ssot-registry/internal/conflict"
	"github.com/ajitpratap0/ssot-registry/internal/governance"
	"github.com/ajitpratap0/ssot-registry/internal/registry"
	"github.com/ajitpratap0/ssot-registry/internal/store"
)

var (
	cfg        *config.Config
	configPath string
	actor      string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := newRootCmd()
	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ssot-registry",
		Short: "Single source of truth registry for canonical anchors and their aliases",
		Long: "ssot-registry maps human-chosen aliases to canonical anchor ids per context, " +
			"detects conflicts between them and keeps a queryable audit trail of every change.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmd.SetContext(registry.WithCaller(cmd.Context(), registry.Caller{Actor: actor, UserAgent: "ssot-registry-cli"}))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ssot-registry/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "who is performing the operation, recorded in the audit log")

	rootCmd.AddCommand(
		serveCmd(),
		mcpCmd(),
		anchorCmd(),
		aliasCmd(),
		conflictsCmd(),
		auditCmd(),
		maintainCmd(),
		graphCmd(),
		exportCmd(),
	)
	return rootCmd
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// app bundles the components a command works with.
type app struct {
	logger   *slog.Logger
	store    store.Store
	cache    cache.Cache
	audit    *audit.Engine
	gov      *governance.Engine
	registry *registry.Registry
	detector *conflict.Detector
}

// openOptions controls how openApp treats a corrupt registry document.
type openOptions struct {
	// allowCorrupt starts with an empty registry instead of failing.
	allowCorrupt bool
}

// openApp wires the store, cache, audit engine, governance and detector
// from cfg and loads the registry document.
func openApp(ctx context.Context, logger *slog.Logger, opts openOptions) (*app, error) {
	a := &app{logger: logger}

	st, err := store.NewFileStore(cfg.Registry.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening registry store: %w", err)
	}
	a.store = st

	if a.cache, err = newCache(ctx, logger); err != nil {
		a.close(ctx)
		return nil, err
	}

	if a.audit, err = audit.Open(ctx, audit.Options{Path: cfg.Audit.Path, ReportDir: cfg.Audit.ReportDir}, logger); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("opening audit store: %w", err)
	}

	if cfg.Governance.Path != "" {
		if a.gov, err = governance.NewEngineFromFile(cfg.Governance.Path, logger); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("loading governance rules: %w", err)
		}
	}

	a.registry = registry.New(a.store, a.cache, a.audit, a.gov, logger, registry.Options{
		CacheTTL:           cfg.Registry.CacheTTL,
		DocumentAuditLimit: cfg.Registry.DocumentAuditLimit,
	})
	if err := a.registry.Load(ctx); err != nil {
		if !opts.allowCorrupt || !errors.Is(err, store.ErrCorrupt) {
			a.close(ctx)
			return nil, err
		}
		logger.Warn("registry document is corrupt; starting empty", "path", st.Location(), "error", err)
	}

	a.detector = newDetector(a.registry, logger)
	return a, nil
}

// close flushes pending registry changes and releases every backend.
func (a *app) close(ctx context.Context) {
	if a.registry != nil && a.registry.Dirty() {
		if _, err := a.registry.Flush(ctx); err != nil {
			a.logger.Error("final registry flush failed", "error", err)
		}
	}
	if a.audit != nil {
		_ = a.audit.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func newCache(ctx context.Context, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, nil
	case config.CacheRedis:
		c, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Host:         cfg.Cache.Host,
			Port:         cfg.Cache.Port,
			DB:           cfg.Cache.DB,
			Password:     cfg.Cache.Password,
			DefaultTTL:   cfg.Registry.CacheTTL,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Cache.Addr(), err)
		}
		return c, nil
	default:
		return cache.NewMemoryCache(cfg.Registry.CacheTTL, cfg.Registry.CacheTTL), nil
	}
}

func newDetector(reg *registry.Registry, logger *slog.Logger) *conflict.Detector {
	dcfg := conflict.DefaultConfig()
	dcfg.SimilarityThreshold = cfg.Conflict.SimilarityThreshold
	dcfg.DeepCycles = cfg.Conflict.DeepCycles
	if len(cfg.Conflict.AutoResolve) > 0 {
		for t, on := range cfg.Conflict.AutoResolveTypes() {
			dcfg.AutoResolve[t] = on
		}
	}

	opts := []conflict.Option{conflict.WithNotifier(conflict.NewLogNotifier(logger))}
	if cfg.Claude.APIKey != "" {
		opts = append(opts, conflict.WithReviewer(conflict.NewClaudeReviewer(cfg.Claude.APIKey, cfg.Claude.Model, logger)))
	}
	return conflict.NewDetector(reg, reg, reg, dcfg, logger, opts...)
}

func retentionPolicy() audit.RetentionPolicy {
	policy := audit.DefaultRetention()
	for level, days := range cfg.Audit.RetentionDays() {
		policy[level] = days
	}
	return policy
}
