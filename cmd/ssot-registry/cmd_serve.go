package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/ssot-registry/internal/api"
	"github.com/ajitpratap0/ssot-registry/internal/lifecycle"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server with background maintenance",
		Long: `Serves the registry over HTTP and runs the background loops: periodic
document flush, expired alias sweep, conflict scan with auto-resolution,
audit retention and, when a rules file is configured, governance reload.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := openApp(ctx, logger, openOptions{allowCorrupt: true})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.close(context.WithoutCancel(ctx))

			opts := []lifecycle.Option{
				lifecycle.WithScanner(a.detector),
				lifecycle.WithPurger(a.audit, retentionPolicy()),
				lifecycle.WithIntervals(lifecycle.Intervals{
					Save:  cfg.Registry.SaveInterval,
					Sweep: cfg.Registry.SweepInterval,
					Scan:  cfg.Conflict.ScanInterval,
				}),
			}
			if a.gov != nil && cfg.Governance.Watch {
				opts = append(opts, lifecycle.WithWatcher(a.gov))
			}
			lm := lifecycle.NewManager(a.registry, logger, opts...)

			srv := api.NewServer(a.registry, a.detector, a.audit, logger, cfg.API.AuthToken)
			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set SSOT_REGISTRY_API_AUTH_TOKEN or api.auth_token for production use")
			}

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return lm.Start(gctx)
			})
			g.Go(func() error {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
					return fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				const shutdownTimeout = 10 * time.Second
				if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
					return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
				}
				return nil
			})
			return g.Wait()
		},
	}
	return cmd
}
