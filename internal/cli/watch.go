package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gigledger/internal/log"
	"gigledger/internal/middleware/trace"
	"gigledger/internal/worker"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run in the foreground: follow entitlement updates, persist periodically and serve metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()
			cmd.SetContext(ctx)
			return opts.run(cmd, false, func(ctx context.Context, app *App) error {
				if cmd.Flags().Changed("metrics-addr") {
					app.Config.MetricsAddr = metricsAddr
				}
				return runDaemon(ctx, app)
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address (overrides METRICS_ADDR, empty disables)")
	return cmd
}

// runDaemon blocks until ctx is cancelled. The persist worker performs the
// final flush on the way out.
func runDaemon(ctx context.Context, app *App) error {
	cfg := app.Config
	logger := app.Logger

	if cfg.Authenticated() {
		if err := app.Store.Refresh(ctx); err != nil {
			logger.WarnContext(ctx, "Initial refresh failed, serving cached records", log.FieldError, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	persister := worker.NewPersistWorker(app.Store, app.Metrics, cfg.PersistInterval, logger)
	g.Go(func() error {
		return persister.Run(gctx)
	})

	if app.Entitlements.Follows() {
		g.Go(func() error {
			if err := app.Entitlements.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.InfoContext(ctx, "Entitlement updates disabled, keeping the stored premium status",
			log.FieldPremium, app.Store.IsPremium())
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           daemonHandler(app),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.InfoContext(gctx, "Serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.InfoContext(ctx, "Watching for changes", log.FieldOperation, log.OpStartup)
	err := g.Wait()
	logger.InfoContext(context.WithoutCancel(ctx), "Stopped", log.FieldOperation, log.OpShutdown)
	return err
}

// daemonHandler serves metrics and a health check reporting the plan.
func daemonHandler(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(app.Logger, app.Metrics.ObserveRequest).Handler)

	r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","premium":%t}`, app.Store.IsPremium())
	})
	return r
}
