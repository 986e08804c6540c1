// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/H0llyW00dzZ/blockwatch/src/tracker"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation and resolver health loops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cmd.SetContext(ctx)

			return withApp(cmd, func(app *application) error {
				return app.Run(ctx)
			})
		},
	}
}

// healthLoop returns the periodic resolver health monitor.
func (app *application) healthLoop() *tracker.Loop {
	return tracker.NewLoop(tracker.LoopConfig{
		Name:     "health",
		Interval: app.cfg.HealthInterval,
		Logger:   app.logger,
		Notifier: app.notifier,
		Metrics:  app.metrics,
	}, app.checker.RefreshHealth)
}

// Run starts both loops and the metrics endpoint, and blocks until ctx is
// cancelled.
func (app *application) Run(ctx context.Context) error {
	app.logger.Info(map[string]any{
		"version":            version,
		"env":                app.cfg.Env,
		"store":              app.cfg.StoreDriver,
		"resolvers":          len(app.checker.Resolvers()),
		"enforcing":          len(app.checker.EnforcingResolvers()),
		"reconcile_interval": app.cfg.ReconcileInterval.String(),
		"health_interval":    app.cfg.HealthInterval.String(),
	}, "Starting blockwatch")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.healthLoop().Run(ctx) })
	g.Go(func() error { return app.tracker.ReconcileLoop(app.cfg.ReconcileInterval).Run(ctx) })

	if app.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              app.cfg.MetricsAddr,
			Handler:           app.metricsHandler(),
			ReadHeaderTimeout: readHeaderTimeout,
		}

		g.Go(func() error {
			app.logger.Info(map[string]any{"address": srv.Addr}, "metrics endpoint started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	app.logger.Info(nil, "blockwatch stopped")
	return err
}

// metricsHandler serves Prometheus metrics on /metrics.
func (app *application) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry}))
	return mux
}
