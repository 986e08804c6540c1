// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/blockwatch/src/blockwatch"
	"github.com/H0llyW00dzZ/blockwatch/src/config"
	"github.com/H0llyW00dzZ/blockwatch/src/directory"
	"github.com/H0llyW00dzZ/blockwatch/src/logging"
	"github.com/H0llyW00dzZ/blockwatch/src/metrics"
	"github.com/H0llyW00dzZ/blockwatch/src/notify"
	"github.com/H0llyW00dzZ/blockwatch/src/store/bolt"
	"github.com/H0llyW00dzZ/blockwatch/src/store/postgres"
	"github.com/H0llyW00dzZ/blockwatch/src/tracker"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

// application holds all the components of a blockwatch process.
type application struct {
	cfg      *config.AppConfig
	logger   logging.Logger
	registry *prometheus.Registry
	metrics  *metrics.Prometheus
	store    tracker.Store
	notifier notifier
	webhook  *notify.Webhook
	checker  *blockwatch.Checker
	tracker  *tracker.Tracker
}

// notifier is satisfied by every sink in package notify.
type notifier interface {
	Notify(ctx context.Context, message string)
}

// withApp builds the application, runs fn, and releases the application.
func withApp(cmd *cobra.Command, fn func(*application) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	app, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, app.Close())
	}()

	return fn(app)
}

// buildApplication constructs all components and wires them together.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*application, error) {
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}

	resolvers, err := directory.Load(cfg.ResolversFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load resolver directory: %w", err)
	}

	logger.Debug(map[string]any{
		"file":      cfg.ResolversFile,
		"resolvers": len(resolvers),
	}, "resolver directory loaded")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewPrometheus(appName, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &application{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		store:    store,
	}

	app.notifier = notify.Log{Logger: logger.With(map[string]any{"component": "notify"})}
	if cfg.WebhookURL != "" {
		app.webhook = notify.NewWebhook(cfg.WebhookURL,
			notify.WithMention(cfg.WebhookMention),
			notify.WithRatePerMinute(cfg.NotifyRate),
			notify.WithLogger(logger.With(map[string]any{"component": "notify"})),
		)
		app.notifier = app.webhook
	}

	opts := []blockwatch.Option{
		blockwatch.WithResolvers(resolvers),
		blockwatch.WithTimeout(cfg.ProbeTimeout),
		blockwatch.WithCacheTTL(cfg.CacheTTL),
		blockwatch.WithCacheSize(cfg.CacheSize),
		blockwatch.WithBlockMarker(cfg.BlockMarker),
		blockwatch.WithHealthDomain(cfg.HealthDomain),
		blockwatch.WithNotifier(app.notifier),
		blockwatch.WithLogger(logger.With(map[string]any{"component": "checker"})),
		blockwatch.WithMetrics(m),
	}
	if cfg.CacheTTL == 0 {
		opts = append(opts, blockwatch.WithCache(nil))
	}
	app.checker = blockwatch.New(opts...)

	app.tracker = tracker.New(store, app.checker,
		tracker.WithNotifier(app.notifier),
		tracker.WithLogger(logger.With(map[string]any{"component": "tracker"})),
		tracker.WithMetrics(m),
		tracker.WithAdminTokenHash(cfg.AdminTokenHash),
	)

	return app, nil
}

// buildStore opens the configured persistence backend.
func buildStore(ctx context.Context, cfg *config.AppConfig) (tracker.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		s, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			return nil, errors.Join(err, s.Close())
		}
		return s, nil
	default:
		s, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Close waits for pending notifications and releases the store.
func (app *application) Close() error {
	var errs []error
	if app.webhook != nil {
		errs = append(errs, app.webhook.Close())
	}
	errs = append(errs, app.store.Close())

	// Sync fails on terminals; nothing useful can be done about it.
	_ = app.logger.Sync()

	return errors.Join(errs...)
}
