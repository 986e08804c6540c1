// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/H0llyW00dzZ/blockwatch/src/clock"
	"github.com/H0llyW00dzZ/blockwatch/src/logging"
)

// DefaultInterval is the default cadence of the periodic loops.
const DefaultInterval = 60 * time.Second

// LoopConfig configures a [Loop]. Zero values fall back to defaults.
type LoopConfig struct {
	// Name identifies the loop in logs, notifications, and metrics.
	Name string

	// Interval is the target time between cycle starts.
	Interval time.Duration

	Logger   logging.Logger
	Notifier Notifier
	Metrics  Metrics
	Clock    clock.Clock

	// After is used to wait between cycles. Defaults to [time.After].
	After func(time.Duration) <-chan time.Time
}

// Loop runs a cycle function forever on a self-correcting cadence.
//
// Cycles never overlap. After each cycle the loop sleeps for the interval
// minus the cycle's duration, or not at all if the cycle overran. A cycle
// that fails or panics is logged and notified, and the next cycle runs on
// schedule.
type Loop struct {
	cfg   LoopConfig
	cycle func(context.Context) error
}

// NewLoop creates a [Loop] running cycle.
func NewLoop(cfg LoopConfig, cycle func(context.Context) error) *Loop {
	if cfg.Name == "" {
		cfg.Name = "loop"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoopLogger()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.After == nil {
		cfg.After = time.After
	}

	return &Loop{cfg: cfg, cycle: cycle}
}

// ReconcileLoop returns a [Loop] that runs [Tracker.Reconcile] every
// interval with the tracker's logger, notifier, metrics, and clock.
func (t *Tracker) ReconcileLoop(interval time.Duration) *Loop {
	return NewLoop(LoopConfig{
		Name:     "reconcile",
		Interval: interval,
		Logger:   t.logger,
		Notifier: t.notifier,
		Metrics:  t.metrics,
		Clock:    t.clock,
	}, t.Reconcile)
}

// Run runs cycles until ctx ends. It always returns nil once ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.cfg.Logger.Info(map[string]any{
		"loop":     l.cfg.Name,
		"interval": l.cfg.Interval.String(),
	}, "loop started")

	for {
		elapsed := l.RunOnce(ctx)

		wait := max(l.cfg.Interval-elapsed, 0)
		select {
		case <-ctx.Done():
			l.cfg.Logger.Info(map[string]any{"loop": l.cfg.Name}, "loop stopped")
			return nil
		case <-l.cfg.After(wait):
		}
	}
}

// RunOnce runs a single guarded cycle and returns how long it took.
func (l *Loop) RunOnce(ctx context.Context) time.Duration {
	start := l.cfg.Clock.Now()
	err := l.safeCycle(ctx)
	elapsed := l.cfg.Clock.Now().Sub(start)

	l.cfg.Metrics.ObserveCycle(l.cfg.Name, elapsed, err)

	switch {
	case err == nil:
		l.cfg.Logger.Debug(map[string]any{
			"loop":    l.cfg.Name,
			"elapsed": elapsed.String(),
		}, "cycle finished")
	case ctx.Err() != nil:
		// Shutdown interrupted the cycle.
	default:
		l.cfg.Logger.Error(map[string]any{
			"loop":  l.cfg.Name,
			"error": err.Error(),
		}, "cycle failed")
		l.cfg.Notifier.Notify(context.WithoutCancel(ctx),
			fmt.Sprintf("The %s cycle failed: %v", l.cfg.Name, err))
	}

	return elapsed
}

func (l *Loop) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
	}()
	return l.cycle(ctx)
}
