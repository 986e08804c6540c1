// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tracker

import (
	"context"

	"github.com/H0llyW00dzZ/blockwatch/src/clock"
	"github.com/H0llyW00dzZ/blockwatch/src/logging"
)

// Tracker keeps persisted enforcement state in line with fresh verdicts.
// It is safe for concurrent use as long as its Store is.
type Tracker struct {
	store     Store
	checker   Checker
	notifier  Notifier
	logger    logging.Logger
	metrics   Metrics
	clock     clock.Clock
	tokenHash []byte
}

// Option is a functional option for configuring a [Tracker].
type Option func(*Tracker)

// WithNotifier sets the sink for change notifications.
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) {
		t.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithClock sets the clock used for record timestamps.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithAdminTokenHash sets the bcrypt hash that [Tracker.AddDomain]
// credentials are checked against. Without it every add is rejected.
func WithAdminTokenHash(hash string) Option {
	return func(t *Tracker) {
		t.tokenHash = []byte(hash)
	}
}

// New creates a [Tracker] over store and checker.
func New(store Store, checker Checker, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		checker: checker,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.notifier == nil {
		t.notifier = nopNotifier{}
	}
	if t.logger == nil {
		t.logger = logging.NewNoopLogger()
	}
	if t.metrics == nil {
		t.metrics = nopMetrics{}
	}
	if t.clock == nil {
		t.clock = clock.RealClock{}
	}

	return t
}

// notify sends message and logs it. Notifications outlive the caller's
// context so that shutdown does not drop them.
func (t *Tracker) notify(ctx context.Context, tr Transition, domain, message string) {
	t.metrics.ObserveTransition(tr)
	t.logger.Info(map[string]any{
		"domain":     domain,
		"transition": string(tr),
	}, message)
	t.notifier.Notify(context.WithoutCancel(ctx), message)
}
