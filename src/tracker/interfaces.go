// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tracker

import (
	"context"
	"time"

	"github.com/H0llyW00dzZ/blockwatch/src/blockwatch"
)

// Store persists tracked domains, blocking instances, and the ignore list.
//
// Inserts are insert-if-absent: adding an existing row reports
// created=false and no error. Removing a missing row is not an error.
// Removing a domain removes its blocking instances.
type Store interface {
	BlockedDomains(ctx context.Context) ([]BlockedDomain, error)
	AddBlockedDomain(ctx context.Context, d BlockedDomain) (created bool, err error)
	RemoveBlockedDomain(ctx context.Context, domain string) error

	BlockingInstances(ctx context.Context, domain string) ([]BlockingInstance, error)
	AddBlockingInstance(ctx context.Context, inst BlockingInstance) (created bool, err error)
	RemoveBlockingInstance(ctx context.Context, domain, isp string) error

	Ignorelist(ctx context.Context) ([]string, error)
	AddIgnored(ctx context.Context, domain string) error

	Close() error
}

// Checker runs probes and classifies them. [*blockwatch.Checker]
// satisfies it.
type Checker interface {
	Check(ctx context.Context, domain string) (blockwatch.Verdict, error)
	RunFullCheck(ctx context.Context, domain string, resolvers []blockwatch.Resolver) (blockwatch.Verdict, error)
	EnforcingResolvers() []blockwatch.Resolver
	Health() []blockwatch.HealthEntry
}

// Notifier delivers human-readable messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Metrics receives observations from the tracker.
type Metrics interface {
	ObserveCycle(name string, duration time.Duration, err error)
	ObserveTransition(t Transition)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}

type nopMetrics struct{}

func (nopMetrics) ObserveCycle(string, time.Duration, error) {}
func (nopMetrics) ObserveTransition(Transition)              {}
