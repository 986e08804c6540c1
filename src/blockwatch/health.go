// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"context"
	"slices"
)

// RefreshHealth probes every configured resolver against the reference
// domain and publishes a new health snapshot.
//
// The snapshot is built completely before it replaces the previous one, so
// readers of [Checker.Health] never observe a mix of old and new entries.
// If ctx ends mid-cycle, the previous snapshot stays in place.
func (c *Checker) RefreshHealth(ctx context.Context) error {
	if len(c.resolvers) == 0 {
		return ErrNoResolvers
	}

	outcomes := c.probeAll(ctx, c.healthDomain, c.resolvers)
	if err := ctx.Err(); err != nil {
		return err
	}

	entries := make([]HealthEntry, len(outcomes))
	for i, o := range outcomes {
		entries[i] = HealthEntry{
			Resolver:  o.Resolver,
			Health:    healthOf(o.Classification),
			LatencyMs: o.ElapsedMs,
		}
	}

	c.health.Store(&entries)
	c.metrics.ObserveHealth(entries)

	return nil
}

// Health returns the most recently published health snapshot, in resolver
// directory order. It never probes; before the first refresh it is empty.
func (c *Checker) Health() []HealthEntry {
	snapshot := c.health.Load()
	if snapshot == nil {
		return nil
	}
	return slices.Clone(*snapshot)
}

// healthOf maps a probe classification of the reference domain to
// reachability. Any answer, blocked or not, proves reachability.
func healthOf(c Classification) Health {
	switch c {
	case ProbeError:
		return HealthError
	case ProbeTimeout:
		return HealthUnreachable
	default:
		return HealthReachable
	}
}
