// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/H0llyW00dzZ/blockwatch/src/blockwatch"
)

// Reconcile runs one reconciliation cycle: every tracked domain is probed
// fresh on the enforcing resolvers and its blocking instances are brought
// in line with the result.
//
// A failure on one domain is logged and does not stop the others; all such
// failures are joined into the returned error. If ctx ends, the cycle
// stops and ctx.Err() is returned.
func (t *Tracker) Reconcile(ctx context.Context) error {
	domains, err := t.store.BlockedDomains(ctx)
	if err != nil {
		return fmt.Errorf("listing blocked domains: %w", err)
	}

	resolvers := t.checker.EnforcingResolvers()

	var errs []error
	for _, d := range domains {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := t.reconcileDomainSafe(ctx, d.Domain, resolvers); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			t.logger.Error(map[string]any{
				"domain": d.Domain,
				"error":  err.Error(),
			}, "reconciliation failed")
			errs = append(errs, fmt.Errorf("%s: %w", d.Domain, err))
		}
	}

	return errors.Join(errs...)
}

// reconcileDomainSafe isolates panics to the domain that raised them.
func (t *Tracker) reconcileDomainSafe(ctx context.Context, domain string, resolvers []blockwatch.Resolver) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
	}()
	return t.reconcileDomain(ctx, domain, resolvers)
}

// reconcileDomain applies one cycle's verdict to a single tracked domain.
func (t *Tracker) reconcileDomain(ctx context.Context, domain string, resolvers []blockwatch.Resolver) error {
	v, err := t.checker.RunFullCheck(ctx, domain, resolvers)
	if err != nil {
		return fmt.Errorf("checking: %w", err)
	}

	t.logger.Debug(map[string]any{
		"domain":  domain,
		"verdict": v.Final.String(),
	}, "reconciled domain")

	if v.Final == blockwatch.VerdictNXDomain {
		if err := t.store.RemoveBlockedDomain(ctx, domain); err != nil {
			return fmt.Errorf("removing domain: %w", err)
		}
		t.notify(ctx, TransitionGone, domain,
			fmt.Sprintf("Domain %s no longer resolves and is no longer tracked", domain))
		return nil
	}

	existing, err := t.store.BlockingInstances(ctx, domain)
	if err != nil {
		return fmt.Errorf("listing blocking instances: %w", err)
	}
	has := make(map[string]bool, len(existing))
	for _, inst := range existing {
		has[inst.ISP] = true
	}

	for _, g := range groupByISP(v.Outcomes) {
		anyBlocked := v.Final == blockwatch.VerdictBlocked
		allClear := true
		for _, o := range g.outcomes {
			if o.Classification == blockwatch.ProbeBlocked {
				anyBlocked = true
			}
			if o.Classification != blockwatch.ProbeNotBlocked {
				allClear = false
			}
		}

		switch {
		case anyBlocked && !has[g.isp]:
			created, err := t.store.AddBlockingInstance(ctx, BlockingInstance{
				Domain:    domain,
				ISP:       g.isp,
				BlockedOn: t.clock.Now(),
			})
			if err != nil {
				return fmt.Errorf("adding blocking instance for %s: %w", g.isp, err)
			}
			if created {
				t.notify(ctx, TransitionISPBlocked, domain,
					fmt.Sprintf("Domain %s is now blocked by %s", domain, g.isp))
			}
		case has[g.isp] && allClear:
			if err := t.store.RemoveBlockingInstance(ctx, domain, g.isp); err != nil {
				return fmt.Errorf("removing blocking instance for %s: %w", g.isp, err)
			}
			t.notify(ctx, TransitionISPUnblocked, domain,
				fmt.Sprintf("Domain %s is no longer blocked by %s", domain, g.isp))
		}
	}

	if v.Final == blockwatch.VerdictNotBlocked {
		if err := t.store.RemoveBlockedDomain(ctx, domain); err != nil {
			return fmt.Errorf("removing domain: %w", err)
		}
		t.notify(ctx, TransitionUnblocked, domain,
			fmt.Sprintf("Domain %s is no longer blocked by any ISP", domain))
	}

	return nil
}

// ispGroup is the outcomes of one ISP's resolvers.
type ispGroup struct {
	isp      string
	outcomes []blockwatch.ProbeOutcome
}

// groupByISP groups outcomes by ISP in order of first appearance.
// Outcomes of resolvers without an ISP are dropped.
func groupByISP(outcomes []blockwatch.ProbeOutcome) []ispGroup {
	var groups []ispGroup
	index := make(map[string]int)
	for _, o := range outcomes {
		isp := o.Resolver.ISP
		if isp == "" {
			continue
		}
		i, ok := index[isp]
		if !ok {
			i = len(groups)
			index[isp] = i
			groups = append(groups, ispGroup{isp: isp})
		}
		groups[i].outcomes = append(groups[i].outcomes, o)
	}
	return groups
}
