// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tracker

import (
	"context"
	"fmt"
	"slices"

	"github.com/H0llyW00dzZ/blockwatch/src/blockwatch"
	"golang.org/x/crypto/bcrypt"
)

// CheckDomain normalizes and checks domain against every resolver.
//
// A BLOCKED or PARTIALLY_BLOCKED verdict for a domain that is not on the
// ignore list starts tracking it and, on first insertion, notifies.
// Failures while recording are logged; the verdict is still returned.
func (t *Tracker) CheckDomain(ctx context.Context, domain string) (blockwatch.Verdict, error) {
	v, err := t.checker.Check(ctx, domain)
	if err != nil {
		return v, err
	}

	switch v.Final {
	case blockwatch.VerdictBlocked, blockwatch.VerdictPartiallyBlocked:
	default:
		return v, nil
	}

	if err := t.track(ctx, v); err != nil {
		t.logger.Error(map[string]any{
			"domain": v.Domain,
			"error":  err.Error(),
		}, "failed to record blocked domain")
	}

	return v, nil
}

// track records a blocked verdict unless the domain is ignored.
func (t *Tracker) track(ctx context.Context, v blockwatch.Verdict) error {
	ignored, err := t.store.Ignorelist(ctx)
	if err != nil {
		return fmt.Errorf("loading ignore list: %w", err)
	}
	if slices.Contains(ignored, v.Domain) {
		t.logger.Debug(map[string]any{"domain": v.Domain}, "domain is ignored")
		return nil
	}

	created, err := t.store.AddBlockedDomain(ctx, BlockedDomain{
		Domain:         v.Domain,
		FirstBlockedOn: t.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("adding blocked domain: %w", err)
	}
	if created {
		t.notify(ctx, TransitionTracked, v.Domain,
			fmt.Sprintf("Domain %s was found %s", v.Domain, describe(v.Final)))
	}

	return nil
}

// ListResolverHealth returns the last published resolver health snapshot.
// It never probes.
func (t *Tracker) ListResolverHealth() []blockwatch.HealthEntry {
	return t.checker.Health()
}

// ListBlockedDomains returns every tracked domain with the ISPs that
// currently enforce its block.
func (t *Tracker) ListBlockedDomains(ctx context.Context) ([]DomainSummary, error) {
	domains, err := t.store.BlockedDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing blocked domains: %w", err)
	}

	summaries := make([]DomainSummary, 0, len(domains))
	for _, d := range domains {
		instances, err := t.store.BlockingInstances(ctx, d.Domain)
		if err != nil {
			return nil, fmt.Errorf("listing blocking instances of %s: %w", d.Domain, err)
		}
		summaries = append(summaries, DomainSummary{
			BlockedDomain: d,
			Instances:     instances,
		})
	}

	return summaries, nil
}

// AddDomain starts tracking a domain on an operator's request. The
// credential is checked before anything else; a mismatch fails with
// [ErrInvalidCredential]. A first insertion notifies.
func (t *Tracker) AddDomain(ctx context.Context, req AddRequest) (AddResult, error) {
	if err := t.authorize(req.Credential); err != nil {
		return AddResult{}, err
	}

	domain, err := blockwatch.NormalizeDomain(req.Domain)
	if err != nil {
		return AddResult{}, err
	}

	created, err := t.store.AddBlockedDomain(ctx, BlockedDomain{
		Domain:         domain,
		FirstBlockedOn: t.clock.Now(),
		AddedBy:        req.AddedBy,
		Site:           req.Site,
	})
	if err != nil {
		return AddResult{}, fmt.Errorf("adding blocked domain: %w", err)
	}

	if created {
		msg := fmt.Sprintf("Domain %s was added to the blocklist", domain)
		if req.AddedBy != "" {
			msg += " by " + req.AddedBy
		}
		t.notify(ctx, TransitionTracked, domain, msg)
	}

	return AddResult{Domain: domain, IsNew: created}, nil
}

// IgnoreDomain puts a domain on the ignore list so on-demand checks stop
// tracking it. It is guarded by the same credential as [Tracker.AddDomain]
// and returns the normalized domain. Records that already exist are left to
// the reconciliation loop.
func (t *Tracker) IgnoreDomain(ctx context.Context, domain, credential string) (string, error) {
	if err := t.authorize(credential); err != nil {
		return "", err
	}

	domain, err := blockwatch.NormalizeDomain(domain)
	if err != nil {
		return "", err
	}

	if err := t.store.AddIgnored(ctx, domain); err != nil {
		return "", fmt.Errorf("adding ignored domain: %w", err)
	}

	t.logger.Info(map[string]any{"domain": domain}, "domain ignored")
	return domain, nil
}

// authorize compares credential with the configured bcrypt hash.
func (t *Tracker) authorize(credential string) error {
	if len(t.tokenHash) == 0 || credential == "" {
		return ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword(t.tokenHash, []byte(credential)); err != nil {
		return ErrInvalidCredential
	}
	return nil
}

// describe renders a verdict for notifications.
func describe(f blockwatch.Final) string {
	switch f {
	case blockwatch.VerdictBlocked:
		return "blocked"
	case blockwatch.VerdictPartiallyBlocked:
		return "partially blocked"
	default:
		return f.String()
	}
}
