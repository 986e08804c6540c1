// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/H0llyW00dzZ/blockwatch/src/logging"
	"github.com/miekg/dns"
)

// Default configuration values.
const (
	defaultTimeout      = 3 * time.Second
	defaultCacheTTL     = 30 * time.Second
	defaultCacheSize    = 1024
	defaultEDNS0Size    = 1232 // Recommended size to prevent IP fragmentation
	defaultBlockMarker  = "notice.cuii.info"
	defaultHealthDomain = "damcraft.de"
)

// Notifier receives human-readable messages about noteworthy events.
// Implementations must not block the caller for long and must swallow
// their own delivery failures.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Metrics receives observations from the checker.
type Metrics interface {
	ObserveProbe(o ProbeOutcome)
	ObserveVerdict(v Verdict)
	ObserveHealth(entries []HealthEntry)
}

// Checker probes DNS resolvers and classifies the answers into verdicts.
// The resolver set is fixed at construction. A Checker is safe for
// concurrent use.
type Checker struct {
	resolvers    []Resolver
	enforcing    []Resolver
	timeout      time.Duration
	cache        Cache
	cacheTTL     time.Duration
	cacheSize    int
	noCache      bool
	edns0Size    uint16
	clients      map[Transport]*dns.Client
	blockMarker  string
	healthDomain string
	notifier     Notifier
	logger       logging.Logger
	metrics      Metrics

	health atomic.Pointer[[]HealthEntry]
}

// New creates a new [Checker]. Use functional options to supply the
// resolver directory and customize behavior.
//
//	c := blockwatch.New(
//	    blockwatch.WithResolvers(resolvers),
//	    blockwatch.WithTimeout(3 * time.Second),
//	)
func New(opts ...Option) *Checker {
	c := &Checker{
		timeout:      defaultTimeout,
		edns0Size:    defaultEDNS0Size,
		cacheTTL:     defaultCacheTTL,
		cacheSize:    defaultCacheSize,
		clients:      make(map[Transport]*dns.Client),
		blockMarker:  defaultBlockMarker,
		healthDomain: defaultHealthDomain,
	}

	for _, opt := range opts {
		opt(c)
	}

	for _, r := range c.resolvers {
		if r.EnforcesBlocking {
			c.enforcing = append(c.enforcing, r)
		}
	}

	if c.cache == nil && !c.noCache {
		c.cache = newLRUCache(c.cacheSize, c.cacheTTL)
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.logger == nil {
		c.logger = logging.NewNoopLogger()
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}

	// Initialize shared DNS clients for transports not set by WithDNSClient.
	for _, t := range []Transport{TransportUDP, TransportTCP} {
		if c.clients[t] == nil {
			c.clients[t] = &dns.Client{
				Timeout: c.timeout,
				Net:     string(t),
			}
		}
	}

	return c
}

// Resolvers returns a copy of the configured resolver directory.
func (c *Checker) Resolvers() []Resolver {
	resolvers := make([]Resolver, len(c.resolvers))
	copy(resolvers, c.resolvers)
	return resolvers
}

// EnforcingResolvers returns a copy of the resolvers that apply the
// blocking policy.
func (c *Checker) EnforcingResolvers() []Resolver {
	resolvers := make([]Resolver, len(c.enforcing))
	copy(resolvers, c.enforcing)
	return resolvers
}

// Check normalizes and validates domain, then probes every configured
// resolver and returns the resulting [Verdict].
//
// Recent verdicts are served from the cache when one is configured.
// Invalid input fails with [ErrInvalidDomain] before any network I/O.
func (c *Checker) Check(ctx context.Context, domain string) (Verdict, error) {
	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return Verdict{Domain: normalized}, err
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(normalized); ok {
			cached.Outcomes = slices.Clone(cached.Outcomes)
			return cached, nil
		}
	}

	v, err := c.RunFullCheck(ctx, normalized, c.resolvers)
	if err != nil {
		return Verdict{Domain: normalized}, err
	}

	if c.cache != nil {
		stored := v
		stored.Outcomes = slices.Clone(v.Outcomes)
		c.cache.Set(normalized, stored)
	}

	return v, nil
}

// RunFullCheck probes domain on every resolver concurrently, waits for all
// outcomes, and classifies them. domain must already be normalized.
//
// One resolver timing out or failing never cancels the others. If ctx ends
// before every probe has answered, RunFullCheck returns ctx.Err() and no
// partial verdict.
func (c *Checker) RunFullCheck(ctx context.Context, domain string, resolvers []Resolver) (Verdict, error) {
	if len(resolvers) == 0 {
		return Verdict{}, ErrNoResolvers
	}

	outcomes := c.probeAll(ctx, domain, resolvers)
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	v := Verdict{
		Domain:   domain,
		Final:    Classify(outcomes),
		Outcomes: outcomes,
	}
	c.metrics.ObserveVerdict(v)

	return v, nil
}

// FlushCache clears all cached verdicts.
func (c *Checker) FlushCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// probeAll starts one probe per resolver at once and collects every
// outcome in resolver order. Each probe is bounded only by its own timeout,
// so a silent resolver never delays another.
func (c *Checker) probeAll(ctx context.Context, domain string, resolvers []Resolver) []ProbeOutcome {
	outcomes := make([]ProbeOutcome, len(resolvers))
	var wg sync.WaitGroup

	for i, r := range resolvers {
		wg.Add(1)

		go func(idx int, res Resolver) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					outcomes[idx] = ProbeOutcome{
						Domain:         domain,
						Resolver:       res,
						Classification: ProbeError,
						Err:            fmt.Errorf("%w: %v", ErrInternalPanic, rec),
					}
				}
			}()

			outcomes[idx] = c.probe(ctx, domain, res)
		}(i, r)
	}

	wg.Wait()
	return outcomes
}

// clientFor returns the shared DNS client for a transport.
func (c *Checker) clientFor(t Transport) *dns.Client {
	if client, ok := c.clients[t]; ok {
		return client
	}
	return c.clients[TransportUDP]
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}

type nopMetrics struct{}

func (nopMetrics) ObserveProbe(ProbeOutcome)   {}
func (nopMetrics) ObserveVerdict(Verdict)      {}
func (nopMetrics) ObserveHealth([]HealthEntry) {}
