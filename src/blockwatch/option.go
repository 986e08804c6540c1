// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"time"

	"github.com/H0llyW00dzZ/blockwatch/src/logging"
	"github.com/miekg/dns"
)

// Option is a functional option for configuring a [Checker].
type Option func(*Checker)

// WithResolvers sets the resolver directory. The slice is copied; the
// directory is immutable for the lifetime of the [Checker].
func WithResolvers(resolvers []Resolver) Option {
	return func(c *Checker) {
		c.resolvers = make([]Resolver, len(resolvers))
		copy(c.resolvers, resolvers)
	}
}

// WithTimeout sets the timeout for each DNS query.
// The default is 3 seconds.
//
// Clients supplied through [WithDNSClient] keep their own Timeout, but
// every probe is still bounded by this value through its context.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCache sets a custom [Cache] implementation.
// By default, the checker uses an in-memory LRU cache with a 30-second TTL.
//
// Pass nil to disable caching entirely.
func WithCache(cache Cache) Option {
	return func(c *Checker) {
		c.cache = cache
		c.noCache = cache == nil
	}
}

// WithCacheTTL sets the TTL for the built-in cache.
// This has no effect if a custom cache is set via [WithCache].
func WithCacheTTL(d time.Duration) Option {
	return func(c *Checker) {
		c.cacheTTL = d
	}
}

// WithCacheSize sets the maximum number of verdicts held by the built-in
// cache. This has no effect if a custom cache is set via [WithCache].
func WithCacheSize(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithDNSClient sets a custom [dns.Client] for resolvers using transport t.
// This allows full control over the transport configuration, e.g. a custom
// Dialer for interface binding.
//
// Passing nil is a no-op and the default client will be used.
func WithDNSClient(t Transport, client *dns.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.clients[t] = client
		}
	}
}

// WithEDNS0Size sets the EDNS0 UDP buffer size.
// The default is 1232 bytes, which is the recommended size to prevent
// IP fragmentation over UDP.
//
// See: https://dnsflagday.net/2020/
func WithEDNS0Size(size uint16) Option {
	return func(c *Checker) {
		if size > 0 {
			c.edns0Size = size
		}
	}
}

// WithBlockMarker sets the blocking-notice hostname that enforcing
// resolvers return as a CNAME target for blocked domains.
// The default is "notice.cuii.info".
func WithBlockMarker(host string) Option {
	return func(c *Checker) {
		if host != "" {
			c.blockMarker = host
		}
	}
}

// WithHealthDomain sets the always-reachable, never-blocked reference
// domain used by [Checker.RefreshHealth].
func WithHealthDomain(domain string) Option {
	return func(c *Checker) {
		if domain != "" {
			c.healthDomain = domain
		}
	}
}

// WithNotifier sets the sink that receives probe error reports.
func WithNotifier(n Notifier) Option {
	return func(c *Checker) {
		c.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}
