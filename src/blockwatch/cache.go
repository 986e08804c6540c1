// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache defines an interface for caching verdicts of on-demand checks.
// Implement this interface to provide a custom cache backend
// (e.g., Redis, memcached) via the [WithCache] option.
//
// The cache is only consulted by [Checker.Check]; [Checker.RunFullCheck]
// always probes.
type Cache interface {
	// Get retrieves a cached verdict by normalized domain.
	// Returns the verdict and true if found and not expired,
	// or a zero Verdict and false otherwise.
	Get(domain string) (Verdict, bool)

	// Set stores a verdict in the cache with the configured TTL.
	Set(domain string, v Verdict)

	// Flush removes all entries from the cache.
	Flush()
}

// lruCache is the default size-bounded in-memory cache with TTL support.
type lruCache struct {
	lru *expirable.LRU[string, Verdict]
}

// newLRUCache creates a new in-memory cache holding at most size verdicts
// for ttl each.
func newLRUCache(size int, ttl time.Duration) *lruCache {
	return &lruCache{
		lru: expirable.NewLRU[string, Verdict](size, nil, ttl),
	}
}

// Get implements [Cache].
func (c *lruCache) Get(domain string) (Verdict, bool) {
	return c.lru.Get(domain)
}

// Set implements [Cache].
func (c *lruCache) Set(domain string, v Verdict) {
	c.lru.Add(domain, v)
}

// Flush implements [Cache].
func (c *lruCache) Flush() {
	c.lru.Purge()
}
