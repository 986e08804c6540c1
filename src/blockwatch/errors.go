// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import "errors"

// Sentinel errors for the blockwatch package.
var (
	// ErrNoResolvers is returned when a check is requested against an
	// empty resolver set.
	ErrNoResolvers = errors.New("blockwatch: no resolvers configured")

	// ErrInvalidDomain is returned when a domain name fails validation.
	ErrInvalidDomain = errors.New("blockwatch: invalid domain name")

	// ErrInvalidResolver is returned when a resolver definition violates
	// the directory invariants.
	ErrInvalidResolver = errors.New("blockwatch: invalid resolver")

	// ErrDNSTimeout is returned when a DNS query exceeds the configured timeout.
	ErrDNSTimeout = errors.New("blockwatch: DNS query timed out")

	// ErrEmptyResponse is returned when a resolver exchange yields no message.
	ErrEmptyResponse = errors.New("blockwatch: empty DNS response")

	// ErrInternalPanic is returned when an internal panic is recovered during execution.
	ErrInternalPanic = errors.New("blockwatch: internal panic recovered")
)
