// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tracker

import "errors"

// Sentinel errors for the tracker package.
var (
	// ErrInvalidCredential is returned when the admin credential does not
	// match the configured hash, or no hash is configured.
	ErrInvalidCredential = errors.New("tracker: invalid credential")

	// ErrNotTracked is returned by stores when a blocking instance refers
	// to a domain that is not tracked.
	ErrNotTracked = errors.New("tracker: domain not tracked")

	// ErrCyclePanic is returned when a reconciliation or health cycle
	// panics.
	ErrCyclePanic = errors.New("tracker: cycle panicked")
)
