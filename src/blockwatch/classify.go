// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

// Classify turns a full outcome set for one domain into a single verdict.
// It is pure and total: every input maps to exactly one [Final].
//
// Outcomes are split into the enforcing and control groups and the rules
// below are evaluated in order; the first match wins.
//
//  1. [VerdictFakeBlocked]: a control resolver reports the block marker.
//  2. [VerdictBlocked]: some enforcing resolver reports blocked and every
//     enforcing resolver reports blocked or timed out.
//  3. [VerdictPartiallyBlocked]: some enforcing resolver reports blocked.
//  4. [VerdictError]: every enforcing resolver failed with an error.
//  5. [VerdictNXDomain]: some resolver reports NXDOMAIN and every resolver
//     reports NXDOMAIN or timed out.
//  6. [VerdictNotBlocked] otherwise.
func Classify(outcomes []ProbeOutcome) Final {
	var (
		enforcing   int
		blocked     int
		blockedOrTO int
		errored     int
		nxdomain    int
		nxdomainOrT int
	)

	for _, o := range outcomes {
		switch o.Classification {
		case ProbeNXDomain:
			nxdomain++
			nxdomainOrT++
		case ProbeTimeout:
			nxdomainOrT++
		}

		if !o.Resolver.EnforcesBlocking {
			if o.Classification == ProbeBlocked {
				// A control resolver must never see the marker.
				return VerdictFakeBlocked
			}
			continue
		}

		enforcing++
		switch o.Classification {
		case ProbeBlocked:
			blocked++
			blockedOrTO++
		case ProbeTimeout:
			blockedOrTO++
		case ProbeError:
			errored++
		}
	}

	switch {
	case blocked > 0 && blockedOrTO == enforcing:
		return VerdictBlocked
	case blocked > 0:
		return VerdictPartiallyBlocked
	case enforcing > 0 && errored == enforcing:
		return VerdictError
	case nxdomain > 0 && nxdomainOrT == len(outcomes):
		return VerdictNXDomain
	default:
		return VerdictNotBlocked
	}
}
