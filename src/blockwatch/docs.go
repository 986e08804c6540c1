// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package blockwatch detects ISP-level DNS blocking by active measurement.
//
// It probes many independently operated DNS resolvers for a domain. Some of
// them are known to enforce the blocking coalition's list (the enforcing
// group), others are used as a non-enforcing baseline (the control group).
// The raw, sometimes contradictory answers are reduced to a single
// [Verdict] per domain by [Classify].
//
// # Network Requirement
//
// Enforcing resolvers usually only return their blocking signature to
// clients on the ISP's own network. Run the checker from a vantage point
// that those resolvers serve, or point it at forwarders that do.
//
// # Detection Methods
//
// Every enforcing resolver signals a block in one of three ways, chosen per
// resolver through [Resolver.DetectionMethod]:
//
//   - [DetectionCNAMEMarker]: an A query is answered with a CNAME to the
//     blocking-notice hostname (default "notice.cuii.info"):
//
//     ;; ANSWER SECTION:
//     blocked.example.    3600    IN    CNAME    notice.cuii.info.
//
//   - [DetectionNoSOA]: an SOA query returns NXDOMAIN with an empty
//     authority section.
//
//   - [DetectionServFail]: an SOA query returns SERVFAIL.
//
// Control resolvers are probed like CNAME-marker resolvers. An empty answer
// section is reported as [ProbeNXDomain].
//
// # Quick Start
//
//	c := blockwatch.New(blockwatch.WithResolvers(resolvers))
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	v, err := c.Check(ctx, "https://Example.com/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(v.Domain, v.Final)
//	for _, o := range v.Outcomes {
//	    fmt.Printf("  %-30s %-12s %dms\n", o.Resolver.Name, o.Classification, o.ElapsedMs)
//	}
//
// # Configuration
//
// Available options:
//
//   - [WithResolvers]:    Resolver directory (required)
//   - [WithTimeout]:      Timeout per DNS query (default: 3s)
//   - [WithCache]:        Custom Cache implementation; pass nil to disable
//   - [WithCacheTTL]:     TTL for the built-in verdict cache (default: 30s)
//   - [WithCacheSize]:    Capacity of the built-in verdict cache (default: 1024)
//   - [WithEDNS0Size]:    EDNS0 UDP buffer size (default: 1232)
//   - [WithDNSClient]:    Custom client per transport
//   - [WithBlockMarker]:  Blocking-notice hostname
//   - [WithHealthDomain]: Reference domain for resolver health checks
//   - [WithNotifier]:     Sink for probe error reports
//   - [WithLogger]:       Structured logger
//   - [WithMetrics]:      Metrics sink
//
// # Health Snapshot
//
// [Checker.RefreshHealth] probes every resolver against a reference domain
// and atomically replaces the snapshot returned by [Checker.Health].
// Readers never block on a probe and never see a partially updated list.
//
// # Errors
//
// Probe failures never surface as errors: they become [ProbeTimeout] or
// [ProbeError] outcomes. Sentinel errors for use with [errors.Is]:
//
//	var (
//	    ErrNoResolvers     // No resolvers configured
//	    ErrInvalidDomain   // Domain name failed validation
//	    ErrInvalidResolver // Resolver definition is inconsistent
//	    ErrDNSTimeout      // DNS query exceeded the configured timeout
//	    ErrEmptyResponse   // Resolver exchange yielded no message
//	    ErrInternalPanic   // An internal panic was recovered during execution
//	)
package blockwatch
