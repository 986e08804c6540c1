// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// queryTypeFor returns the question type used by a detection method.
// Response-code methods ask for the zone's SOA, everything else asks for A.
func queryTypeFor(method DetectionMethod) uint16 {
	switch method {
	case DetectionNoSOA, DetectionServFail:
		return dns.TypeSOA
	default:
		return dns.TypeA
	}
}

// queryDNS sends a DNS query for the given domain to the specified server.
// It respects context cancellation and the configured timeout.
func queryDNS(ctx context.Context, client *dns.Client, domain, server string, qtype uint16, edns0Size uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true
	if edns0Size > 0 {
		msg.SetEdns0(edns0Size, false)
	}

	// Create a channel to receive the result so we can
	// respect context cancellation.
	type dnsResult struct {
		msg *dns.Msg
		err error
	}
	ch := make(chan dnsResult, 1)

	go func() {
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		ch <- dnsResult{msg: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrDNSTimeout, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, result.err
		}
		if result.msg == nil {
			return nil, ErrEmptyResponse
		}
		return result.msg, nil
	}
}

// isTimeout reports whether err means the resolver did not answer in time,
// including cooperative cancellation.
func isTimeout(err error) bool {
	if errors.Is(err, ErrDNSTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyResponse maps a resolver answer to a per-resolver classification
// according to the resolver's detection method.
func classifyResponse(msg *dns.Msg, method DetectionMethod, marker string) Classification {
	switch method {
	case DetectionServFail:
		if msg.Rcode == dns.RcodeServerFailure {
			return ProbeBlocked
		}
		return ProbeNotBlocked
	case DetectionNoSOA:
		if msg.Rcode == dns.RcodeNameError && len(msg.Ns) == 0 {
			return ProbeBlocked
		}
		return ProbeNotBlocked
	default:
		if len(msg.Answer) == 0 {
			return ProbeNXDomain
		}
		if hasMarkerCNAME(msg, marker) {
			return ProbeBlocked
		}
		return ProbeNotBlocked
	}
}

// hasMarkerCNAME reports whether any answer record is a CNAME pointing at the
// blocking-notice hostname.
func hasMarkerCNAME(msg *dns.Msg, marker string) bool {
	want := dns.Fqdn(marker)
	for _, rr := range msg.Answer {
		cname, ok := rr.(*dns.CNAME)
		if !ok {
			continue
		}
		if strings.EqualFold(dns.Fqdn(cname.Target), want) {
			return true
		}
	}
	return false
}

// probe issues one query for domain to r and classifies the answer.
// It never fails: every error path resolves to a classification.
func (c *Checker) probe(ctx context.Context, domain string, r Resolver) ProbeOutcome {
	out := ProbeOutcome{Domain: domain, Resolver: r}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := queryDNS(ctx, c.clientFor(r.network()), domain, r.HostPort(), queryTypeFor(r.DetectionMethod), c.edns0Size)
	switch {
	case err == nil:
		out.Classification = classifyResponse(resp, r.DetectionMethod, c.blockMarker)
		out.ElapsedMs = time.Since(start).Milliseconds()
	case isTimeout(err):
		out.Classification = ProbeTimeout
		out.ElapsedMs = c.timeout.Milliseconds()
	default:
		out.Classification = ProbeError
		out.ElapsedMs = time.Since(start).Milliseconds()
		out.Err = err
		c.reportProbeError(ctx, r, err)
	}

	c.metrics.ObserveProbe(out)

	return out
}

// reportProbeError logs a transport failure and hands it to the notifier.
func (c *Checker) reportProbeError(ctx context.Context, r Resolver, err error) {
	c.logger.Warn(map[string]any{
		"resolver": r.Name,
		"address":  r.HostPort(),
		"error":    err.Error(),
	}, "resolver probe failed")

	c.notifier.Notify(context.WithoutCancel(ctx), fmt.Sprintf("Resolver %s returned an error: %v", r, err))
}
