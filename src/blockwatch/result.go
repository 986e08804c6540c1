// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"fmt"
	"net"
	"strings"
)

// Transport is the network protocol used to reach a resolver.
type Transport string

// Supported resolver transports.
const (
	TransportUDP Transport = "udp"
	TransportTCP Transport = "tcp"
)

// DetectionMethod selects how an enforcing resolver signals a block.
//
// Control-group resolvers carry [DetectionNone] and are probed the same way
// as [DetectionCNAMEMarker] resolvers.
type DetectionMethod string

// Known detection methods.
const (
	DetectionNone        DetectionMethod = ""
	DetectionCNAMEMarker DetectionMethod = "CNAME_MARKER"
	DetectionNoSOA       DetectionMethod = "NO_SOA"
	DetectionServFail    DetectionMethod = "SERVFAIL"
)

// Resolver is a single configured DNS resolver from the resolver directory.
// Resolvers are loaded once at startup and never mutated afterwards.
type Resolver struct {
	// Name is the human-readable display name.
	Name string

	// Address is the IP address or hostname of the resolver, optionally
	// followed by a port. Port 53 is assumed when omitted.
	Address string

	// Transport is the protocol used for queries. Empty means UDP.
	Transport Transport

	// ISP is the operator the resolver belongs to. Control-group
	// resolvers usually have none.
	ISP string

	// EnforcesBlocking reports whether the resolver applies the blocking
	// policy (enforcing group) or serves as a control.
	EnforcesBlocking bool

	// DetectionMethod is set if and only if EnforcesBlocking is true.
	DetectionMethod DetectionMethod
}

// Validate reports whether r is internally consistent.
func (r Resolver) Validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("%w: %q has no address", ErrInvalidResolver, r.Name)
	}

	switch r.Transport {
	case "", TransportUDP, TransportTCP:
	default:
		return fmt.Errorf("%w: %q has unknown transport %q", ErrInvalidResolver, r.Name, r.Transport)
	}

	switch r.DetectionMethod {
	case DetectionNone:
		if r.EnforcesBlocking {
			return fmt.Errorf("%w: enforcing resolver %q needs a detection method", ErrInvalidResolver, r.Name)
		}
	case DetectionCNAMEMarker, DetectionNoSOA, DetectionServFail:
		if !r.EnforcesBlocking {
			return fmt.Errorf("%w: control resolver %q must not set a detection method", ErrInvalidResolver, r.Name)
		}
	default:
		return fmt.Errorf("%w: %q has unknown detection method %q", ErrInvalidResolver, r.Name, r.DetectionMethod)
	}

	return nil
}

// HostPort returns the resolver address with the default DNS port
// appended when none was configured.
func (r Resolver) HostPort() string {
	if _, _, err := net.SplitHostPort(r.Address); err == nil {
		return r.Address
	}
	return net.JoinHostPort(strings.Trim(r.Address, "[]"), "53")
}

// network returns the transport to dial, defaulting to UDP.
func (r Resolver) network() Transport {
	if r.Transport == "" {
		return TransportUDP
	}
	return r.Transport
}

// String implements [fmt.Stringer].
func (r Resolver) String() string {
	role := "control"
	if r.EnforcesBlocking {
		role = "enforcing"
	}
	s := fmt.Sprintf("%s (%s/%s) - %s", r.Name, r.HostPort(), r.network(), role)
	if r.ISP != "" {
		s += " - " + r.ISP
	}
	return s
}

// Classification is the outcome of probing one domain on one resolver.
type Classification uint8

// Per-resolver classifications.
const (
	ProbeError Classification = iota
	ProbeBlocked
	ProbeNotBlocked
	ProbeNXDomain
	ProbeTimeout
)

var classificationNames = [...]string{
	ProbeError:      "ERROR",
	ProbeBlocked:    "BLOCKED",
	ProbeNotBlocked: "NOT_BLOCKED",
	ProbeNXDomain:   "NXDOMAIN",
	ProbeTimeout:    "TIMEOUT",
}

// String implements [fmt.Stringer].
func (c Classification) String() string {
	if int(c) < len(classificationNames) {
		return classificationNames[c]
	}
	return fmt.Sprintf("Classification(%d)", c)
}

// MarshalText implements [encoding.TextMarshaler].
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ProbeOutcome is the result of one (domain, resolver) query.
type ProbeOutcome struct {
	// Domain is the normalized domain that was queried.
	Domain string

	// Resolver is the resolver that was queried.
	Resolver Resolver

	// Classification is the decision derived from the answer.
	Classification Classification

	// ElapsedMs is the wall-clock time from dispatch to decision.
	// Timeouts report the configured timeout bound.
	ElapsedMs int64

	// Err holds the transport or parse failure behind a [ProbeError].
	Err error
}

// Final is the domain-level judgment derived from a full outcome set.
type Final uint8

// Domain-level verdicts.
const (
	VerdictNotBlocked Final = iota
	VerdictPartiallyBlocked
	VerdictBlocked
	VerdictFakeBlocked
	VerdictNXDomain
	VerdictError
)

var finalNames = [...]string{
	VerdictNotBlocked:       "NOT_BLOCKED",
	VerdictPartiallyBlocked: "PARTIALLY_BLOCKED",
	VerdictBlocked:          "BLOCKED",
	VerdictFakeBlocked:      "FAKE_BLOCKED",
	VerdictNXDomain:         "NXDOMAIN",
	VerdictError:            "ERROR",
}

// String implements [fmt.Stringer].
func (f Final) String() string {
	if int(f) < len(finalNames) {
		return finalNames[f]
	}
	return fmt.Sprintf("Final(%d)", f)
}

// MarshalText implements [encoding.TextMarshaler].
func (f Final) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Verdict is the classification of a full outcome set for one domain.
type Verdict struct {
	Domain   string
	Final    Final
	Outcomes []ProbeOutcome
}

// Health is the reachability of a resolver.
type Health uint8

// Resolver reachability states.
const (
	HealthReachable Health = iota
	HealthUnreachable
	HealthError
)

// String implements [fmt.Stringer].
func (h Health) String() string {
	switch h {
	case HealthReachable:
		return "REACHABLE"
	case HealthUnreachable:
		return "UNREACHABLE"
	case HealthError:
		return "ERROR"
	default:
		return fmt.Sprintf("Health(%d)", h)
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// HealthEntry is one resolver's line in a health snapshot.
type HealthEntry struct {
	Resolver  Resolver
	Health    Health
	LatencyMs int64
}
