// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier collects every message it receives.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// countingMetrics counts observations and can be told to panic on probes.
type countingMetrics struct {
	probes   atomic.Int64
	verdicts atomic.Int64
	health   atomic.Int64
	panicOn  string
}

func (m *countingMetrics) ObserveProbe(o ProbeOutcome) {
	m.probes.Add(1)
	if m.panicOn != "" && o.Resolver.Name == m.panicOn {
		panic("metrics exploded")
	}
}

func (m *countingMetrics) ObserveVerdict(Verdict)      { m.verdicts.Add(1) }
func (m *countingMetrics) ObserveHealth([]HealthEntry) { m.health.Add(1) }

func enforcingAt(name, addr, isp string, method DetectionMethod) Resolver {
	return Resolver{
		Name:             name,
		Address:          addr,
		ISP:              isp,
		EnforcesBlocking: true,
		DetectionMethod:  method,
	}
}

func controlAt(name, addr string) Resolver {
	return Resolver{Name: name, Address: addr}
}

func TestProbe(t *testing.T) {
	blocking, stopBlocking := startTestDNSServer(t, answerCNAME(defaultBlockMarker))
	defer stopBlocking()
	normal, stopNormal := startTestDNSServer(t, answerA("93.184.216.34"))
	defer stopNormal()
	empty, stopEmpty := startTestDNSServer(t, answerRcode(dns.RcodeNameError, true))
	defer stopEmpty()
	servfail, stopServfail := startTestDNSServer(t, answerRcode(dns.RcodeServerFailure, false))
	defer stopServfail()
	nosoa, stopNosoa := startTestDNSServer(t, answerRcode(dns.RcodeNameError, false))
	defer stopNosoa()

	c := New(WithTimeout(2 * time.Second))

	tests := []struct {
		name     string
		resolver Resolver
		want     Classification
	}{
		{"cname marker", enforcingAt("x", blocking, "X", DetectionCNAMEMarker), ProbeBlocked},
		{"a record", enforcingAt("x", normal, "X", DetectionCNAMEMarker), ProbeNotBlocked},
		{"empty answer", controlAt("c", empty), ProbeNXDomain},
		{"control sees marker", controlAt("c", blocking), ProbeBlocked},
		{"servfail method", enforcingAt("y", servfail, "Y", DetectionServFail), ProbeBlocked},
		{"servfail method on normal answer", enforcingAt("y", normal, "Y", DetectionServFail), ProbeNotBlocked},
		{"no soa method", enforcingAt("z", nosoa, "Z", DetectionNoSOA), ProbeBlocked},
		{"no soa method on genuine nxdomain", enforcingAt("z", empty, "Z", DetectionNoSOA), ProbeNotBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.probe(context.Background(), "example.com", tt.resolver)
			assert.Equal(t, tt.want, out.Classification)
			assert.Equal(t, "example.com", out.Domain)
			assert.Equal(t, tt.resolver, out.Resolver)
			assert.NoError(t, out.Err)
			assert.GreaterOrEqual(t, out.ElapsedMs, int64(0))
		})
	}
}

func TestProbeTCP(t *testing.T) {
	addr, cleanup := startTestTCPDNSServer(t, answerCNAME(defaultBlockMarker))
	defer cleanup()

	r := enforcingAt("tcp", addr, "X", DetectionCNAMEMarker)
	r.Transport = TransportTCP

	out := New().probe(context.Background(), "example.com", r)
	assert.Equal(t, ProbeBlocked, out.Classification)
}

func TestProbeTimeout(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, answerNothing())
	defer cleanup()

	timeout := 150 * time.Millisecond
	c := New(WithTimeout(timeout))

	start := time.Now()
	out := c.probe(context.Background(), "example.com", controlAt("silent", addr))

	assert.Equal(t, ProbeTimeout, out.Classification)
	assert.Equal(t, timeout.Milliseconds(), out.ElapsedMs, "timeouts report the bound")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbeError(t *testing.T) {
	notifier := &recordingNotifier{}
	metrics := &countingMetrics{}
	c := New(WithNotifier(notifier), WithMetrics(metrics))

	r := controlAt("refused", closedTCPAddr(t))
	r.Transport = TransportTCP

	out := c.probe(context.Background(), "example.com", r)

	assert.Equal(t, ProbeError, out.Classification)
	require.Error(t, out.Err)
	assert.EqualValues(t, 1, metrics.probes.Load())

	msgs := notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Resolver refused")
	assert.Contains(t, msgs[0], "returned an error")
}

func TestRunFullCheck(t *testing.T) {
	blocking, stopBlocking := startTestDNSServer(t, answerCNAME(defaultBlockMarker))
	defer stopBlocking()
	normal, stopNormal := startTestDNSServer(t, answerA("93.184.216.34"))
	defer stopNormal()

	t.Run("blocked on every enforcer", func(t *testing.T) {
		metrics := &countingMetrics{}
		c := New(WithMetrics(metrics))
		resolvers := []Resolver{
			enforcingAt("x1", blocking, "X", DetectionCNAMEMarker),
			enforcingAt("y1", blocking, "Y", DetectionCNAMEMarker),
			controlAt("c1", normal),
		}

		v, err := c.RunFullCheck(context.Background(), "example.com", resolvers)
		require.NoError(t, err)
		assert.Equal(t, VerdictBlocked, v.Final)
		assert.Equal(t, "example.com", v.Domain)
		require.Len(t, v.Outcomes, len(resolvers))
		for i, o := range v.Outcomes {
			assert.Equal(t, resolvers[i], o.Resolver, "outcomes keep resolver order")
		}
		assert.EqualValues(t, 3, metrics.probes.Load())
		assert.EqualValues(t, 1, metrics.verdicts.Load())
	})

	t.Run("partial", func(t *testing.T) {
		c := New()
		v, err := c.RunFullCheck(context.Background(), "example.com", []Resolver{
			enforcingAt("x", blocking, "X", DetectionCNAMEMarker),
			enforcingAt("y", normal, "Y", DetectionCNAMEMarker),
			controlAt("c", normal),
		})
		require.NoError(t, err)
		assert.Equal(t, VerdictPartiallyBlocked, v.Final)
	})

	t.Run("no resolvers", func(t *testing.T) {
		_, err := New().RunFullCheck(context.Background(), "example.com", nil)
		assert.ErrorIs(t, err, ErrNoResolvers)
	})

	t.Run("cancelled context yields no verdict", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		v, err := New().RunFullCheck(ctx, "example.com", []Resolver{controlAt("c", normal)})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, v.Outcomes)
	})

	t.Run("one slow resolver does not fail the others", func(t *testing.T) {
		silent, stopSilent := startTestDNSServer(t, answerNothing())
		defer stopSilent()

		c := New(WithTimeout(200 * time.Millisecond))
		v, err := c.RunFullCheck(context.Background(), "example.com", []Resolver{
			enforcingAt("x", blocking, "X", DetectionCNAMEMarker),
			enforcingAt("y", silent, "Y", DetectionCNAMEMarker),
			controlAt("c", normal),
		})
		require.NoError(t, err)
		assert.Equal(t, ProbeBlocked, v.Outcomes[0].Classification)
		assert.Equal(t, ProbeTimeout, v.Outcomes[1].Classification)
		assert.Equal(t, VerdictBlocked, v.Final)
	})
}

func TestProbeAllSilentResolversShareOneTimeout(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, answerNothing())
	defer cleanup()

	resolvers := make([]Resolver, 6)
	for i := range resolvers {
		resolvers[i] = controlAt(fmt.Sprintf("silent-%d", i), addr)
	}

	timeout := 200 * time.Millisecond
	c := New(WithTimeout(timeout))

	start := time.Now()
	outcomes := c.probeAll(context.Background(), "example.com", resolvers)
	elapsed := time.Since(start)

	require.Len(t, outcomes, len(resolvers))
	for _, o := range outcomes {
		assert.Equal(t, ProbeTimeout, o.Classification)
	}
	assert.Less(t, elapsed, 2*timeout, "probes must not wait for each other")
}

func TestProbeAllRunsEveryResolverAtOnce(t *testing.T) {
	const n = 8

	var inFlight atomic.Int32
	release := make(chan struct{})
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		if inFlight.Add(1) == n {
			close(release)
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		answerA("1.2.3.4")(w, r)
	})
	addr, cleanup := startTestDNSServer(t, handler)
	defer cleanup()

	resolvers := make([]Resolver, n)
	for i := range resolvers {
		resolvers[i] = controlAt("c", addr)
	}

	c := New(WithTimeout(time.Second))
	outcomes := c.probeAll(context.Background(), "example.com", resolvers)

	require.Len(t, outcomes, n)
	for _, o := range outcomes {
		assert.Equal(t, ProbeNotBlocked, o.Classification, "every query was in flight together")
	}
}

func TestProbeAllRecoversPanic(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, answerA("1.2.3.4"))
	defer cleanup()

	c := New(WithMetrics(&countingMetrics{panicOn: "bad"}))
	outcomes := c.probeAll(context.Background(), "example.com", []Resolver{
		controlAt("good", addr),
		controlAt("bad", addr),
	})

	require.Len(t, outcomes, 2)
	assert.Equal(t, ProbeNotBlocked, outcomes[0].Classification)
	assert.Equal(t, ProbeError, outcomes[1].Classification)
	assert.Equal(t, "bad", outcomes[1].Resolver.Name)
	assert.True(t, errors.Is(outcomes[1].Err, ErrInternalPanic))
}

func TestCheckUsesCache(t *testing.T) {
	var queries atomic.Int32
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		queries.Add(1)
		answerA("1.2.3.4")(w, r)
	})
	addr, cleanup := startTestDNSServer(t, handler)
	defer cleanup()

	c := New(WithResolvers([]Resolver{controlAt("c", addr)}))

	v1, err := c.Check(context.Background(), "Example.com")
	require.NoError(t, err)
	v2, err := c.Check(context.Background(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, queries.Load(), "second check served from cache")

	c.FlushCache()
	_, err = c.Check(context.Background(), "example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 2, queries.Load())
}

func TestCheckCachedVerdictIsNotShared(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, answerA("1.2.3.4"))
	defer cleanup()

	c := New(WithResolvers([]Resolver{controlAt("c", addr)}))

	first, err := c.Check(context.Background(), "example.com")
	require.NoError(t, err)
	require.Len(t, first.Outcomes, 1)
	first.Outcomes[0].Classification = ProbeBlocked

	second, err := c.Check(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, ProbeNotBlocked, second.Outcomes[0].Classification)
	second.Outcomes[0].Classification = ProbeError

	third, err := c.Check(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, ProbeNotBlocked, third.Outcomes[0].Classification)
}

func TestCheckWithoutCache(t *testing.T) {
	var queries atomic.Int32
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		queries.Add(1)
		answerA("1.2.3.4")(w, r)
	})
	addr, cleanup := startTestDNSServer(t, handler)
	defer cleanup()

	c := New(WithResolvers([]Resolver{controlAt("c", addr)}), WithCache(nil))
	for range 3 {
		_, err := c.Check(context.Background(), "example.com")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, queries.Load())
}

func TestClientFor(t *testing.T) {
	custom := &dns.Client{Net: "tcp", Timeout: time.Second}
	c := New(WithDNSClient(TransportTCP, custom))

	assert.Same(t, custom, c.clientFor(TransportTCP))
	assert.Equal(t, "udp", c.clientFor(TransportUDP).Net)
	assert.Same(t, c.clientFor(TransportUDP), c.clientFor("quic"))
}
