// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package metrics exposes checker and tracker observations to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/H0llyW00dzZ/blockwatch/src/blockwatch"
	"github.com/H0llyW00dzZ/blockwatch/src/tracker"
)

// Prometheus implements both [blockwatch.Metrics] and [tracker.Metrics].
type Prometheus struct {
	// probes counts probe outcomes by resolver and classification.
	probes *prometheus.CounterVec

	// probeDuration is the time taken by probes that got an answer.
	probeDuration *prometheus.HistogramVec

	// verdicts counts domain verdicts by final classification.
	verdicts *prometheus.CounterVec

	// resolverUp is 1 for reachable resolvers and 0 otherwise, as of the
	// last health snapshot.
	resolverUp *prometheus.GaugeVec

	// resolverLatency is the health probe latency of each resolver.
	resolverLatency *prometheus.GaugeVec

	// cycleDuration is the duration of periodic loop cycles.
	cycleDuration *prometheus.HistogramVec

	// cycleErrors counts failed loop cycles.
	cycleErrors *prometheus.CounterVec

	// transitions counts enforcement state changes.
	transitions *prometheus.CounterVec
}

var (
	_ blockwatch.Metrics = (*Prometheus)(nil)
	_ tracker.Metrics    = (*Prometheus)(nil)
)

// NewPrometheus registers the blockwatch metrics in reg and returns a
// properly initialized [Prometheus].
func NewPrometheus(namespace string, reg prometheus.Registerer) (m *Prometheus, err error) {
	const (
		probesTotal      = "probes_total"
		probeDuration    = "probe_duration_seconds"
		verdictsTotal    = "verdicts_total"
		resolverUp       = "resolver_up"
		resolverLatency  = "resolver_latency_seconds"
		cycleDuration    = "cycle_duration_seconds"
		cycleErrorsTotal = "cycle_errors_total"
		transitionsTotal = "transitions_total"
	)

	m = &Prometheus{
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      probesTotal,
			Namespace: namespace,
			Help:      "Total number of resolver probes by outcome.",
		}, []string{"resolver", "classification"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      probeDuration,
			Namespace: namespace,
			Help:      "Time taken by answered resolver probes.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"resolver"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      verdictsTotal,
			Namespace: namespace,
			Help:      "Total number of domain verdicts by final classification.",
		}, []string{"verdict"}),
		resolverUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      resolverUp,
			Namespace: namespace,
			Help:      "Whether the resolver answered the last health probe.",
		}, []string{"resolver", "isp"}),
		resolverLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      resolverLatency,
			Namespace: namespace,
			Help:      "Latency of the last health probe.",
		}, []string{"resolver", "isp"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      cycleDuration,
			Namespace: namespace,
			Help:      "Duration of periodic loop cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"loop"}),
		cycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      cycleErrorsTotal,
			Namespace: namespace,
			Help:      "Total number of failed periodic loop cycles.",
		}, []string{"loop"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      transitionsTotal,
			Namespace: namespace,
			Help:      "Total number of enforcement state transitions.",
		}, []string{"transition"}),
	}

	collectors := []struct {
		name string
		c    prometheus.Collector
	}{
		{probesTotal, m.probes},
		{probeDuration, m.probeDuration},
		{verdictsTotal, m.verdicts},
		{resolverUp, m.resolverUp},
		{resolverLatency, m.resolverLatency},
		{cycleDuration, m.cycleDuration},
		{cycleErrorsTotal, m.cycleErrors},
		{transitionsTotal, m.transitions},
	}

	var errs []error
	for _, c := range collectors {
		if err = reg.Register(c.c); err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.name, err))
		}
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveProbe implements [blockwatch.Metrics].
func (m *Prometheus) ObserveProbe(o blockwatch.ProbeOutcome) {
	m.probes.WithLabelValues(o.Resolver.Name, o.Classification.String()).Inc()

	switch o.Classification {
	case blockwatch.ProbeTimeout, blockwatch.ProbeError:
	default:
		m.probeDuration.WithLabelValues(o.Resolver.Name).Observe(msToSeconds(o.ElapsedMs))
	}
}

// ObserveVerdict implements [blockwatch.Metrics].
func (m *Prometheus) ObserveVerdict(v blockwatch.Verdict) {
	m.verdicts.WithLabelValues(v.Final.String()).Inc()
}

// ObserveHealth implements [blockwatch.Metrics].
func (m *Prometheus) ObserveHealth(entries []blockwatch.HealthEntry) {
	for _, e := range entries {
		up := 0.0
		if e.Health == blockwatch.HealthReachable {
			up = 1
		}
		m.resolverUp.WithLabelValues(e.Resolver.Name, e.Resolver.ISP).Set(up)
		m.resolverLatency.WithLabelValues(e.Resolver.Name, e.Resolver.ISP).Set(msToSeconds(e.LatencyMs))
	}
}

// ObserveCycle implements [tracker.Metrics].
func (m *Prometheus) ObserveCycle(name string, duration time.Duration, err error) {
	m.cycleDuration.WithLabelValues(name).Observe(duration.Seconds())
	if err != nil {
		m.cycleErrors.WithLabelValues(name).Inc()
	}
}

// ObserveTransition implements [tracker.Metrics].
func (m *Prometheus) ObserveTransition(t tracker.Transition) {
	m.transitions.WithLabelValues(string(t)).Inc()
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}
