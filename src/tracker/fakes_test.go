// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tracker

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/blockwatch/src/blockwatch"
)

var errStore = errors.New("store unavailable")

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	domains   []BlockedDomain
	instances map[string][]BlockingInstance
	ignore    []string

	instanceAdds    int
	instanceRemoves int

	failList   bool
	failIgnore bool
	failAdd    bool
}

func newMemStore() *memStore {
	return &memStore{instances: make(map[string][]BlockingInstance)}
}

func (s *memStore) BlockedDomains(context.Context) ([]BlockedDomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errStore
	}
	return slices.Clone(s.domains), nil
}

func (s *memStore) AddBlockedDomain(_ context.Context, d BlockedDomain) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd {
		return false, errStore
	}
	if slices.ContainsFunc(s.domains, func(x BlockedDomain) bool { return x.Domain == d.Domain }) {
		return false, nil
	}
	s.domains = append(s.domains, d)
	return true, nil
}

func (s *memStore) RemoveBlockedDomain(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains = slices.DeleteFunc(s.domains, func(x BlockedDomain) bool { return x.Domain == domain })
	delete(s.instances, domain)
	return nil
}

func (s *memStore) BlockingInstances(_ context.Context, domain string) ([]BlockingInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.instances[domain]), nil
}

func (s *memStore) AddBlockingInstance(_ context.Context, inst BlockingInstance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.domains, func(x BlockedDomain) bool { return x.Domain == inst.Domain }) {
		return false, ErrNotTracked
	}
	if slices.ContainsFunc(s.instances[inst.Domain], func(x BlockingInstance) bool { return x.ISP == inst.ISP }) {
		return false, nil
	}
	s.instances[inst.Domain] = append(s.instances[inst.Domain], inst)
	s.instanceAdds++
	return true, nil
}

func (s *memStore) RemoveBlockingInstance(_ context.Context, domain, isp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[domain] = slices.DeleteFunc(s.instances[domain], func(x BlockingInstance) bool { return x.ISP == isp })
	s.instanceRemoves++
	return nil
}

func (s *memStore) Ignorelist(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIgnore {
		return nil, errStore
	}
	return slices.Clone(s.ignore), nil
}

func (s *memStore) AddIgnored(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIgnore {
		return errStore
	}
	if !slices.Contains(s.ignore, domain) {
		s.ignore = append(s.ignore, domain)
	}
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) tracked(domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.domains, func(x BlockedDomain) bool { return x.Domain == domain })
}

func (s *memStore) isps(domain string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var isps []string
	for _, inst := range s.instances[domain] {
		isps = append(isps, inst.ISP)
	}
	slices.Sort(isps)
	return isps
}

// fakeChecker answers with scripted per-resolver classifications.
type fakeChecker struct {
	mu        sync.Mutex
	resolvers []blockwatch.Resolver
	answers   map[string][]blockwatch.Classification
	errs      map[string]error
	panics    map[string]bool
	health    []blockwatch.HealthEntry
	calls     int
}

func newFakeChecker(resolvers ...blockwatch.Resolver) *fakeChecker {
	return &fakeChecker{
		resolvers: resolvers,
		answers:   make(map[string][]blockwatch.Classification),
		errs:      make(map[string]error),
		panics:    make(map[string]bool),
	}
}

// answer scripts the classification of domain on each resolver, in
// resolver order.
func (c *fakeChecker) answer(domain string, classes ...blockwatch.Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[domain] = classes
}

func (c *fakeChecker) Check(ctx context.Context, domain string) (blockwatch.Verdict, error) {
	normalized, err := blockwatch.NormalizeDomain(domain)
	if err != nil {
		return blockwatch.Verdict{}, err
	}
	return c.RunFullCheck(ctx, normalized, c.resolvers)
}

func (c *fakeChecker) RunFullCheck(ctx context.Context, domain string, resolvers []blockwatch.Resolver) (blockwatch.Verdict, error) {
	c.mu.Lock()
	c.calls++
	classes := c.answers[domain]
	err := c.errs[domain]
	panics := c.panics[domain]
	c.mu.Unlock()

	if panics {
		panic("probe exploded for " + domain)
	}
	if err != nil {
		return blockwatch.Verdict{}, err
	}
	if err := ctx.Err(); err != nil {
		return blockwatch.Verdict{}, err
	}

	// Scripted answers are indexed by position in the full resolver list.
	var outcomes []blockwatch.ProbeOutcome
	for i, r := range c.resolvers {
		if !slices.Contains(resolvers, r) {
			continue
		}
		class := blockwatch.ProbeNotBlocked
		if i < len(classes) {
			class = classes[i]
		}
		outcomes = append(outcomes, blockwatch.ProbeOutcome{
			Domain:         domain,
			Resolver:       r,
			Classification: class,
		})
	}

	return blockwatch.Verdict{
		Domain:   domain,
		Final:    blockwatch.Classify(outcomes),
		Outcomes: outcomes,
	}, nil
}

func (c *fakeChecker) EnforcingResolvers() []blockwatch.Resolver {
	var out []blockwatch.Resolver
	for _, r := range c.resolvers {
		if r.EnforcesBlocking {
			out = append(out, r)
		}
	}
	return out
}

func (c *fakeChecker) Health() []blockwatch.HealthEntry {
	return slices.Clone(c.health)
}

// recordingNotifier collects messages.
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
	return slices.Clone(n.messages)
}

func (n *recordingNotifier) count(substr string) int {
	var c int
	for _, m := range n.Messages() {
		if strings.Contains(m, substr) {
			c++
		}
	}
	return c
}

// recordingMetrics counts cycles and transitions.
type recordingMetrics struct {
	mu          sync.Mutex
	cycles      []error
	transitions []Transition
}

func (m *recordingMetrics) ObserveCycle(_ string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, err)
}

func (m *recordingMetrics) ObserveTransition(t Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, t)
}

func enforcing(name, isp string) blockwatch.Resolver {
	return blockwatch.Resolver{
		Name:             name,
		Address:          "192.0.2.1",
		ISP:              isp,
		EnforcesBlocking: true,
		DetectionMethod:  blockwatch.DetectionCNAMEMarker,
	}
}

func control(name string) blockwatch.Resolver {
	return blockwatch.Resolver{Name: name, Address: "198.51.100.1"}
}
