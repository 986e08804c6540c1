// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func enforcer(name, isp string) Resolver {
	return Resolver{
		Name:             name,
		Address:          "192.0.2.1",
		ISP:              isp,
		EnforcesBlocking: true,
		DetectionMethod:  DetectionCNAMEMarker,
	}
}

func control(name string) Resolver {
	return Resolver{Name: name, Address: "198.51.100.1"}
}

func outcome(r Resolver, c Classification) ProbeOutcome {
	return ProbeOutcome{Domain: "example.com", Resolver: r, Classification: c}
}

func TestClassifyRules(t *testing.T) {
	x1, x2, y := enforcer("x1", "X"), enforcer("x2", "X"), enforcer("y", "Y")
	c1, c2 := control("c1"), control("c2")

	tests := []struct {
		name     string
		outcomes []ProbeOutcome
		want     Final
	}{
		{
			name: "fake block dominates everything",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeBlocked), outcome(y, ProbeBlocked),
				outcome(c1, ProbeNotBlocked), outcome(c2, ProbeBlocked),
			},
			want: VerdictFakeBlocked,
		},
		{
			name: "fake block with otherwise nxdomain",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeNXDomain), outcome(c1, ProbeBlocked),
			},
			want: VerdictFakeBlocked,
		},
		{
			name: "blocked with enforcing timeout",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeBlocked), outcome(y, ProbeTimeout), outcome(c1, ProbeNotBlocked),
			},
			want: VerdictBlocked,
		},
		{
			name: "partially blocked when an enforcer answers not blocked",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeBlocked), outcome(y, ProbeNotBlocked), outcome(c1, ProbeNotBlocked),
			},
			want: VerdictPartiallyBlocked,
		},
		{
			name: "partially blocked when an enforcer errors",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeBlocked), outcome(x2, ProbeError),
			},
			want: VerdictPartiallyBlocked,
		},
		{
			name: "all enforcers error",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeError), outcome(y, ProbeError), outcome(c1, ProbeNotBlocked),
			},
			want: VerdictError,
		},
		{
			name:     "control only errors are not an assessment failure",
			outcomes: []ProbeOutcome{outcome(c1, ProbeError)},
			want:     VerdictNotBlocked,
		},
		{
			name:     "no enforcing outcomes and every control errors",
			outcomes: []ProbeOutcome{outcome(c1, ProbeError), outcome(c2, ProbeError)},
			want:     VerdictNotBlocked,
		},
		{
			name: "nxdomain with timeouts",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeNXDomain), outcome(y, ProbeTimeout), outcome(c1, ProbeNXDomain),
			},
			want: VerdictNXDomain,
		},
		{
			name: "nxdomain contradicted by a resolving control",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeNXDomain), outcome(c1, ProbeNotBlocked),
			},
			want: VerdictNotBlocked,
		},
		{
			name: "all timeouts",
			outcomes: []ProbeOutcome{
				outcome(x1, ProbeTimeout), outcome(c1, ProbeTimeout),
			},
			want: VerdictNotBlocked,
		},
		{
			name:     "empty set",
			outcomes: nil,
			want:     VerdictNotBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.outcomes))
		})
	}
}

func TestClassifyProperties(t *testing.T) {
	all := []Classification{ProbeBlocked, ProbeNotBlocked, ProbeNXDomain, ProbeTimeout, ProbeError}

	t.Run("all enforcing blocked is blocked", func(t *testing.T) {
		for n := 1; n <= 5; n++ {
			outcomes := make([]ProbeOutcome, n)
			for i := range outcomes {
				outcomes[i] = outcome(enforcer(fmt.Sprint(i), "X"), ProbeBlocked)
			}
			assert.Equal(t, VerdictBlocked, Classify(outcomes), "n=%d", n)
		}
	})

	t.Run("one blocked control is fake regardless of the rest", func(t *testing.T) {
		for _, e := range all {
			for _, other := range all {
				outcomes := []ProbeOutcome{
					outcome(enforcer("e", "X"), e),
					outcome(control("other"), other),
					outcome(control("liar"), ProbeBlocked),
				}
				if other == ProbeBlocked {
					// Exactly one control reports the marker.
					outcomes[1].Classification = ProbeNotBlocked
				}
				assert.Equal(t, VerdictFakeBlocked, Classify(outcomes), "enforcing=%s other=%s", e, other)
			}
		}
	})

	t.Run("all not blocked is not blocked", func(t *testing.T) {
		outcomes := []ProbeOutcome{
			outcome(enforcer("a", "X"), ProbeNotBlocked),
			outcome(enforcer("b", "Y"), ProbeNotBlocked),
			outcome(control("c"), ProbeNotBlocked),
		}
		assert.Equal(t, VerdictNotBlocked, Classify(outcomes))
		assert.Equal(t, VerdictNotBlocked, Classify(outcomes[2:]))
	})

	t.Run("idempotent", func(t *testing.T) {
		for _, a := range all {
			for _, b := range all {
				for _, c := range all {
					outcomes := []ProbeOutcome{
						outcome(enforcer("a", "X"), a),
						outcome(enforcer("b", "Y"), b),
						outcome(control("c"), c),
					}
					first := Classify(outcomes)
					assert.Equal(t, first, Classify(outcomes))
				}
			}
		}
	})

	t.Run("order independent", func(t *testing.T) {
		outcomes := []ProbeOutcome{
			outcome(enforcer("a", "X"), ProbeBlocked),
			outcome(enforcer("b", "Y"), ProbeNotBlocked),
			outcome(control("c"), ProbeNXDomain),
		}
		reversed := []ProbeOutcome{outcomes[2], outcomes[1], outcomes[0]}
		assert.Equal(t, Classify(outcomes), Classify(reversed))
	})
}

func TestClassifyScenarios(t *testing.T) {
	t.Run("A: every enforcer blocks", func(t *testing.T) {
		outcomes := []ProbeOutcome{
			outcome(enforcer("x1", "X"), ProbeBlocked),
			outcome(enforcer("x2", "X"), ProbeBlocked),
			outcome(enforcer("y", "Y"), ProbeBlocked),
			outcome(control("c1"), ProbeNotBlocked),
			outcome(control("c2"), ProbeNotBlocked),
		}
		assert.Equal(t, VerdictBlocked, Classify(outcomes))
	})

	t.Run("B: one of two enforcers blocks", func(t *testing.T) {
		outcomes := []ProbeOutcome{
			outcome(enforcer("x", "X"), ProbeBlocked),
			outcome(enforcer("y", "Y"), ProbeNotBlocked),
			outcome(control("c1"), ProbeNotBlocked),
		}
		assert.Equal(t, VerdictPartiallyBlocked, Classify(outcomes))
	})

	t.Run("D: everything nxdomain", func(t *testing.T) {
		outcomes := []ProbeOutcome{
			outcome(enforcer("x", "X"), ProbeNXDomain),
			outcome(enforcer("y", "Y"), ProbeNXDomain),
			outcome(control("c1"), ProbeNXDomain),
		}
		assert.Equal(t, VerdictNXDomain, Classify(outcomes))
	})
}
