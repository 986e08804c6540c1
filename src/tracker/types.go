// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tracker

import "time"

// BlockedSite describes the blocking decision a group of domains belongs to.
type BlockedSite struct {
	// Name is the display name of the site, unique per store.
	Name string `json:"name"`

	// RecommendationURL links to the published blocking recommendation.
	RecommendationURL string `json:"recommendation_url,omitempty"`

	// DecisionDate is when the blocking was decided, if known.
	DecisionDate *time.Time `json:"decision_date,omitempty"`
}

// BlockedDomain is a tracked domain. Its existence means the domain is
// under active reconciliation.
type BlockedDomain struct {
	Domain         string       `json:"domain"`
	FirstBlockedOn time.Time    `json:"first_blocked_on"`
	AddedBy        string       `json:"added_by,omitempty"`
	Site           *BlockedSite `json:"site,omitempty"`
}

// BlockingInstance records that one ISP currently enforces the block for
// one domain.
type BlockingInstance struct {
	Domain    string    `json:"domain"`
	ISP       string    `json:"isp"`
	BlockedOn time.Time `json:"blocked_on"`
}

// DomainSummary is a tracked domain together with its current per-ISP
// enforcement.
type DomainSummary struct {
	BlockedDomain
	Instances []BlockingInstance `json:"instances"`
}

// ISPs returns the names of the ISPs currently enforcing the block.
func (s DomainSummary) ISPs() []string {
	isps := make([]string, len(s.Instances))
	for i, inst := range s.Instances {
		isps[i] = inst.ISP
	}
	return isps
}

// AddRequest is the input of [Tracker.AddDomain].
type AddRequest struct {
	// Domain is normalized before use.
	Domain string

	// Credential is the pre-shared admin token.
	Credential string

	// AddedBy optionally names who added the domain.
	AddedBy string

	// Site optionally links the domain to a blocking decision.
	Site *BlockedSite
}

// AddResult is the output of [Tracker.AddDomain].
type AddResult struct {
	Domain string `json:"domain"`
	IsNew  bool   `json:"is_new"`
}

// Transition names a change in persisted enforcement state.
type Transition string

// Enforcement transitions.
const (
	TransitionTracked      Transition = "tracked"
	TransitionISPBlocked   Transition = "isp_blocked"
	TransitionISPUnblocked Transition = "isp_unblocked"
	TransitionUnblocked    Transition = "unblocked"
	TransitionGone         Transition = "gone"
)
