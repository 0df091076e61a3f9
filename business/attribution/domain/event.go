package domain

import (
	"time"

	bundledomain "github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// EventType distinguishes opportunity and bundle events.
type EventType string

const (
	EventOpportunity EventType = "opportunity"
	EventBundle      EventType = "bundle"
)

// Event records a terminal state: an expired or rejected opportunity, or a
// validated or rejected bundle.
type Event struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	Status      string                 `json:"status"`
	Reasons     []string               `json:"reasons,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Opportunity *oppdomain.Snapshot    `json:"opportunity,omitempty"`
	Bundle      *bundledomain.Snapshot `json:"bundle,omitempty"`
}

// OpportunityEvent captures opp at now.
func OpportunityEvent(opp *oppdomain.Opportunity, now time.Time) Event {
	snap := opp.Snapshot()
	e := Event{
		ID:          snap.ID,
		Type:        EventOpportunity,
		Status:      string(snap.Status),
		OccurredAt:  now,
		Opportunity: &snap,
	}
	if snap.Reason != "" {
		e.Reasons = []string{snap.Reason}
	}
	return e
}

// BundleEvent captures b at now.
func BundleEvent(b *bundledomain.Bundle, now time.Time) Event {
	snap := b.Snapshot()
	return Event{
		ID:         snap.ID,
		Type:       EventBundle,
		Status:     string(snap.Status),
		Reasons:    snap.Reasons,
		OccurredAt: now,
		Bundle:     &snap,
	}
}
