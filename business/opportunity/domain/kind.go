// Package domain contains the core domain types for the opportunity context.
package domain

import "github.com/fd1az/mev-bundler/internal/apperror"

// Kind is the type of MEV opportunity.
type Kind string

const (
	KindArbitrage         Kind = "arbitrage"
	KindLiquidation       Kind = "liquidation"
	KindSandwichCandidate Kind = "sandwich_candidate"
)

// Rank orders kinds for deterministic output.
func (k Kind) Rank() int {
	switch k {
	case KindArbitrage:
		return 0
	case KindLiquidation:
		return 1
	case KindSandwichCandidate:
		return 2
	}
	return 3
}

// Exposure weights how much a kind is hurt by price drift across a bundle.
func (k Kind) Exposure() float64 {
	switch k {
	case KindLiquidation:
		return 0.5
	case KindSandwichCandidate:
		return 1.5
	}
	return 1.0
}

// Status is the lifecycle state of an opportunity.
type Status string

const (
	StatusDetected Status = "detected"
	StatusQueued   Status = "queued"
	StatusComposed Status = "composed"
	StatusExpired  Status = "expired"
	StatusRejected Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusDetected: {StatusQueued, StatusExpired, StatusRejected},
	StatusQueued:   {StatusQueued, StatusComposed, StatusExpired, StatusRejected},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Reason is a machine-readable rejection or expiry cause.
type Reason struct {
	Code   apperror.Code
	Detail string
}

func (r Reason) String() string {
	if r.Detail == "" {
		return string(r.Code)
	}
	return string(r.Code) + ": " + r.Detail
}
