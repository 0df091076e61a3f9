// Package domain contains network-state types: congestion and market conditions.
package domain

import (
	"math"
	"sort"
	"time"
)

// NeutralMultiplier is the congestion multiplier of an idle network.
const NeutralMultiplier = 1.0

// CongestionState is the network-wide priority fee pressure.
type CongestionState struct {
	Network    string
	Multiplier float64
	Source     string
	ObservedAt time.Time
}

// Neutral returns an idle state for network.
func Neutral(network string, now time.Time) CongestionState {
	return CongestionState{
		Network:    network,
		Multiplier: NeutralMultiplier,
		Source:     "neutral",
		ObservedAt: now,
	}
}

// Stale reports whether the state is older than maxAge at now.
func (c CongestionState) Stale(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(c.ObservedAt) > maxAge
}

// MultiplierFromFees maps observed fees against a baseline into [1, max].
// The median is used so a single outlier slot does not spike the multiplier.
func MultiplierFromFees(fees []float64, baseline, max float64) float64 {
	if len(fees) == 0 || baseline <= 0 {
		return NeutralMultiplier
	}
	sorted := append([]float64(nil), fees...)
	sort.Float64s(sorted)

	var median float64
	n := len(sorted)
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return ClampMultiplier(median/baseline, max)
}

// ClampMultiplier bounds m to [1, max]; max <= 1 disables the upper bound.
func ClampMultiplier(m, max float64) float64 {
	if math.IsNaN(m) || m < NeutralMultiplier {
		return NeutralMultiplier
	}
	if max > NeutralMultiplier && m > max {
		return max
	}
	return m
}
