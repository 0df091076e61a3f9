package app

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
	"github.com/fd1az/mev-bundler/business/network/domain"
)

func quote(venue string, price string, at time.Time) marketdomain.VenueQuote {
	return marketdomain.VenueQuote{
		Venue:              venue,
		Pair:               marketdomain.NewPair("SOL", "USDC"),
		Price:              decimal.RequireFromString(price),
		AvailableVolumeUSD: decimal.NewFromInt(1000),
		ObservedAt:         at,
	}
}

func TestConditionsTracker_VolatilityPerVenue(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewConditionsTracker(ConditionsConfig{Alpha: 0.5})

	// cross-venue spread is not a return
	tr.Observe(quote("orca", "100", t0))
	tr.Observe(quote("raydium", "101", t0))
	tr.Publish(t0)

	ic, ok := tr.Snapshot().Instrument("SOL/USDC")
	if !ok {
		t.Fatal("instrument missing from snapshot")
	}
	if ic.Samples != 0 || ic.Volatility != 0 {
		t.Errorf("got %+v, want no return samples yet", ic)
	}

	tr.Observe(quote("orca", "102", t0.Add(time.Second)))
	tr.Observe(quote("orca", "100", t0.Add(2*time.Second)))
	tr.Publish(t0.Add(2 * time.Second))

	ic, _ = tr.Snapshot().Instrument("SOL/USDC")
	r1 := math.Log(102.0 / 100.0)
	r2 := math.Log(100.0 / 102.0)
	wantVol := 0.5*math.Abs(r2) + 0.5*math.Abs(r1)
	wantDrift := 0.5*r2 + 0.5*r1

	if ic.Samples != 2 {
		t.Errorf("Samples = %d, want 2", ic.Samples)
	}
	if math.Abs(ic.Volatility-wantVol) > 1e-12 {
		t.Errorf("Volatility = %v, want %v", ic.Volatility, wantVol)
	}
	if math.Abs(ic.Drift-wantDrift) > 1e-12 {
		t.Errorf("Drift = %v, want %v", ic.Drift, wantDrift)
	}
}

func TestConditionsTracker_PublishIfDue(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewConditionsTracker(ConditionsConfig{PublishInterval: time.Second})

	if tr.PublishIfDue(t0) {
		t.Error("published without observations")
	}

	tr.Observe(quote("orca", "100", t0))
	if !tr.PublishIfDue(t0) {
		t.Error("first publish should be due")
	}

	tr.Observe(quote("orca", "101", t0))
	if tr.PublishIfDue(t0.Add(500 * time.Millisecond)) {
		t.Error("published before interval elapsed")
	}
	if !tr.PublishIfDue(t0.Add(time.Second)) {
		t.Error("publish should be due after interval")
	}
}

func TestConditionsTracker_SnapshotIsolated(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewConditionsTracker(ConditionsConfig{})

	tr.Observe(quote("orca", "100", t0))
	tr.Publish(t0)
	before := tr.Snapshot()

	tr.Observe(quote("orca", "150", t0.Add(time.Second)))

	ic, _ := before.Instrument("SOL/USDC")
	if ic.LastPrice != 100 {
		t.Errorf("published snapshot mutated: LastPrice = %v", ic.LastPrice)
	}
}

func TestConditionsTracker_Competition(t *testing.T) {
	tr := NewConditionsTracker(ConditionsConfig{
		VenueCompetition: map[string]float64{"Jupiter": 9, "orca": 42},
	})
	snap := tr.Snapshot()

	tests := []struct {
		venue string
		want  float64
	}{
		{venue: "jupiter", want: 9},
		{venue: "JUPITER", want: 9},
		{venue: "orca", want: 10},
		{venue: "phoenix", want: domain.DefaultCompetition},
	}
	for _, tt := range tests {
		if got := snap.CompetitionLevel(tt.venue); got != tt.want {
			t.Errorf("CompetitionLevel(%s) = %v, want %v", tt.venue, got, tt.want)
		}
	}
}
