package app

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
	"github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/asset"
	"github.com/fd1az/mev-bundler/internal/logger"
)

var t0 = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(DefaultDetectorConfig(), asset.DefaultRegistry(), logger.NewDiscard())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func q(venue, pair, price, volume, fee string, at time.Time) marketdomain.VenueQuote {
	base, quote, _ := strings.Cut(pair, "/")
	return marketdomain.VenueQuote{
		Venue:              venue,
		Pair:               marketdomain.NewPair(base, quote),
		Price:              decimal.RequireFromString(price),
		AvailableVolumeUSD: decimal.RequireFromString(volume),
		FeeRatePct:         decimal.RequireFromString(fee),
		ObservedAt:         at,
	}
}

func position(id, collateral, debt, threshold, sym string) marketdomain.PositionSnapshot {
	return marketdomain.PositionSnapshot{
		PositionID:              id,
		CollateralValue:         decimal.RequireFromString(collateral),
		DebtValue:               decimal.RequireFromString(debt),
		LiquidationThresholdPct: decimal.RequireFromString(threshold),
		Asset:                   sym,
		ObservedAt:              t0,
	}
}

func TestDetector_SOLUSDCArbitrage(t *testing.T) {
	d := newDetector(t)

	res := d.Detect(context.Background(), marketdomain.Batch{Quotes: []marketdomain.VenueQuote{
		q("venue-a", "SOL/USDC", "100.00", "10000", "0.0025", t0),
		q("venue-b", "SOL/USDC", "100.50", "10000", "0.0030", t0.Add(time.Second)),
	}})

	if len(res.Opportunities) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(res.Opportunities))
	}
	o := res.Opportunities[0]

	if o.Kind != domain.KindArbitrage {
		t.Errorf("Kind = %s", o.Kind)
	}
	if !reflect.DeepEqual(o.Venues, []string{"venue-a", "venue-b"}) {
		t.Errorf("Venues = %v, want buy venue-a sell venue-b", o.Venues)
	}
	// 10% tranche: 1000 × (0.005 − 0.003 − 2 × 0.0007)
	if want := decimal.RequireFromString("0.6"); !o.GrossProfit().Equal(want) {
		t.Errorf("GrossProfit = %s, want %s", o.GrossProfit(), want)
	}
	if !o.Signals.Tranche.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("Tranche = %s, want 0.1", o.Signals.Tranche)
	}
	if !o.DetectedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("DetectedAt = %v, want latest observation", o.DetectedAt)
	}
	if !o.ExpiresAt.Equal(o.DetectedAt.Add(3 * time.Second)) {
		t.Errorf("ExpiresAt = %v", o.ExpiresAt)
	}
	if !o.NetProfit().IsPositive() {
		t.Errorf("NetProfit = %s, want positive", o.NetProfit())
	}
}

func TestDetector_ArbitrageFilters(t *testing.T) {
	tests := []struct {
		name   string
		quotes []marketdomain.VenueQuote
		want   int
	}{
		{
			name: "spread_below_threshold",
			quotes: []marketdomain.VenueQuote{
				q("a", "SOL/USDC", "100.00", "10000", "0", t0),
				q("b", "SOL/USDC", "100.05", "10000", "0", t0),
			},
			want: 0,
		},
		{
			name: "volume_below_minimum",
			quotes: []marketdomain.VenueQuote{
				q("a", "SOL/USDC", "100", "5", "0", t0),
				q("b", "SOL/USDC", "101", "10000", "0", t0),
			},
			want: 0,
		},
		{
			name: "fees_eat_spread",
			quotes: []marketdomain.VenueQuote{
				q("a", "SOL/USDC", "100", "10000", "0.01", t0),
				q("b", "SOL/USDC", "100.5", "10000", "0.01", t0),
			},
			want: 0,
		},
		{
			name: "different_pairs_not_compared",
			quotes: []marketdomain.VenueQuote{
				q("a", "SOL/USDC", "100", "10000", "0", t0),
				q("b", "SOL/USDT", "105", "10000", "0", t0),
			},
			want: 0,
		},
		{
			name: "three_venues_three_pairs",
			quotes: []marketdomain.VenueQuote{
				q("a", "SOL/USDC", "100", "10000", "0", t0),
				q("b", "SOL/USDC", "101", "10000", "0", t0),
				q("c", "SOL/USDC", "102", "10000", "0", t0),
			},
			want: 3,
		},
		{
			name: "latest_quote_per_venue_wins",
			quotes: []marketdomain.VenueQuote{
				q("a", "SOL/USDC", "100", "10000", "0", t0),
				q("b", "SOL/USDC", "101", "10000", "0", t0),
				q("b", "SOL/USDC", "100", "10000", "0", t0.Add(time.Second)),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDetector(t)
			res := d.Detect(context.Background(), marketdomain.Batch{Quotes: tt.quotes})
			if len(res.Opportunities) != tt.want {
				t.Errorf("got %d opportunities, want %d", len(res.Opportunities), tt.want)
			}
		})
	}
}

func TestDetector_TieKeepsSmallerTranche(t *testing.T) {
	// spread 0.01 and 2 × 0.005/1000 slippage make 250 and 750 net the same 1.875
	cfg := DefaultDetectorConfig()
	cfg.SlippageBase = decimal.Zero
	cfg.SlippageMultiplier = decimal.RequireFromString("0.005")
	cfg.Tranches = []decimal.Decimal{decimal.RequireFromString("0.75"), decimal.RequireFromString("0.25")}

	d, err := NewDetector(cfg, nil, logger.NewDiscard())
	if err != nil {
		t.Fatal(err)
	}

	res := d.Detect(context.Background(), marketdomain.Batch{Quotes: []marketdomain.VenueQuote{
		q("a", "SOL/USDC", "100", "1000", "0", t0),
		q("b", "SOL/USDC", "101", "1000", "0", t0),
	}})
	if len(res.Opportunities) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(res.Opportunities))
	}
	o := res.Opportunities[0]
	if !o.Signals.Tranche.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("Tranche = %s, want 0.25", o.Signals.Tranche)
	}
	if !o.GrossProfit().Equal(decimal.RequireFromString("1.875")) {
		t.Errorf("GrossProfit = %s, want 1.875", o.GrossProfit())
	}

	// without slippage the largest tranche nets the most
	d2 := newDetector(t)
	d2.config.SlippageBase = decimal.Zero
	d2.config.SlippageMultiplier = decimal.Zero
	res = d2.Detect(context.Background(), marketdomain.Batch{Quotes: []marketdomain.VenueQuote{
		q("a", "SOL/USDC", "100", "1000", "0", t0),
		q("b", "SOL/USDC", "101", "1000", "0", t0),
	}})
	if !res.Opportunities[0].Signals.Tranche.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Tranche = %s, want 1", res.Opportunities[0].Signals.Tranche)
	}
}

func TestDetector_Liquidation(t *testing.T) {
	tests := []struct {
		name      string
		pos       marketdomain.PositionSnapshot
		wantEmit  bool
		wantGross string
		wantHF    string
	}{
		{
			name:      "scenario_hf_0944_major",
			pos:       position("pos-1", "1000", "900", "0.85", "SOL"),
			wantEmit:  true,
			wantGross: "75",
			wantHF:    "0.944",
		},
		{
			name:      "threshold_as_percentage",
			pos:       position("pos-2", "1000", "900", "85", "USDC"),
			wantEmit:  true,
			wantGross: "50",
			wantHF:    "0.944",
		},
		{
			name:      "longtail_bonus",
			pos:       position("pos-3", "1000", "800", "0.85", "BONK"),
			wantEmit:  true,
			wantGross: "100",
			wantHF:    "1.063",
		},
		{
			name:     "healthy",
			pos:      position("pos-4", "1000", "500", "0.85", "SOL"),
			wantEmit: false,
		},
		{
			name:     "no_debt",
			pos:      position("pos-5", "1000", "0", "0.85", "SOL"),
			wantEmit: false,
		},
		{
			name:     "exactly_at_buffer",
			pos:      position("pos-6", "1100", "850", "0.85", "SOL"),
			wantEmit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDetector(t)
			res := d.Detect(context.Background(), marketdomain.Batch{Positions: []marketdomain.PositionSnapshot{tt.pos}})

			if !tt.wantEmit {
				if len(res.Opportunities) != 0 {
					t.Errorf("got %d opportunities, want none", len(res.Opportunities))
				}
				return
			}
			if len(res.Opportunities) != 1 {
				t.Fatalf("got %d opportunities, want 1", len(res.Opportunities))
			}
			o := res.Opportunities[0]
			if o.Kind != domain.KindLiquidation {
				t.Errorf("Kind = %s", o.Kind)
			}
			if !o.GrossProfit().Equal(decimal.RequireFromString(tt.wantGross)) {
				t.Errorf("GrossProfit = %s, want %s", o.GrossProfit(), tt.wantGross)
			}
			if got := o.Signals.HealthFactor.Round(3); !got.Equal(decimal.RequireFromString(tt.wantHF)) {
				t.Errorf("HealthFactor = %s, want %s", got, tt.wantHF)
			}
			if o.Venues[0] != marketdomain.DefaultLendingVenue {
				t.Errorf("Venues = %v", o.Venues)
			}
			if !o.ExpiresAt.Equal(t0.Add(30 * time.Second)) {
				t.Errorf("ExpiresAt = %v", o.ExpiresAt)
			}
		})
	}
}

func TestDetector_MalformedSkipped(t *testing.T) {
	d := newDetector(t)

	bad := []marketdomain.VenueQuote{
		q("", "SOL/USDC", "100", "10000", "0", t0),
		q("a", "SOL/USDC", "0", "10000", "0", t0),
		q("a", "SOL/USDC", "100", "-1", "0", t0),
		q("a", "SOL/USDC", "100", "10000", "1", t0),
		q("a", "SOL/USDC", "100", "10000", "0", time.Time{}),
	}
	good := []marketdomain.VenueQuote{
		q("a", "SOL/USDC", "100", "10000", "0", t0),
		q("b", "SOL/USDC", "101", "10000", "0", t0),
	}
	badPos := position("", "1000", "900", "0.85", "SOL")

	res := d.Detect(context.Background(), marketdomain.Batch{
		Quotes:    append(bad, good...),
		Positions: []marketdomain.PositionSnapshot{badPos, position("pos-1", "1000", "900", "0.85", "SOL")},
	})

	if res.Skipped != 6 {
		t.Errorf("Skipped = %d, want 6", res.Skipped)
	}
	if len(res.Opportunities) != 2 {
		t.Errorf("got %d opportunities, want 2", len(res.Opportunities))
	}
}

func TestDetector_Idempotent(t *testing.T) {
	batch := marketdomain.Batch{
		Quotes: []marketdomain.VenueQuote{
			q("c", "SOL/USDC", "102", "8000", "0.001", t0),
			q("a", "SOL/USDC", "100", "10000", "0.0025", t0),
			q("b", "SOL/USDC", "101", "10000", "0.003", t0.Add(time.Second)),
			q("a", "JUP/USDC", "1.00", "5000", "0.002", t0),
			q("b", "JUP/USDC", "1.02", "5000", "0.002", t0),
		},
		Positions: []marketdomain.PositionSnapshot{
			position("pos-2", "2000", "1900", "0.9", "JUP"),
			position("pos-1", "1000", "900", "0.85", "SOL"),
		},
	}

	first := newDetector(t).Detect(context.Background(), batch)
	second := newDetector(t).Detect(context.Background(), batch)

	if len(first.Opportunities) == 0 {
		t.Fatal("expected opportunities")
	}
	if len(first.Opportunities) != len(second.Opportunities) {
		t.Fatalf("run lengths differ: %d vs %d", len(first.Opportunities), len(second.Opportunities))
	}
	for i := range first.Opportunities {
		a, b := *first.Opportunities[i], *second.Opportunities[i]
		if a.ID == b.ID {
			t.Errorf("[%d] ids should differ", i)
		}
		b.ID = a.ID
		if !reflect.DeepEqual(a, b) {
			t.Errorf("[%d] opportunities differ:\n%+v\n%+v", i, a, b)
		}
	}
}
