package app

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	attrdomain "github.com/fd1az/mev-bundler/business/attribution/domain"
	"github.com/fd1az/mev-bundler/business/opportunity/domain"
)

func constHist(v float64) HistoricalAdjustment {
	return HistoricalAdjustmentFunc(func(domain.Kind, string, *attrdomain.HistoryTable) float64 { return v })
}

func constSeasonal(v float64) SeasonalAdjustment {
	return SeasonalAdjustmentFunc(func(time.Time) float64 { return v })
}

func allFactors(score float64) []domain.RiskFactor {
	w := domain.DefaultWeights()
	out := make([]domain.RiskFactor, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		out = append(out, domain.NewRiskFactor(c, score, w[c]))
	}
	return out
}

func newOpp(factors []domain.RiskFactor) *domain.Opportunity {
	o := domain.New("opp", domain.KindArbitrage, []string{"orca", "raydium"}, []string{"SOL/USDC"},
		decimal.RequireFromString("12.5"), t0, 3*time.Second)
	o.SetFactors(factors)
	return o
}

func TestRiskScorer_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		factors  []domain.RiskFactor
		hist     float64
		seasonal float64
		want     float64
	}{
		{name: "all_max_plus_max_adjustments", factors: allFactors(10), hist: 1, seasonal: 0.5, want: 10},
		{name: "all_min_minus_max_adjustments", factors: allFactors(1), hist: -1, seasonal: -0.5, want: 1},
		{name: "adversarial_hist_high", factors: allFactors(5), hist: 100, want: 6},
		{name: "adversarial_hist_low", factors: allFactors(5), hist: -100, want: 4},
		{name: "adversarial_seasonal", factors: allFactors(5), seasonal: 9, want: 5.5},
		{name: "nan_adjustments_ignored", factors: allFactors(3), hist: math.NaN(), seasonal: math.NaN(), want: 3},
		{name: "out_of_range_raw_clamped", factors: allFactors(99), want: 10},
		{name: "no_factors_midpoint", factors: nil, want: 5.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewRiskScorer(constHist(tt.hist), constSeasonal(tt.seasonal), nil)
			if err != nil {
				t.Fatalf("NewRiskScorer: %v", err)
			}
			o := newOpp(tt.factors)
			got := s.Score(context.Background(), o)

			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
			if got < 1 || got > 10 {
				t.Errorf("Score() = %v outside [1,10]", got)
			}
			if o.NeedsScoring() {
				t.Error("opportunity still needs scoring")
			}
			if !o.GrossProfit().Equal(decimal.RequireFromString("12.5")) {
				t.Errorf("scorer changed gross to %s", o.GrossProfit())
			}
		})
	}
}

func TestComposite_RenormalizesPresentWeights(t *testing.T) {
	factors := []domain.RiskFactor{
		domain.NewRiskFactor(domain.CategoryVolatility, 10, 0.25),
		domain.NewRiskFactor(domain.CategoryLiquidity, 2, 0.20),
	}
	want := (10*0.25 + 2*0.20) / 0.45
	if got := Composite(factors); math.Abs(got-want) > 1e-12 {
		t.Errorf("Composite() = %v, want %v", got, want)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{name: "agreement", scores: []float64{4, 4, 4}, want: 1},
		{name: "split", scores: []float64{10, 1}, want: 0.55},
		{name: "none", scores: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fs []domain.RiskFactor
			for _, s := range tt.scores {
				fs = append(fs, domain.NewRiskFactor(domain.CategoryVolatility, s, 0.1))
			}
			if got := Confidence(fs); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Confidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRiskScorer_TableAdjustment(t *testing.T) {
	table := attrdomain.NewHistoryTable(map[string]attrdomain.Entry{
		attrdomain.Key(domain.KindArbitrage, "orca"): {Adjustment: 0.8, Samples: 20},
	}, t0)

	s, err := NewRiskScorer(nil, constSeasonal(0), historyFunc(func() *attrdomain.HistoryTable { return table }))
	if err != nil {
		t.Fatal(err)
	}

	o := newOpp(allFactors(5))
	if got := s.Score(context.Background(), o); math.Abs(got-5.8) > 1e-9 {
		t.Errorf("Score() = %v, want 5.8", got)
	}

	o.Venues = []string{"phoenix"}
	if got := s.Score(context.Background(), o); math.Abs(got-5) > 1e-9 {
		t.Errorf("Score() for unknown venue = %v, want 5", got)
	}
}

type historyFunc func() *attrdomain.HistoryTable

func (f historyFunc) Table() *attrdomain.HistoryTable { return f() }

func TestDefaultSeasonal(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{name: "weekday_overlap", at: time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC), want: 0.3},
		{name: "weekday_night", at: time.Date(2024, 3, 4, 3, 0, 0, 0, time.UTC), want: -0.3},
		{name: "weekday_morning", at: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), want: 0},
		{name: "weekend_night", at: time.Date(2024, 3, 9, 3, 0, 0, 0, time.UTC), want: -0.5},
		{name: "weekend_afternoon", at: time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC), want: -0.2},
		{name: "non_utc_input", at: time.Date(2024, 3, 4, 10, 0, 0, 0, time.FixedZone("EST", -5*3600)), want: 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultSeasonal(tt.at); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("DefaultSeasonal() = %v, want %v", got, tt.want)
			}
		})
	}
}
