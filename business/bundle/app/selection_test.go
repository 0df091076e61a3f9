package app

import (
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

func sortedIDs(items []*oppdomain.Opportunity) string {
	s := ids(items)
	sort.Strings(s)
	return strings.Join(s, ",")
}

func TestRiskAverse_PicksLowestRiskPairMeetingFloor(t *testing.T) {
	pool := []*oppdomain.Opportunity{
		candidate("r2", "1", 2),
		candidate("r9", "1", 9),
		candidate("r3", "1", 3),
	}
	c := Constraints{MaxSize: 5, MaxRisk: 10, MinProfit: decimal.NewFromInt(2)}

	tests := []struct {
		name  string
		limit int
	}{
		{name: "exhaustive", limit: 10},
		{name: "greedy_loop", limit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectItems(pool, RiskAverse{}, c, tt.limit)
			if sortedIDs(got) != "r2,r3" {
				t.Errorf("selected %v, want [r2 r3]", ids(got))
			}
		})
	}
}

func TestGreedy_TakesMostProfitableUnderRiskCap(t *testing.T) {
	pool := []*oppdomain.Opportunity{
		candidate("big", "10", 9),
		candidate("mid", "5", 3),
		candidate("small", "1", 2),
	}
	c := Constraints{MaxSize: 2, MaxRisk: 6}

	got := selectItems(pool, Greedy{}, c, 10)
	// big alone is over the cap, so the two safer items win
	if sortedIDs(got) != "mid,small" {
		t.Errorf("selected %v, want [mid small]", ids(got))
	}
}

func TestSelection_RespectsExclusiveResources(t *testing.T) {
	a := candidate("a", "5", 3)
	b := candidate("b", "4", 3)
	b.Instruments = a.Instruments // same pair and venues: same arb resource

	c := Constraints{MaxSize: 5, MaxRisk: 7}
	for _, s := range []Strategy{Greedy{}, Balanced{}} {
		got := selectItems([]*oppdomain.Opportunity{a, b}, s, c, 10)
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("%s selected %v, want [a]", s.Name(), ids(got))
		}
	}
}

func TestBalanced_DropsRiskyLowProfitItem(t *testing.T) {
	pool := []*oppdomain.Opportunity{
		candidate("safe", "10", 2),
		candidate("risky", "1", 7),
	}
	c := Constraints{MaxSize: 5, MaxRisk: 7}

	// safe alone: 10/3 = 3.33; both: 11/(1+2.45) = 3.19
	got := selectItems(pool, Balanced{}, c, 10)
	if sortedIDs(got) != "safe" {
		t.Errorf("selected %v, want [safe]", ids(got))
	}
}

func TestDiversified_PrefersNewCombos(t *testing.T) {
	a := candidate("a", "5", 3)
	b := candidate("b", "5", 3)
	liq := candidate("liq", "1", 3)
	liq.Kind = oppdomain.KindLiquidation
	liq.Venues = []string{"lending"}

	d := Diversified{}
	if d.Score(liq, []*oppdomain.Opportunity{a}) <= d.Score(b, []*oppdomain.Opportunity{a}) {
		t.Error("a new kind/venue combo should outscore a duplicate combo with more profit")
	}
}

func TestSynergistic_BonusForSharedVenue(t *testing.T) {
	s := Synergistic{Bonus: 0.1}
	a := candidate("a", "5", 3)
	b := candidate("b", "5", 3)

	alone := s.Score(b, nil)
	together := s.Score(b, []*oppdomain.Opportunity{a})
	// two shared venues: 5 + 0.1 × 5 × 2
	if alone != 5 || together != 6 {
		t.Errorf("Score alone = %v, together = %v; want 5, 6", alone, together)
	}
}

func TestNewStrategy(t *testing.T) {
	for _, name := range []domain.Strategy{
		domain.StrategyGreedy, domain.StrategyBalanced, domain.StrategyRiskAverse,
		domain.StrategyDiversified, domain.StrategySynergistic,
	} {
		s, err := NewStrategy(name, 0.1)
		if err != nil {
			t.Fatalf("NewStrategy(%s): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("Name() = %s, want %s", s.Name(), name)
		}
	}
	if _, err := NewStrategy("yolo", 0); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
