package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

var t0 = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func opp(id string, kind oppdomain.Kind, gross, cost string, risk float64) *oppdomain.Opportunity {
	o := oppdomain.New(id, kind, []string{"orca", "raydium"}, []string{"SOL/USDC"},
		decimal.RequireFromString(gross), t0, 3*time.Second)
	o.ApplyCost(oppdomain.CostEstimate{BaseFee: decimal.RequireFromString(cost)})
	o.SetRisk(risk, 1)
	return o
}

func TestAggregateRisk_WithinItemBounds(t *testing.T) {
	tests := []struct {
		name  string
		items []*oppdomain.Opportunity
		want  float64
	}{
		{
			name:  "single",
			items: []*oppdomain.Opportunity{opp("a", oppdomain.KindArbitrage, "10", "1", 4)},
			want:  4,
		},
		{
			name: "net_weighted",
			items: []*oppdomain.Opportunity{
				opp("a", oppdomain.KindArbitrage, "4", "1", 2),  // net 3
				opp("b", oppdomain.KindArbitrage, "2", "1", 10), // net 1
			},
			want: 4,
		},
		{
			name: "losing_item_carries_no_weight",
			items: []*oppdomain.Opportunity{
				opp("a", oppdomain.KindArbitrage, "5", "1", 3),
				opp("b", oppdomain.KindArbitrage, "1", "2", 9),
			},
			want: 3,
		},
		{
			name: "all_losing_uses_plain_mean",
			items: []*oppdomain.Opportunity{
				opp("a", oppdomain.KindArbitrage, "1", "2", 3),
				opp("b", oppdomain.KindArbitrage, "1", "2", 7),
			},
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateRisk(tt.items)
			if got != tt.want {
				t.Errorf("AggregateRisk() = %v, want %v", got, tt.want)
			}

			lo, hi := 10.0, 1.0
			for _, o := range tt.items {
				lo = min(lo, o.RiskScore())
				hi = max(hi, o.RiskScore())
			}
			if got < lo || got > hi {
				t.Errorf("AggregateRisk() = %v outside [%v, %v]", got, lo, hi)
			}
		})
	}
}

func TestBundle_SetCostRecomputesProfit(t *testing.T) {
	b := New("b1", StrategyGreedy, []*oppdomain.Opportunity{
		opp("a", oppdomain.KindArbitrage, "5", "1", 3),
		opp("b", oppdomain.KindArbitrage, "3", "1", 5),
	}, t0)

	cost := oppdomain.CostEstimate{BaseFee: decimal.RequireFromString("1.5")}
	if err := b.SetCost(cost); err != nil {
		t.Fatalf("SetCost: %v", err)
	}
	if want := decimal.RequireFromString("6.5"); !b.AggregateProfit().Equal(want) {
		t.Errorf("AggregateProfit() = %s, want %s", b.AggregateProfit(), want)
	}
}

func TestBundle_FreezeOnce(t *testing.T) {
	b := New("b1", StrategyBalanced, []*oppdomain.Opportunity{
		opp("a", oppdomain.KindArbitrage, "5", "1", 3),
		opp("b", oppdomain.KindArbitrage, "3", "1", 5),
	}, t0)

	if err := b.Freeze([]int{1, 0}, AlgorithmExhaustive, false); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Fatalf("Freeze on draft: err = %v, want INVALID_STATE", err)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := b.Freeze([]int{0, 0}, AlgorithmExhaustive, false); !apperror.HasCode(err, apperror.CodeConstraintViolation) {
		t.Fatalf("Freeze with bad order: err = %v, want CONSTRAINT_VIOLATION", err)
	}
	if err := b.Freeze([]int{1, 0}, AlgorithmExhaustive, false); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if err := b.Freeze([]int{0, 1}, AlgorithmGraph, false); !apperror.HasCode(err, apperror.CodeBundleFrozen) {
		t.Errorf("second Freeze: err = %v, want BUNDLE_FROZEN", err)
	}
	if err := b.SetCost(oppdomain.CostEstimate{}); !apperror.HasCode(err, apperror.CodeBundleFrozen) {
		t.Errorf("SetCost after validate: err = %v, want BUNDLE_FROZEN", err)
	}

	if got := b.Ordered()[0].ID; got != "b" {
		t.Errorf("Ordered()[0] = %s, want b", got)
	}
	order := b.ExecutionOrder()
	order[0] = 9
	if b.ExecutionOrder()[0] != 1 {
		t.Error("ExecutionOrder() exposes internal slice")
	}
}

func TestBundle_RejectKeepsReasons(t *testing.T) {
	b := New("b1", StrategyRiskAverse, []*oppdomain.Opportunity{
		opp("a", oppdomain.KindArbitrage, "5", "1", 9),
	}, t0)

	if err := b.Reject(oppdomain.Reason{Code: apperror.CodeRiskLimitExceeded, Detail: "9.00 > 7.00"}); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if err := b.Validate(); err == nil {
		t.Error("Validate after Reject should fail")
	}

	snap := b.Snapshot()
	if snap.Status != StatusRejected || len(snap.Reasons) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Reasons[0] != "RISK_LIMIT_EXCEEDED: 9.00 > 7.00" {
		t.Errorf("reason = %q", snap.Reasons[0])
	}
}
