package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/logger"
)

func newComposer(t *testing.T, cfg ComposerConfig) *Composer {
	t.Helper()
	c, err := NewComposer(cfg, sumCoster{}, logger.NewDiscard())
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	n := 0
	c.newID = func() string { n++; return "bundle-" + string(rune('0'+n)) }
	return c
}

func TestComposer_ValidatesAndRemovesItems(t *testing.T) {
	c := newComposer(t, ComposerConfig{Strategy: domain.StrategyGreedy, MaxSize: 2, MaxRisk: 7, MaxBundlesPerCycle: 2})

	opps := []*oppdomain.Opportunity{
		candidate("a", "5", 3),
		candidate("b", "4", 3),
		candidate("c", "3", 3),
	}
	if refused := c.Ingest(opps...); len(refused) != 0 {
		t.Fatalf("refused %v", ids(refused))
	}
	if c.PoolSize() != 3 {
		t.Fatalf("PoolSize() = %d, want 3", c.PoolSize())
	}

	res := c.Compose(context.Background(), now)

	if len(res.Validated) != 2 {
		t.Fatalf("validated %d bundles, want 2", len(res.Validated))
	}
	first := res.Validated[0]
	if got := ids(first.Items()); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("first bundle = %v, want [a b]", got)
	}
	if first.Status() != domain.StatusValidated {
		t.Errorf("status = %s", first.Status())
	}
	if !first.AggregateProfit().Equal(decimal.NewFromInt(9)) {
		t.Errorf("AggregateProfit = %s, want 9", first.AggregateProfit())
	}
	for _, o := range first.Items() {
		if o.Status() != oppdomain.StatusComposed {
			t.Errorf("%s status = %s, want composed", o.ID, o.Status())
		}
	}
	if c.PoolSize() != 0 {
		t.Errorf("PoolSize() = %d, want 0", c.PoolSize())
	}
}

func TestComposer_SweepsExpiredAndUnprofitable(t *testing.T) {
	c := newComposer(t, ComposerConfig{Strategy: domain.StrategyBalanced})

	loser := candidate("loser", "1", 3)
	loser.ApplyCost(oppdomain.CostEstimate{BaseFee: decimal.NewFromInt(2)})
	loser.SetRisk(3, 1)
	stale := candidate("stale", "5", 3)

	c.Ingest(loser, stale)
	res := c.Compose(context.Background(), now.Add(5*time.Second))

	if len(res.Terminal) != 2 {
		t.Fatalf("terminal = %v, want both", ids(res.Terminal))
	}
	// expiry wins over unprofitability
	for _, o := range res.Terminal {
		if reason, _ := o.Reason(); reason.Code != apperror.CodeExpired || o.Status() != oppdomain.StatusExpired {
			t.Errorf("%s = %s/%s, want expired/EXPIRED", o.ID, o.Status(), reason.Code)
		}
	}
	if len(res.Validated)+len(res.Rejected) != 0 {
		t.Error("nothing should be bundled")
	}
}

func TestComposer_SweepBetweenCycles(t *testing.T) {
	c := newComposer(t, ComposerConfig{Strategy: domain.StrategyGreedy})
	c.Ingest(candidate("a", "5", 3), candidate("b", "4", 3))

	if out := c.Sweep(now); len(out) != 0 {
		t.Fatalf("Sweep(now) = %v, want none", ids(out))
	}
	if c.PoolSize() != 2 {
		t.Fatalf("PoolSize() = %d, want 2", c.PoolSize())
	}

	out := c.Sweep(now.Add(5 * time.Second))
	if len(out) != 2 {
		t.Fatalf("Sweep = %v, want both expired", ids(out))
	}
	for _, o := range out {
		if o.Status() != oppdomain.StatusExpired {
			t.Errorf("%s status = %s, want expired", o.ID, o.Status())
		}
	}
	if c.PoolSize() != 0 {
		t.Errorf("PoolSize() = %d, want 0", c.PoolSize())
	}
}

func TestComposer_UnprofitableRejected(t *testing.T) {
	c := newComposer(t, ComposerConfig{Strategy: domain.StrategyGreedy})

	loser := candidate("loser", "1", 3)
	loser.ApplyCost(oppdomain.CostEstimate{BaseFee: decimal.NewFromInt(2)})
	loser.SetRisk(3, 1)

	c.Ingest(loser)
	res := c.Compose(context.Background(), now)

	if len(res.Terminal) != 1 || res.Terminal[0].Status() != oppdomain.StatusRejected {
		t.Fatalf("terminal = %v", ids(res.Terminal))
	}
	if reason, _ := res.Terminal[0].Reason(); reason.Code != apperror.CodeUnprofitable {
		t.Errorf("reason = %s, want UNPROFITABLE", reason.Code)
	}
}

func TestComposer_RejectedBundleReturnsItemsOnce(t *testing.T) {
	c := newComposer(t, ComposerConfig{
		Strategy:  domain.StrategyGreedy,
		MinProfit: decimal.NewFromInt(100),
	})

	c.Ingest(candidate("a", "5", 3), candidate("b", "4", 3))

	res := c.Compose(context.Background(), now)
	if len(res.Rejected) != 1 {
		t.Fatalf("rejected = %d, want 1", len(res.Rejected))
	}
	b := res.Rejected[0]
	reasons := b.Reasons()
	if len(reasons) != 1 || reasons[0].Code != apperror.CodeProfitFloorNotMet {
		t.Errorf("reasons = %v, want PROFIT_FLOOR_NOT_MET", reasons)
	}
	for _, o := range b.Items() {
		if o.Status() != oppdomain.StatusQueued {
			t.Errorf("%s status = %s, want queued", o.ID, o.Status())
		}
	}
	if c.PoolSize() != 2 {
		t.Errorf("PoolSize() = %d, want 2", c.PoolSize())
	}

	again := c.Compose(context.Background(), now)
	if len(again.Rejected)+len(again.Validated) != 0 {
		t.Error("an unchanged pool should not be rejected twice")
	}
}

func TestComposer_IngestRefusesTerminal(t *testing.T) {
	c := newComposer(t, ComposerConfig{})

	done := candidate("done", "5", 3)
	_ = done.Expire()

	if refused := c.Ingest(done); len(refused) != 1 {
		t.Errorf("refused = %v, want [done]", ids(refused))
	}
}

func TestComposer_PositionBundledOnce(t *testing.T) {
	c := newComposer(t, ComposerConfig{Strategy: domain.StrategyGreedy, MaxBundlesPerCycle: 4})

	l1 := liquidation("l1", "pos-1", "50", now)
	l2 := liquidation("l2", "pos-1", "49", now.Add(time.Second))

	dropped := c.Ingest(l1, l2)
	if len(dropped) != 1 || dropped[0].ID != "l1" {
		t.Fatalf("dropped = %v, want [l1]", ids(dropped))
	}
	if reason, _ := l1.Reason(); l1.Status() != oppdomain.StatusRejected || reason.Code != apperror.CodeExclusiveResource {
		t.Errorf("l1 = %s/%s, want rejected/EXCLUSIVE_RESOURCE", l1.Status(), reason.Code)
	}

	// an older snapshot never displaces the current holder
	stale := liquidation("stale", "pos-1", "60", now.Add(-time.Second))
	if dropped := c.Ingest(stale); len(dropped) != 1 || dropped[0].ID != "stale" {
		t.Fatalf("dropped = %v, want [stale]", ids(dropped))
	}

	res := c.Compose(context.Background(), now.Add(time.Second))
	if len(res.Validated) != 1 {
		t.Fatalf("validated %d bundles, want 1", len(res.Validated))
	}
	if got := ids(res.Validated[0].Items()); len(got) != 1 || got[0] != "l2" {
		t.Errorf("bundle = %v, want [l2]", got)
	}

	// the position stays retired until l2 expires
	again := liquidation("l3", "pos-1", "55", now.Add(2*time.Second))
	if dropped := c.Ingest(again); len(dropped) != 1 || dropped[0].ID != "l3" {
		t.Fatalf("dropped = %v, want [l3]", ids(dropped))
	}
	if res := c.Compose(context.Background(), now.Add(2*time.Second)); len(res.Validated) != 0 {
		t.Errorf("validated %d bundles after retirement, want 0", len(res.Validated))
	}

	later := liquidation("l4", "pos-1", "55", now.Add(40*time.Second))
	if dropped := c.Ingest(later); len(dropped) != 0 {
		t.Fatalf("dropped = %v, want none after l2 expired", ids(dropped))
	}
	if c.PoolSize() != 1 {
		t.Errorf("PoolSize() = %d, want 1", c.PoolSize())
	}
}

func TestComposer_DependencyCycleRejectedThenSplit(t *testing.T) {
	c := newComposer(t, ComposerConfig{Strategy: domain.StrategyGreedy, MaxBundlesPerCycle: 1})

	l1 := liquidation("l1", "pos-1", "5", now)
	l1.Signals.CollateralAsset = "SOL"
	// a1 trades SOL so it must precede l1, yet it requires l1
	a1 := candidate("a1", "6", 3)
	a1.Instruments = []string{"SOL/USDC"}
	a1.Requires = []string{"l1"}

	c.Ingest(a1, l1)

	first := c.Compose(context.Background(), now)
	if len(first.Rejected) != 1 {
		t.Fatalf("rejected = %d, want 1", len(first.Rejected))
	}
	cyclic := first.Rejected[0]
	if sortedIDs(cyclic.Items()) != "a1,l1" {
		t.Errorf("rejected set = %v, want [a1 l1]", ids(cyclic.Items()))
	}
	found := false
	for _, r := range cyclic.Reasons() {
		found = found || r.Code == apperror.CodeDependencyCycle
	}
	if !found {
		t.Errorf("reasons = %v, want DEPENDENCY_CYCLE", cyclic.Reasons())
	}
	if len(first.Validated) != 1 || first.Validated[0].Items()[0].ID != "a1" {
		t.Fatalf("first cycle validated %d bundles, want [a1]", len(first.Validated))
	}

	second := c.Compose(context.Background(), now)
	if len(second.Rejected) != 0 {
		t.Errorf("rejected = %d, want 0", len(second.Rejected))
	}
	if len(second.Validated) != 1 || second.Validated[0].Items()[0].ID != "l1" {
		t.Errorf("second cycle validated %d bundles, want [l1]", len(second.Validated))
	}
}
