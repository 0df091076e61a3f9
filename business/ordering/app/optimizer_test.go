package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/logger"
)

var now = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func item(id, gross string, requires ...string) *oppdomain.Opportunity {
	o := oppdomain.New(id, oppdomain.KindArbitrage, []string{"orca", "raydium"},
		[]string{id + "/USDC"}, decimal.RequireFromString(gross), now, 3*time.Second)
	o.Requires = requires
	o.SetRisk(2, 1)
	return o
}

func validated(t testing.TB, id string, items ...*oppdomain.Opportunity) *domain.Bundle {
	t.Helper()
	b := domain.New(id, domain.StrategyBalanced, items, now)
	if err := b.SetCost(oppdomain.CostEstimate{}); err != nil {
		t.Fatalf("SetCost: %v", err)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return b
}

// spread builds n independent items plus every third item requiring its
// predecessor.
func spread(n int) []*oppdomain.Opportunity {
	items := make([]*oppdomain.Opportunity, n)
	for i := range items {
		id := fmt.Sprintf("o%02d", i)
		var req []string
		if i%3 == 2 {
			req = []string{fmt.Sprintf("o%02d", i-1)}
		}
		items[i] = item(id, fmt.Sprintf("%d", 1+(i*7)%11), req...)
	}
	return items
}

func newOptimizer(t testing.TB, mutate func(*Config)) *Optimizer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = 42
	if mutate != nil {
		mutate(&cfg)
	}
	o, err := NewOptimizer(cfg, logger.NewDiscard())
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	return o
}

func seedValue(items []*oppdomain.Opportunity, cfg Config) float64 {
	g := domain.Dependencies(items)
	obj := newObjective(items, g, cfg)
	seed, _ := g.TopoSort(obj.byProfit)
	return obj.value(seed)
}

func TestOptimizer_Branches(t *testing.T) {
	tests := []struct {
		name  string
		items []*oppdomain.Opportunity
		want  domain.Algorithm
	}{
		{name: "single", items: spread(1), want: domain.AlgorithmTopological},
		{name: "small", items: spread(4), want: domain.AlgorithmExhaustive},
		{name: "medium", items: spread(10), want: domain.AlgorithmGenetic},
		{name: "large", items: spread(20), want: domain.AlgorithmAnnealing},
	}

	o := newOptimizer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validated(t, "b-"+tt.name, tt.items...)
			res, err := o.Order(context.Background(), b)
			if err != nil {
				t.Fatalf("Order: %v", err)
			}
			if res.Algorithm != tt.want {
				t.Errorf("Algorithm = %s, want %s", res.Algorithm, tt.want)
			}
			if !domain.IsPermutation(res.Order, len(tt.items)) {
				t.Fatalf("Order = %v is not a permutation", res.Order)
			}
			if !domain.Dependencies(tt.items).Satisfied(res.Order) {
				t.Errorf("Order = %v breaks a dependency", res.Order)
			}
			if res.Unoptimized {
				t.Error("Unoptimized = true, want false")
			}
			if seed := seedValue(tt.items, o.config); res.Objective < seed {
				t.Errorf("Objective = %v, worse than the topological seed %v", res.Objective, seed)
			}
		})
	}
}

func TestOptimizer_SmallBundleOverPermutationBoundGoesGreedy(t *testing.T) {
	items := spread(5)
	o := newOptimizer(t, func(c *Config) { c.MaxPermutations = 24 })

	res, err := o.Order(context.Background(), validated(t, "greedy", items...))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if res.Algorithm != domain.AlgorithmGreedy {
		t.Errorf("Algorithm = %s, want greedy", res.Algorithm)
	}
	if !domain.Dependencies(items).Satisfied(res.Order) {
		t.Errorf("Order = %v breaks a dependency", res.Order)
	}

	// 5! fits the default bound
	res, err = newOptimizer(t, nil).Order(context.Background(), validated(t, "exhaustive", items...))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if res.Algorithm != domain.AlgorithmExhaustive {
		t.Errorf("Algorithm = %s, want exhaustive", res.Algorithm)
	}
}

func TestOptimizer_DenseChainUsesGraph(t *testing.T) {
	items := []*oppdomain.Opportunity{
		item("a", "1"),
		item("b", "9", "a"),
		item("c", "2", "b"),
		item("d", "8", "c"),
		item("e", "3", "d"),
		item("f", "7", "e"),
	}
	// shuffle input positions so the chain is not already in index order
	items[0], items[5] = items[5], items[0]

	res, err := newOptimizer(t, nil).Order(context.Background(), validated(t, "chain", items...))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if res.Algorithm != domain.AlgorithmGraph {
		t.Errorf("Algorithm = %s, want graph", res.Algorithm)
	}

	got := make([]string, len(res.Order))
	for i, idx := range res.Order {
		got[i] = items[idx].ID
	}
	want := []string{"a", "b", "c", "d", "e", "f"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestOptimizer_ExhaustiveFrontLoadsExposure(t *testing.T) {
	items := []*oppdomain.Opportunity{
		item("a", "1"),
		item("b", "5"),
		item("c", "3"),
		item("d", "2", "a"),
	}
	res, err := newOptimizer(t, nil).Order(context.Background(), validated(t, "ex", items...))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}

	// b and c carry the most gross; d must still follow a
	want := []int{1, 2, 0, 3}
	for i := range want {
		if res.Order[i] != want[i] {
			t.Fatalf("Order = %v, want %v", res.Order, want)
		}
	}
}

func TestOptimizer_Cycle(t *testing.T) {
	b := validated(t, "cyc", item("a", "1", "b"), item("b", "1", "a"))
	_, err := newOptimizer(t, nil).Order(context.Background(), b)
	if !apperror.HasCode(err, apperror.CodeDependencyCycle) {
		t.Fatalf("err = %v, want DEPENDENCY_CYCLE", err)
	}
}

func TestOptimizer_CancelledReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := spread(12)
	res, err := newOptimizer(t, nil).Order(ctx, validated(t, "late", items...))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if !domain.Dependencies(items).Satisfied(res.Order) {
		t.Errorf("Order = %v breaks a dependency", res.Order)
	}
}

func TestOptimizer_Deterministic(t *testing.T) {
	o := newOptimizer(t, nil)
	first, err := o.Order(context.Background(), validated(t, "same", spread(9)...))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	second, err := o.Order(context.Background(), validated(t, "same", spread(9)...))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	for i := range first.Order {
		if first.Order[i] != second.Order[i] {
			t.Fatalf("orders differ: %v vs %v", first.Order, second.Order)
		}
	}
}

func TestOptimizer_Freeze(t *testing.T) {
	o := newOptimizer(t, func(c *Config) { c.Concurrency = 2 })
	if o.Concurrency() != 2 {
		t.Errorf("Concurrency() = %d, want 2", o.Concurrency())
	}

	b := validated(t, "frz", spread(6)...)
	if err := o.Freeze(context.Background(), b); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if !b.Frozen() || b.Algorithm() != domain.AlgorithmGenetic {
		t.Errorf("Frozen() = %v, Algorithm() = %s", b.Frozen(), b.Algorithm())
	}
	if len(b.Ordered()) != 6 {
		t.Errorf("Ordered() has %d items, want 6", len(b.Ordered()))
	}

	if err := o.Freeze(context.Background(), b); !apperror.HasCode(err, apperror.CodeBundleFrozen) {
		t.Errorf("second Freeze err = %v, want BUNDLE_FROZEN", err)
	}

	draft := domain.New("draft", domain.StrategyBalanced, spread(2), now)
	if err := o.Freeze(context.Background(), draft); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Errorf("Freeze on draft err = %v, want INVALID_STATE", err)
	}
}

func TestCrossoverAndNeighborKeepPermutations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		p1, p2 := rng.Perm(8), rng.Perm(8)
		if c := crossover(p1, p2, rng); !domain.IsPermutation(c, 8) {
			t.Fatalf("crossover(%v, %v) = %v", p1, p2, c)
		}
		if nb := neighbor(p1, rng); !domain.IsPermutation(nb, 8) {
			t.Fatalf("neighbor(%v) = %v", p1, nb)
		}
	}
}

func benchmarkOrder(b *testing.B, n int) {
	o := newOptimizer(b, nil)
	items := spread(n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bundle := domain.New("bench", domain.StrategyBalanced, items, now)
		_ = bundle.Validate()
		if _, err := o.Order(context.Background(), bundle); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOrder_Exhaustive5(b *testing.B) { benchmarkOrder(b, 5) }
func BenchmarkOrder_Genetic12(b *testing.B)   { benchmarkOrder(b, 12) }
func BenchmarkOrder_Annealing24(b *testing.B) { benchmarkOrder(b, 24) }
