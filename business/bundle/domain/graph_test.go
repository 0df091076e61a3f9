package domain

import (
	"testing"

	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

func chain(n int) *Graph {
	g := NewGraph(n)
	for i := 0; i+1 < n; i++ {
		g.AddEdge(i, i+1)
	}
	return g
}

func TestGraph_TopoSort(t *testing.T) {
	g := NewGraph(4)
	g.AddEdge(2, 0)
	g.AddEdge(3, 1)

	order, err := g.TopoSort(nil)
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	if !g.Satisfied(order) {
		t.Errorf("order %v violates edges", order)
	}
	want := []int{2, 0, 3, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestGraph_Cycle(t *testing.T) {
	g := chain(3)
	g.AddEdge(2, 0)

	if !g.HasCycle() {
		t.Fatal("expected cycle")
	}
	if _, err := g.TopoSort(nil); !apperror.HasCode(err, apperror.CodeDependencyCycle) {
		t.Errorf("err = %v, want DEPENDENCY_CYCLE", err)
	}
}

func TestGraph_FindCycle(t *testing.T) {
	if got := chain(3).FindCycle(); got != nil {
		t.Errorf("chain FindCycle() = %v, want nil", got)
	}

	g := NewGraph(4)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)
	g.AddEdge(3, 0)

	got := g.FindCycle()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("FindCycle() = %v, want [1 2]", got)
	}
}

func TestGraph_Dense(t *testing.T) {
	tests := []struct {
		name string
		g    *Graph
		want bool
	}{
		{name: "chain", g: chain(6), want: true},
		{name: "empty", g: NewGraph(6), want: false},
		{name: "single_edge", g: func() *Graph { g := NewGraph(6); g.AddEdge(0, 1); return g }(), want: false},
		{name: "one_item", g: NewGraph(1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Dense(); got != tt.want {
				t.Errorf("Dense() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGraph_ViolationDistanceAndRepair(t *testing.T) {
	g := chain(3)

	if d := g.ViolationDistance([]int{2, 1, 0}); d != 2 {
		t.Errorf("ViolationDistance = %d, want 2", d)
	}

	fixed, err := g.Repair([]int{2, 1, 0})
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if !g.Satisfied(fixed) {
		t.Errorf("repaired order %v still violates edges", fixed)
	}
}

func TestDependencies(t *testing.T) {
	arb := opp("arb", oppdomain.KindArbitrage, "5", "1", 3)
	liq := opp("liq", oppdomain.KindLiquidation, "8", "1", 4)
	liq.Signals.CollateralAsset = "sol"
	other := opp("other", oppdomain.KindArbitrage, "2", "1", 3)
	other.Instruments = []string{"BONK/USDC"}
	other.Requires = []string{"arb", "missing"}

	g := Dependencies([]*oppdomain.Opportunity{liq, arb, other})

	want := map[[2]int]bool{
		{1, 0}: true, // arb trades SOL, so it runs before the SOL liquidation
		{1, 2}: true, // explicit requirement
	}
	edges := g.Edges()
	if len(edges) != len(want) {
		t.Fatalf("edges = %v, want %v", edges, want)
	}
	for _, e := range edges {
		if !want[e] {
			t.Errorf("unexpected edge %v", e)
		}
	}
}
