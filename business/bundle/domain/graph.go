package domain

import (
	"fmt"
	"sort"
	"strings"

	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

// Graph holds precedence edges between item positions. An edge u->v means
// item u must execute before item v.
type Graph struct {
	n    int
	succ [][]int
	pred [][]int
	has  map[[2]int]bool
}

// NewGraph creates an edgeless graph over n items.
func NewGraph(n int) *Graph {
	return &Graph{
		n:    n,
		succ: make([][]int, n),
		pred: make([][]int, n),
		has:  make(map[[2]int]bool),
	}
}

// Dependencies builds the precedence graph of items: explicit Requires edges
// between items of the same bundle, plus an edge from every arbitrage that
// trades a liquidation's collateral asset to that liquidation.
func Dependencies(items []*oppdomain.Opportunity) *Graph {
	g := NewGraph(len(items))

	index := make(map[string]int, len(items))
	for i, o := range items {
		index[o.ID] = i
	}

	for v, o := range items {
		for _, id := range o.Requires {
			if u, ok := index[id]; ok {
				g.AddEdge(u, v)
			}
		}
	}

	for v, liq := range items {
		if liq.Kind != oppdomain.KindLiquidation || liq.Signals.CollateralAsset == "" {
			continue
		}
		for u, arb := range items {
			if arb.Kind == oppdomain.KindArbitrage && tradesAsset(arb, liq.Signals.CollateralAsset) {
				g.AddEdge(u, v)
			}
		}
	}
	return g
}

func tradesAsset(o *oppdomain.Opportunity, symbol string) bool {
	for _, instr := range o.Instruments {
		if marketdomain.Pair(strings.ToUpper(instr)).Contains(symbol) {
			return true
		}
	}
	return false
}

// AddEdge adds u->v. Self loops and duplicates are ignored.
func (g *Graph) AddEdge(u, v int) {
	if u == v || g.has[[2]int{u, v}] {
		return
	}
	g.has[[2]int{u, v}] = true
	g.succ[u] = append(g.succ[u], v)
	g.pred[v] = append(g.pred[v], u)
}

func (g *Graph) Len() int { return g.n }

// Edges returns every edge in insertion order per source.
func (g *Graph) Edges() [][2]int {
	var out [][2]int
	for u, vs := range g.succ {
		for _, v := range vs {
			out = append(out, [2]int{u, v})
		}
	}
	return out
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.has) }

// HasCycle reports whether the graph has a directed cycle.
func (g *Graph) HasCycle() bool {
	_, err := g.TopoSort(nil)
	return err != nil
}

// FindCycle returns the items of one directed cycle in ascending order, or
// nil when the graph is acyclic.
func (g *Graph) FindCycle() []int {
	const (
		unseen = iota
		open
		done
	)
	state := make([]int, g.n)
	parent := make([]int, g.n)

	var cycle []int
	var visit func(u int) bool
	visit = func(u int) bool {
		state[u] = open
		for _, v := range g.succ[u] {
			switch state[v] {
			case open:
				for w := u; w != v; w = parent[w] {
					cycle = append(cycle, w)
				}
				cycle = append(cycle, v)
				return true
			case unseen:
				parent[v] = u
				if visit(v) {
					return true
				}
			}
		}
		state[u] = done
		return false
	}

	for u := 0; u < g.n; u++ {
		if state[u] == unseen && visit(u) {
			sort.Ints(cycle)
			return cycle
		}
	}
	return nil
}

// TopoSort returns a topological order using Kahn's algorithm. Among ready
// items the one that sorts first under less is taken; nil less takes the
// lowest index. A cycle fails with DEPENDENCY_CYCLE.
func (g *Graph) TopoSort(less func(a, b int) bool) ([]int, error) {
	if less == nil {
		less = func(a, b int) bool { return a < b }
	}

	indeg := make([]int, g.n)
	for v := range g.pred {
		indeg[v] = len(g.pred[v])
	}

	var ready []int
	for v := 0; v < g.n; v++ {
		if indeg[v] == 0 {
			ready = append(ready, v)
		}
	}

	order := make([]int, 0, g.n)
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)

		for _, v := range g.succ[u] {
			indeg[v]--
			if indeg[v] == 0 {
				ready = append(ready, v)
			}
		}
	}

	if len(order) != g.n {
		return nil, apperror.New(apperror.CodeDependencyCycle,
			apperror.WithContext(fmt.Sprintf("%d of %d items are on a cycle", g.n-len(order), g.n)))
	}
	return order, nil
}

// Closure returns reach[u][v], true when v is reachable from u.
func (g *Graph) Closure() [][]bool {
	reach := make([][]bool, g.n)
	for u := 0; u < g.n; u++ {
		reach[u] = make([]bool, g.n)
		stack := append([]int(nil), g.succ[u]...)
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reach[u][v] {
				continue
			}
			reach[u][v] = true
			stack = append(stack, g.succ[v]...)
		}
	}
	return reach
}

// Dense reports whether the average comparability degree over the transitive
// closure exceeds n/2, i.e. the dependencies already fix most of the order.
func (g *Graph) Dense() bool {
	if g.n < 2 {
		return false
	}
	reach := g.Closure()
	total := 0
	for u := 0; u < g.n; u++ {
		for v := 0; v < g.n; v++ {
			if u != v && (reach[u][v] || reach[v][u]) {
				total++
			}
		}
	}
	return float64(total)/float64(g.n) > float64(g.n)/2
}

// Satisfied reports whether order respects every edge.
func (g *Graph) Satisfied(order []int) bool {
	return g.ViolationDistance(order) == 0
}

// ViolationDistance sums, over violated edges u->v, how far v sits before u.
func (g *Graph) ViolationDistance(order []int) int {
	pos := make([]int, g.n)
	for p, i := range order {
		pos[i] = p
	}
	dist := 0
	for u, vs := range g.succ {
		for _, v := range vs {
			if pos[u] > pos[v] {
				dist += pos[u] - pos[v]
			}
		}
	}
	return dist
}

// Repair reorders order into a valid topological order, keeping the relative
// order of the input wherever the edges allow it.
func (g *Graph) Repair(order []int) ([]int, error) {
	rank := make([]int, g.n)
	for p, i := range order {
		rank[i] = p
	}
	return g.TopoSort(func(a, b int) bool { return rank[a] < rank[b] })
}
