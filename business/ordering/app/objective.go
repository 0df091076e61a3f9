package app

import (
	"github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// objective scores an execution order: Σ net − penalty. The penalty charges
// ViolationPenalty per position of dependency-violation distance and
// DriftRate per position of price-exposed gross, so exposed items are pulled
// to the front.
type objective struct {
	graph            *domain.Graph
	net              []float64
	exposure         []float64
	netTotal         float64
	violationPenalty float64
	driftRate        float64
}

func newObjective(items []*oppdomain.Opportunity, g *domain.Graph, cfg Config) *objective {
	o := &objective{
		graph:            g,
		net:              make([]float64, len(items)),
		exposure:         make([]float64, len(items)),
		violationPenalty: cfg.ViolationPenalty,
		driftRate:        cfg.DriftRate,
	}
	for i, it := range items {
		o.net[i], _ = it.NetProfit().Float64()
		gross, _ := it.GrossProfit().Float64()
		o.exposure[i] = gross * it.Kind.Exposure()
		o.netTotal += o.net[i]
	}
	return o
}

func (o *objective) value(order []int) float64 {
	drift := 0.0
	for pos, i := range order {
		drift += float64(pos) * o.exposure[i]
	}
	return o.netTotal -
		o.violationPenalty*float64(o.graph.ViolationDistance(order)) -
		o.driftRate*drift
}

// byProfit orders item indices by net profit, highest first, then index.
func (o *objective) byProfit(a, b int) bool {
	if o.net[a] != o.net[b] {
		return o.net[a] > o.net[b]
	}
	return a < b
}
