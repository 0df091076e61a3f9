package app

import (
	"fmt"
	"math"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// Strategy scores candidates for the shared selection loop. Score ranks a
// candidate against the current selection for greedy steps; Objective rates a
// whole selection for exhaustive search and for deciding whether a greedy
// step still improves the bundle.
type Strategy interface {
	Name() domain.Strategy
	Score(candidate *oppdomain.Opportunity, selection []*oppdomain.Opportunity) float64
	Objective(selection []*oppdomain.Opportunity) float64
}

// NewStrategy returns the named strategy.
func NewStrategy(name domain.Strategy, synergyBonus float64) (Strategy, error) {
	switch name {
	case domain.StrategyGreedy:
		return Greedy{}, nil
	case domain.StrategyBalanced, "":
		return Balanced{}, nil
	case domain.StrategyRiskAverse:
		return RiskAverse{}, nil
	case domain.StrategyDiversified:
		return Diversified{}, nil
	case domain.StrategySynergistic:
		return Synergistic{Bonus: synergyBonus}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

func net(o *oppdomain.Opportunity) float64 {
	f, _ := o.NetProfit().Float64()
	return f
}

func netSum(items []*oppdomain.Opportunity) float64 {
	f, _ := domain.NetSum(items).Float64()
	return f
}

func with(selection []*oppdomain.Opportunity, candidate *oppdomain.Opportunity) []*oppdomain.Opportunity {
	return append(append([]*oppdomain.Opportunity(nil), selection...), candidate)
}

// Greedy takes the most profitable item first.
type Greedy struct{}

func (Greedy) Name() domain.Strategy { return domain.StrategyGreedy }

func (Greedy) Score(candidate *oppdomain.Opportunity, _ []*oppdomain.Opportunity) float64 {
	return net(candidate)
}

func (Greedy) Objective(selection []*oppdomain.Opportunity) float64 {
	return netSum(selection)
}

// Balanced trades profit against aggregate risk: Σnet / (1 + aggregateRisk).
type Balanced struct{}

func (Balanced) Name() domain.Strategy { return domain.StrategyBalanced }

func (b Balanced) Score(candidate *oppdomain.Opportunity, selection []*oppdomain.Opportunity) float64 {
	return b.Objective(with(selection, candidate)) - b.Objective(selection)
}

func (Balanced) Objective(selection []*oppdomain.Opportunity) float64 {
	if len(selection) == 0 {
		return 0
	}
	return netSum(selection) / (1 + domain.AggregateRisk(selection))
}

// RiskAverse minimizes aggregate risk; the profit floor is enforced by the
// selection loop.
type RiskAverse struct{}

func (RiskAverse) Name() domain.Strategy { return domain.StrategyRiskAverse }

func (RiskAverse) Score(candidate *oppdomain.Opportunity, _ []*oppdomain.Opportunity) float64 {
	return oppdomain.MaxRisk - candidate.RiskScore()
}

func (RiskAverse) Objective(selection []*oppdomain.Opportunity) float64 {
	if len(selection) == 0 {
		return -oppdomain.MaxRisk
	}
	return -domain.AggregateRisk(selection)
}

// Diversified maximizes distinct kind/venue combinations, with profit as a
// tiebreak that never outweighs one extra combination.
type Diversified struct{}

func (Diversified) Name() domain.Strategy { return domain.StrategyDiversified }

func (d Diversified) Score(candidate *oppdomain.Opportunity, selection []*oppdomain.Opportunity) float64 {
	return d.Objective(with(selection, candidate)) - d.Objective(selection)
}

func (Diversified) Objective(selection []*oppdomain.Opportunity) float64 {
	combos := make(map[string]bool)
	for _, o := range selection {
		for _, v := range o.Venues {
			combos[string(o.Kind)+"|"+v] = true
		}
	}
	return float64(len(combos)) + tiebreak(netSum(selection))
}

// tiebreak maps profit monotonically into (-0.5, 0.5).
func tiebreak(v float64) float64 {
	return 0.5 * v / (1 + math.Abs(v))
}

// Synergistic adds Bonus × net per venue or instrument a candidate shares
// with the rest of the selection. The bonus only steers selection; bundle
// profit is unaffected.
type Synergistic struct {
	Bonus float64
}

func (Synergistic) Name() domain.Strategy { return domain.StrategySynergistic }

func (s Synergistic) Score(candidate *oppdomain.Opportunity, selection []*oppdomain.Opportunity) float64 {
	n := net(candidate)
	return n + s.Bonus*n*float64(shared(candidate, selection))
}

func (s Synergistic) Objective(selection []*oppdomain.Opportunity) float64 {
	total := 0.0
	for i, o := range selection {
		others := make([]*oppdomain.Opportunity, 0, len(selection)-1)
		others = append(others, selection[:i]...)
		others = append(others, selection[i+1:]...)
		total += s.Score(o, others)
	}
	return total
}

// shared counts the venues and instruments of candidate that appear in
// selection.
func shared(candidate *oppdomain.Opportunity, selection []*oppdomain.Opportunity) int {
	venues := make(map[string]bool)
	instruments := make(map[string]bool)
	for _, o := range selection {
		for _, v := range o.Venues {
			venues[v] = true
		}
		for _, i := range o.Instruments {
			instruments[i] = true
		}
	}

	n := 0
	for _, v := range candidate.Venues {
		if venues[v] {
			n++
		}
	}
	for _, i := range candidate.Instruments {
		if instruments[i] {
			n++
		}
	}
	return n
}
