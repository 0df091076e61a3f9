package app

import (
	"math"
	"math/bits"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

const (
	objectiveEpsilon = 1e-12

	// maxExhaustivePool caps subset enumeration regardless of configuration.
	maxExhaustivePool = 20
)

// selectItems picks a subset of pool under the constraints. Pools up to
// exhaustiveLimit are searched exhaustively; larger pools, and the Greedy
// strategy, use the greedy loop. An exhaustive search that finds no feasible
// subset falls back to the greedy loop so the caller can report why.
func selectItems(pool []*oppdomain.Opportunity, s Strategy, c Constraints, exhaustiveLimit int) []*oppdomain.Opportunity {
	if exhaustiveLimit > maxExhaustivePool {
		exhaustiveLimit = maxExhaustivePool
	}
	if _, greedy := s.(Greedy); !greedy && len(pool) <= exhaustiveLimit {
		if sel := exhaustive(pool, s, c); len(sel) > 0 {
			return sel
		}
	}
	return greedySelect(pool, s, c)
}

// exhaustive returns the feasible subset with the best objective, breaking
// ties by higher net profit and then by enumeration order.
func exhaustive(pool []*oppdomain.Opportunity, s Strategy, c Constraints) []*oppdomain.Opportunity {
	n := len(pool)
	var (
		best    []*oppdomain.Opportunity
		bestObj = math.Inf(-1)
		bestNet = math.Inf(-1)
	)

	for mask := uint32(1); mask < 1<<n; mask++ {
		if bits.OnesCount32(mask) > c.MaxSize {
			continue
		}
		sel := make([]*oppdomain.Opportunity, 0, bits.OnesCount32(mask))
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				sel = append(sel, pool[i])
			}
		}
		if !c.feasible(sel) {
			continue
		}

		obj, total := s.Objective(sel), netSum(sel)
		if obj > bestObj+objectiveEpsilon || (math.Abs(obj-bestObj) <= objectiveEpsilon && total > bestNet) {
			best, bestObj, bestNet = sel, obj, total
		}
	}
	return best
}

// greedySelect adds the best-scored admissible candidate until the bundle is
// full, nothing is admissible, or, once the profit floor is met, the next
// pick no longer improves the objective.
func greedySelect(pool []*oppdomain.Opportunity, s Strategy, c Constraints) []*oppdomain.Opportunity {
	remaining := append([]*oppdomain.Opportunity(nil), pool...)
	var sel []*oppdomain.Opportunity

	for len(sel) < c.MaxSize {
		best, bestScore := -1, math.Inf(-1)
		for i, cand := range remaining {
			if !c.admits(cand, sel) {
				continue
			}
			if sc := s.Score(cand, sel); sc > bestScore {
				best, bestScore = i, sc
			}
		}
		if best < 0 {
			break
		}

		cand := remaining[best]
		// standalone NetSum stands in for the bundled AggregateProfit checked at
		// validation; see feasible
		if len(sel) > 0 && c.MeetsFloor(domain.NetSum(sel)) && s.Objective(with(sel, cand)) <= s.Objective(sel) {
			break
		}
		sel = append(sel, cand)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return sel
}
