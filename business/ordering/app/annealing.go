package app

import (
	"context"
	"math"
	"math/rand/v2"
)

// anneal runs simulated annealing from seed. Moves are adjacent swaps or
// block moves; a move that breaks a dependency is discarded. Worse orders are
// accepted with probability exp(-Δ/T) under geometric cooling.
func anneal(ctx context.Context, obj *objective, seed []int, cfg Config, rng *rand.Rand) ([]int, bool) {
	n := obj.graph.Len()
	current := append([]int(nil), seed...)
	curVal := obj.value(current)
	best, bestVal := append([]int(nil), current...), curVal

	for temp := cfg.InitialTemp; temp > cfg.MinTemp; temp *= cfg.CoolingRate {
		if ctx.Err() != nil {
			return best, true
		}

		for step := 0; step < n; step++ {
			cand := neighbor(current, rng)
			if !obj.graph.Satisfied(cand) {
				continue
			}
			val := obj.value(cand)
			delta := curVal - val
			if delta <= 0 || rng.Float64() < math.Exp(-delta/temp) {
				current, curVal = cand, val
				if curVal > bestVal {
					best, bestVal = append([]int(nil), current...), curVal
				}
			}
		}
	}
	return best, false
}

func neighbor(order []int, rng *rand.Rand) []int {
	n := len(order)
	out := append([]int(nil), order...)
	if n < 2 {
		return out
	}

	if rng.IntN(2) == 0 {
		i := rng.IntN(n - 1)
		out[i], out[i+1] = out[i+1], out[i]
		return out
	}

	// block move: lift out[i:i+l] and reinsert it at k
	l := 1 + rng.IntN(max(1, n/4))
	i := rng.IntN(n - l + 1)
	block := append([]int(nil), out[i:i+l]...)
	rest := append(out[:i:i], out[i+l:]...)
	k := rng.IntN(len(rest) + 1)

	moved := make([]int, 0, n)
	moved = append(moved, rest[:k]...)
	moved = append(moved, block...)
	moved = append(moved, rest[k:]...)
	return moved
}
