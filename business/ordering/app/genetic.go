package app

import (
	"context"
	"math/rand/v2"
	"sort"
)

const (
	tournamentSize = 3
	eliteCount     = 2
)

type individual struct {
	order   []int
	fitness float64
}

// genetic evolves execution orders with order crossover, swap mutation and
// elitism. Every child is repaired into a valid topological order before it
// is scored. It returns the best order seen when ctx ends early and reports
// whether that happened.
func genetic(ctx context.Context, obj *objective, seed []int, cfg Config, rng *rand.Rand) ([]int, bool) {
	n := obj.graph.Len()
	size := max(cfg.Population, eliteCount+1)

	pop := make([]individual, 0, size)
	pop = append(pop, individual{order: seed, fitness: obj.value(seed)})
	for len(pop) < size {
		order := repair(obj, rng.Perm(n))
		pop = append(pop, individual{order: order, fitness: obj.value(order)})
	}
	rank(pop)
	best := pop[0]

	for gen := 0; gen < cfg.Generations; gen++ {
		if ctx.Err() != nil {
			return best.order, true
		}

		next := make([]individual, 0, size)
		next = append(next, pop[:eliteCount]...)
		for len(next) < size {
			a, b := tournament(pop, rng), tournament(pop, rng)
			child := crossover(a.order, b.order, rng)
			if rng.Float64() < cfg.MutationRate {
				i, j := rng.IntN(n), rng.IntN(n)
				child[i], child[j] = child[j], child[i]
			}
			child = repair(obj, child)
			next = append(next, individual{order: child, fitness: obj.value(child)})
		}

		pop = next
		rank(pop)
		if pop[0].fitness > best.fitness {
			best = pop[0]
		}
	}
	return best.order, false
}

func rank(pop []individual) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].fitness > pop[j].fitness })
}

func tournament(pop []individual, rng *rand.Rand) individual {
	best := pop[rng.IntN(len(pop))]
	for k := 1; k < tournamentSize; k++ {
		if c := pop[rng.IntN(len(pop))]; c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

// crossover is OX: a slice of p1 is kept in place and the remaining genes
// follow in p2's order.
func crossover(p1, p2 []int, rng *rand.Rand) []int {
	n := len(p1)
	i, j := rng.IntN(n), rng.IntN(n)
	if i > j {
		i, j = j, i
	}

	child := make([]int, n)
	taken := make([]bool, n)
	for k := i; k <= j; k++ {
		child[k] = p1[k]
		taken[p1[k]] = true
	}

	pos := (j + 1) % n
	for k := 0; k < n; k++ {
		g := p2[(j+1+k)%n]
		if taken[g] {
			continue
		}
		child[pos] = g
		taken[g] = true
		pos = (pos + 1) % n
	}
	return child
}

// repair returns order itself when it is already valid. The graph is acyclic
// by the time the optimizer searches, so Repair cannot fail.
func repair(obj *objective, order []int) []int {
	if obj.graph.Satisfied(order) {
		return order
	}
	fixed, err := obj.graph.Repair(order)
	if err != nil {
		return order
	}
	return fixed
}
