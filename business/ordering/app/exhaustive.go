package app

// exhaustive enumerates every topologically valid permutation and returns
// the best. Items are placed only once all their predecessors are, so
// invalid orders are never built. Ties keep the first order found.
func exhaustive(obj *objective) []int {
	n := obj.graph.Len()
	pending := make([]int, n)
	for _, e := range obj.graph.Edges() {
		pending[e[1]]++
	}

	var (
		best    []int
		bestVal float64
		recurse func()
	)
	prefix := make([]int, 0, n)
	placed := make([]bool, n)
	succ := successors(obj)
	recurse = func() {
		if len(prefix) == n {
			if v := obj.value(prefix); best == nil || v > bestVal {
				best, bestVal = append([]int(nil), prefix...), v
			}
			return
		}
		for i := 0; i < n; i++ {
			if placed[i] || pending[i] > 0 {
				continue
			}
			placed[i] = true
			prefix = append(prefix, i)
			for _, v := range succ[i] {
				pending[v]--
			}

			recurse()

			for _, v := range succ[i] {
				pending[v]++
			}
			prefix = prefix[:len(prefix)-1]
			placed[i] = false
		}
	}
	recurse()
	return best
}

func successors(obj *objective) [][]int {
	succ := make([][]int, obj.graph.Len())
	for _, e := range obj.graph.Edges() {
		succ[e[0]] = append(succ[e[0]], e[1])
	}
	return succ
}

// factorial returns n!, or the first partial product above limit.
func factorial(n, limit int) int {
	f := 1
	for i := 2; i <= n; i++ {
		f *= i
		if f > limit {
			return f
		}
	}
	return f
}
