package solver

import "sort"

// Clarke-Wright savings construction (sequential variant).

type saving struct {
	score float64
	i, j  int
}

// ClarkeWright builds an initial feasible solution. Starts from one singleton
// route per customer and merges pairs in descending savings order when both
// customers sit at route endpoints and the combined load fits the capacity.
// Deterministic for a given instance and matrix.
//
// If more routes survive than vehicles, the highest-demand routes are kept
// and the rest dropped, leaving their customers unserved. That pruning is
// deliberate compatibility with the reference behavior, not an error path.
func ClarkeWright(in *Instance, m Matrix) Solution {
	n := len(in.Customers)
	nodes := in.AllNodes()

	routes := make(Solution, n)
	// routeOf[c] is the slot currently owning customer c; endpoint bookkeeping
	// is array-indexed to keep merges O(1) lookups.
	routeOf := make([]int, n+1)
	type ends struct{ first, last int }
	routeEnds := make([]ends, n)
	for c := 1; c <= n; c++ {
		routes[c-1] = Route{0, c, 0}
		routeOf[c] = c - 1
		routeEnds[c-1] = ends{c, c}
	}
	loads := make([]int, n)
	for ri := range routes {
		loads[ri] = nodes[ri+1].Demand
	}

	savings := make([]saving, 0, n*(n-1)/2)
	for i := 1; i <= n; i++ {
		for j := i + 1; j <= n; j++ {
			savings = append(savings, saving{m[0][i] + m[0][j] - m[i][j], i, j})
		}
	}
	// Stable keeps encounter order on ties, which keeps construction
	// bit-reproducible across runs.
	sort.SliceStable(savings, func(a, b int) bool { return savings[a].score > savings[b].score })

	dead := make([]bool, n)
	for _, sv := range savings {
		ri, rj := routeOf[sv.i], routeOf[sv.j]
		if ri == rj || dead[ri] || dead[rj] {
			continue
		}
		ei, ej := routeEnds[ri], routeEnds[rj]
		if sv.i != ei.first && sv.i != ei.last {
			continue
		}
		if sv.j != ej.first && sv.j != ej.last {
			continue
		}
		if loads[ri]+loads[rj] > in.Capacity {
			continue
		}

		a, b := routes[ri], routes[rj]
		// Orient so i is the tail of a and j the head of b, then join on the
		// shared depot.
		if ei.first == sv.i {
			reverse(a)
		}
		if ej.last == sv.j {
			reverse(b)
		}
		merged := make(Route, 0, len(a)+len(b)-2)
		merged = append(merged, a[:len(a)-1]...)
		merged = append(merged, b[1:]...)

		routes[ri] = merged
		routes[rj] = nil
		dead[rj] = true
		loads[ri] += loads[rj]
		routeEnds[ri] = ends{merged[1], merged[len(merged)-2]}
		for _, c := range merged {
			if c != 0 {
				routeOf[c] = ri
			}
		}
	}

	alive := make(Solution, 0, n)
	for ri, r := range routes {
		if !dead[ri] && len(r) > 2 {
			alive = append(alive, r)
		}
	}
	if len(alive) > in.Vehicles {
		sort.SliceStable(alive, func(a, b int) bool {
			return alive[a].Demand(nodes) > alive[b].Demand(nodes)
		})
		alive = alive[:in.Vehicles]
	}
	return alive
}

func reverse(r Route) {
	for a, b := 0, len(r)-1; a < b; a, b = a+1, b-1 {
		r[a], r[b] = r[b], r[a]
	}
}
