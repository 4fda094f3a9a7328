package solver

// Cost evaluation. Pure functions of (solution, instance, matrix); safe to
// call concurrently on independent solutions.

// RouteDistance sums consecutive-edge distances along a route.
func RouteDistance(r Route, m Matrix) float64 {
	total := 0.0
	for i := 0; i+1 < len(r); i++ {
		total += m[r[i]][r[i+1]]
	}
	return total
}

// timeWindowPenalty simulates a vehicle departing the depot at time 0.
// Travel advances the clock by edge distance, early arrivals wait until the
// window opens, late arrivals accrue linear lateness, and service time is
// spent after each visit.
func timeWindowPenalty(r Route, nodes []Node, m Matrix) float64 {
	t := 0.0
	penalty := 0.0
	for i := 0; i+1 < len(r); i++ {
		b := r[i+1]
		t += m[r[i]][b]
		nd := nodes[b]
		if nd.TW != nil {
			if t < nd.TW.Open {
				t = nd.TW.Open
			}
			if t > nd.TW.Close {
				penalty += t - nd.TW.Close
			}
		}
		t += nd.Service
	}
	return penalty
}

// fairnessPenalty partitions the coordinate range into a zones x zones grid,
// counts customer visits per occupied cell, and returns the population
// variance of those counts.
func fairnessPenalty(s Solution, nodes []Node, zones int) float64 {
	if zones <= 1 {
		return 0
	}
	minX, maxX := nodes[0].X, nodes[0].X
	minY, maxY := nodes[0].Y, nodes[0].Y
	for _, nd := range nodes[1:] {
		if nd.X < minX {
			minX = nd.X
		}
		if nd.X > maxX {
			maxX = nd.X
		}
		if nd.Y < minY {
			minY = nd.Y
		}
		if nd.Y > maxY {
			maxY = nd.Y
		}
	}
	spanX := maxX - minX
	spanY := maxY - minY
	zone := func(nd Node) int {
		xz, yz := 0, 0
		if spanX > 0 {
			xz = int(float64(zones) * (nd.X - minX) / spanX)
		}
		if spanY > 0 {
			yz = int(float64(zones) * (nd.Y - minY) / spanY)
		}
		if xz >= zones {
			xz = zones - 1
		}
		if yz >= zones {
			yz = zones - 1
		}
		return yz*zones + xz
	}
	counts := map[int]int{}
	total := 0
	for _, r := range s {
		for _, i := range r {
			if i == 0 {
				continue
			}
			counts[zone(nodes[i])]++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	mean := float64(total) / float64(len(counts))
	varSum := 0.0
	for _, c := range counts {
		d := float64(c) - mean
		varSum += d * d
	}
	return varSum / float64(len(counts))
}

// Cost returns total travel distance plus weighted time-window and fairness
// penalties for the solution.
func Cost(s Solution, in *Instance, m Matrix) float64 {
	nodes := in.AllNodes()
	total := 0.0
	for _, r := range s {
		total += RouteDistance(r, m)
	}
	if in.LambdaTW > 0 {
		pen := 0.0
		for _, r := range s {
			pen += timeWindowPenalty(r, nodes, m)
		}
		total += in.LambdaTW * pen
	}
	if in.MuFair > 0 {
		total += in.MuFair * fairnessPenalty(s, nodes, in.fairZones())
	}
	return total
}

// Breakdown splits a solution's cost into its weighted components.
type Breakdown struct {
	Distance   float64
	TimeWindow float64
	Fairness   float64
	Total      float64
}

// Evaluate computes the full cost breakdown for reporting. Cost is the hot
// path; this one only runs once per finished solve.
func Evaluate(s Solution, in *Instance, m Matrix) Breakdown {
	nodes := in.AllNodes()
	var b Breakdown
	for _, r := range s {
		b.Distance += RouteDistance(r, m)
	}
	if in.LambdaTW > 0 {
		pen := 0.0
		for _, r := range s {
			pen += timeWindowPenalty(r, nodes, m)
		}
		b.TimeWindow = in.LambdaTW * pen
	}
	if in.MuFair > 0 {
		b.Fairness = in.MuFair * fairnessPenalty(s, nodes, in.fairZones())
	}
	b.Total = b.Distance + b.TimeWindow + b.Fairness
	return b
}
