package solver

// Local-search neighborhood operators. Both mutate the solution they are
// given and leave instance and matrix untouched.

// moveEps guards against re-applying moves whose gain is floating-point noise.
const moveEps = 1e-9

// twoOptDelta is the cost change from reversing r[i..k], computed from the
// four boundary edges only.
func twoOptDelta(r Route, i, k int, m Matrix) float64 {
	if i < 1 || k >= len(r)-1 || i >= k {
		return 0
	}
	a, b := r[i-1], r[i]
	c, d := r[k], r[k+1]
	return m[a][c] + m[b][d] - (m[a][b] + m[c][d])
}

func applyTwoOpt(r Route, i, k int) {
	for a, b := i, k; a < b; a, b = a+1, b-1 {
		r[a], r[b] = r[b], r[a]
	}
}

// TwoOptPass runs up to maxPasses passes of intra-route 2-opt. Within each
// route the single best strictly improving reversal found in a pass is
// applied. Returns the (mutated) solution and whether anything improved.
func TwoOptPass(s Solution, m Matrix, maxPasses int) (Solution, bool) {
	if maxPasses <= 0 {
		maxPasses = 1
	}
	improved := false
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, r := range s {
			bestGain := 0.0
			bestI, bestK := -1, -1
			for i := 1; i < len(r)-2; i++ {
				for k := i + 1; k < len(r)-1; k++ {
					if delta := twoOptDelta(r, i, k, m); delta < bestGain {
						bestGain = delta
						bestI, bestK = i, k
					}
				}
			}
			if bestI >= 0 {
				applyTwoOpt(r, bestI, bestK)
				changed = true
				improved = true
			}
		}
		if !changed {
			break
		}
	}
	return s, improved
}

// RelocateBest scans every (customer, insertion position) pair across all
// routes and applies the single best feasible move if its gain clears moveEps.
// Inter-route moves are capacity checked; routes emptied by the move are
// dropped from the solution.
func RelocateBest(s Solution, in *Instance, m Matrix) (Solution, bool) {
	nodes := in.AllNodes()
	bestGain := 0.0
	var bestRA, bestIA, bestRB, bestJB int
	found := false

	for ra, rA := range s {
		for ia := 1; ia < len(rA)-1; ia++ {
			cust := rA[ia]
			deltaRemove := m[rA[ia-1]][cust] + m[cust][rA[ia+1]] - m[rA[ia-1]][rA[ia+1]]
			for rb, rB := range s {
				if ra == rb && len(rA) <= 3 {
					continue
				}
				if ra != rb {
					if rB.Demand(nodes)+nodes[cust].Demand > in.Capacity {
						continue
					}
				}
				for jb := 1; jb < len(rB); jb++ {
					if ra == rb && (jb == ia || jb == ia+1) {
						continue
					}
					deltaInsert := m[rB[jb-1]][cust] + m[cust][rB[jb]] - m[rB[jb-1]][rB[jb]]
					gain := deltaRemove - deltaInsert
					if gain > bestGain {
						bestGain = gain
						bestRA, bestIA, bestRB, bestJB = ra, ia, rb, jb
						found = true
					}
				}
			}
		}
	}

	if !found || bestGain <= moveEps {
		return s, false
	}

	cust := s[bestRA][bestIA]
	s[bestRA] = append(s[bestRA][:bestIA], s[bestRA][bestIA+1:]...)
	if bestRA == bestRB && bestJB > bestIA {
		bestJB--
	}
	rB := s[bestRB]
	rB = append(rB, 0)
	copy(rB[bestJB+1:], rB[bestJB:])
	rB[bestJB] = cust
	s[bestRB] = rB

	out := s[:0]
	for _, r := range s {
		if len(r) > 2 {
			out = append(out, r)
		}
	}
	return out, true
}
