package solver

import (
	"math"
	"math/rand"
	"time"
)

// Options configures a simulated-annealing run. RNG is the only source of
// randomness: proposals themselves are the deterministic best 2-opt/relocate
// moves, randomness enters purely through the accept/reject draw. Passing a
// seeded generator makes runs reproducible.
type Options struct {
	Budget time.Duration
	T0     float64
	Alpha  float64
	RNG    *rand.Rand
}

// Stats summarizes one annealing run.
type Stats struct {
	Iterations    int
	Improvements  int
	AcceptedWorse int
	InitialCost   float64
	BestCost      float64
}

const defaultSeed = 42

// Anneal improves a solution under a wall-clock budget. Candidate moves
// alternate between a 2-opt pass and a relocate move by iteration parity,
// each applied to a full copy of the current solution. Worsening candidates
// are accepted with probability exp(-delta/T) under geometric cooling; the
// best solution ever observed is tracked separately and returned.
func Anneal(s Solution, in *Instance, m Matrix, opts Options) (Solution, Stats) {
	t0 := opts.T0
	if t0 <= 0 {
		t0 = 1.0
	}
	alpha := opts.Alpha
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.995
	}
	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(defaultSeed))
	}

	best := s.Clone()
	bestCost := Cost(best, in, m)
	cur := s.Clone()
	curCost := bestCost
	st := Stats{InitialCost: bestCost, BestCost: bestCost}

	temp := t0
	deadline := time.Now().Add(opts.Budget)
	for time.Now().Before(deadline) {
		st.Iterations++
		var cand Solution
		if st.Iterations%2 == 0 {
			cand, _ = TwoOptPass(cur.Clone(), m, 1)
		} else {
			cand, _ = RelocateBest(cur.Clone(), in, m)
		}
		candCost := Cost(cand, in, m)
		delta := candCost - curCost
		if delta <= 0 || rng.Float64() < math.Exp(-delta/math.Max(temp, 1e-9)) {
			if delta > 0 {
				st.AcceptedWorse++
			}
			cur, curCost = cand, candCost
			if curCost < bestCost {
				best, bestCost = cur.Clone(), curCost
				st.Improvements++
				st.BestCost = bestCost
			}
		}
		temp *= alpha
	}
	return best, st
}
