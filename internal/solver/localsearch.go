package solver

// LocalSearch alternates one 2-opt pass and one relocate move until a joint
// pass where neither improves. Every applied move strictly decreases cost and
// cost is bounded below, so the loop terminates without cycle detection.
// Returns the improved solution and whether any move was applied.
func LocalSearch(s Solution, in *Instance, m Matrix) (Solution, bool) {
	improved := false
	for {
		var a, b bool
		s, a = TwoOptPass(s, m, 1)
		s, b = RelocateBest(s, in, m)
		if !a && !b {
			return s, improved
		}
		improved = true
	}
}
