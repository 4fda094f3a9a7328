package solver

import (
	"math"
	"testing"
)

func TestTwoOptDeltaMatchesFullRecompute(t *testing.T) {
	depot := Node{X: 0, Y: 0}
	customers := []Node{
		{X: 3, Y: 1, Demand: 1},
		{X: 9, Y: 4, Demand: 1},
		{X: 2, Y: 8, Demand: 1},
		{X: 7, Y: 7, Demand: 1},
		{X: 5, Y: 2, Demand: 1},
	}
	in, err := NewInstance(depot, customers, 100, 1)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	m := BuildMatrix(in.AllNodes())
	r := Route{0, 1, 2, 3, 4, 5, 0}
	base := RouteDistance(r, m)
	for i := 1; i < len(r)-2; i++ {
		for k := i + 1; k < len(r)-1; k++ {
			delta := twoOptDelta(r, i, k, m)
			rev := r.Clone()
			applyTwoOpt(rev, i, k)
			full := RouteDistance(rev, m) - base
			if math.Abs(delta-full) > 1e-6 {
				t.Fatalf("delta(%d,%d)=%.9f, full recompute %.9f", i, k, delta, full)
			}
		}
	}
}

func TestTwoOptPassUncrossesRoute(t *testing.T) {
	in, m := quadInstance(t, 1)
	// crossing order: (10,0) -> (10,10) -> (20,0) -> (20,10)
	s := Solution{Route{0, 1, 3, 2, 4, 0}}
	before := Cost(s, in, m)
	s, improved := TwoOptPass(s, m, 5)
	if !improved {
		t.Fatal("expected an improving reversal")
	}
	after := Cost(s, in, m)
	if after >= before {
		t.Fatalf("cost did not drop: %.4f -> %.4f", before, after)
	}
	want := 40 + math.Sqrt(200)
	if math.Abs(after-want) > 1e-6 {
		t.Fatalf("uncrossed cost %.6f, want %.6f", after, want)
	}
	checkInvariants(t, s, in)
}

func TestRelocateMovesCustomerBetweenRoutes(t *testing.T) {
	depot := Node{X: 0, Y: 0}
	customers := []Node{
		{X: 10, Y: 0, Demand: 10},
		{X: 11, Y: 0, Demand: 10},
		{X: -10, Y: 0, Demand: 10},
	}
	in, err := NewInstance(depot, customers, 100, 2)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	m := BuildMatrix(in.AllNodes())
	// customer 2 stranded with customer 3 on the wrong side
	s := Solution{Route{0, 1, 0}, Route{0, 3, 2, 0}}
	before := Cost(s, in, m)
	s, improved := RelocateBest(s, in, m)
	if !improved {
		t.Fatal("expected an improving relocate")
	}
	if after := Cost(s, in, m); after >= before {
		t.Fatalf("cost did not drop: %.4f -> %.4f", before, after)
	}
	checkInvariants(t, s, in)
}

func TestRelocateRespectsCapacity(t *testing.T) {
	depot := Node{X: 0, Y: 0}
	customers := []Node{
		{X: 10, Y: 0, Demand: 60},
		{X: 11, Y: 0, Demand: 60},
	}
	in, err := NewInstance(depot, customers, 100, 2)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	m := BuildMatrix(in.AllNodes())
	// moving either customer next to the other would help distance but
	// overflows the target route
	s := Solution{Route{0, 1, 0}, Route{0, 2, 0}}
	s, improved := RelocateBest(s, in, m)
	if improved {
		t.Fatalf("capacity-violating move applied: %v", s)
	}
	checkInvariants(t, s, in)
}

func TestRelocateDropsEmptiedRoute(t *testing.T) {
	depot := Node{X: 0, Y: 0}
	customers := []Node{
		{X: 10, Y: 0, Demand: 10},
		{X: 10, Y: 1, Demand: 10},
	}
	in, err := NewInstance(depot, customers, 100, 2)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	m := BuildMatrix(in.AllNodes())
	s := Solution{Route{0, 1, 0}, Route{0, 2, 0}}
	s, improved := RelocateBest(s, in, m)
	if !improved {
		t.Fatal("expected merge via relocate")
	}
	if len(s) != 1 {
		t.Fatalf("emptied route not removed: %v", s)
	}
	checkInvariants(t, s, in)
}
