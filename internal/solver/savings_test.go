package solver

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func quadInstance(t *testing.T, vehicles int) (*Instance, Matrix) {
	t.Helper()
	depot := Node{X: 0, Y: 0}
	customers := []Node{
		{X: 10, Y: 0, Demand: 10},
		{X: 20, Y: 0, Demand: 10},
		{X: 10, Y: 10, Demand: 10},
		{X: 20, Y: 10, Demand: 10},
	}
	in, err := NewInstance(depot, customers, 100, vehicles)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	return in, BuildMatrix(in.AllNodes())
}

func checkInvariants(t *testing.T, s Solution, in *Instance) {
	t.Helper()
	nodes := in.AllNodes()
	seen := map[int]int{}
	for _, r := range s {
		if len(r) < 2 || r[0] != 0 || r[len(r)-1] != 0 {
			t.Fatalf("route missing depot sentinels: %v", r)
		}
		for _, i := range r[1 : len(r)-1] {
			if i == 0 {
				t.Fatalf("interior depot in route %v", r)
			}
			seen[i]++
		}
		if d := r.Demand(nodes); d > in.Capacity {
			t.Fatalf("route %v demand %d exceeds capacity %d", r, d, in.Capacity)
		}
	}
	for c, n := range seen {
		if n != 1 {
			t.Fatalf("customer %d visited %d times", c, n)
		}
	}
	if len(s) > in.Vehicles {
		t.Fatalf("%d routes exceed vehicle limit %d", len(s), in.Vehicles)
	}
}

func TestClarkeWrightSingleTour(t *testing.T) {
	in, m := quadInstance(t, 1)
	s := ClarkeWright(in, m)
	checkInvariants(t, s, in)
	if len(s) != 1 {
		t.Fatalf("want one merged route, got %d", len(s))
	}
	if got := s.Customers(); got != 4 {
		t.Fatalf("want 4 customers served, got %d", got)
	}
	want := 40 + math.Sqrt(200)
	if got := Cost(s, in, m); math.Abs(got-want) > 1e-6 {
		t.Fatalf("tour cost %.6f, want %.6f", got, want)
	}
	// The hand-optimal tour admits no improving reversal.
	if _, improved := TwoOptPass(s, m, 1); improved {
		t.Fatalf("2-opt improved an optimal tour: %v", s)
	}
}

func TestClarkeWrightDeterministic(t *testing.T) {
	in, m := quadInstance(t, 2)
	a := ClarkeWright(in, m)
	b := ClarkeWright(in, m)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("construction not deterministic: %v vs %v", a, b)
	}
}

func TestClarkeWrightCapacitySplitsRoutes(t *testing.T) {
	depot := Node{X: 0, Y: 0}
	customers := []Node{
		{X: 1, Y: 0, Demand: 60},
		{X: 2, Y: 0, Demand: 60},
		{X: 3, Y: 0, Demand: 60},
	}
	in, err := NewInstance(depot, customers, 100, 3)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	m := BuildMatrix(in.AllNodes())
	s := ClarkeWright(in, m)
	checkInvariants(t, s, in)
	// no pair fits together, so every route stays a singleton
	if len(s) != 3 {
		t.Fatalf("want 3 singleton routes, got %v", s)
	}
}

func TestClarkeWrightVehicleLimitDropsWholeRoutes(t *testing.T) {
	depot := Node{X: 0, Y: 0}
	// two far-apart clusters that cannot merge across the capacity line
	customers := []Node{
		{X: 1, Y: 0, Demand: 90},
		{X: 100, Y: 0, Demand: 40},
		{X: 101, Y: 0, Demand: 40},
	}
	in, err := NewInstance(depot, customers, 100, 1)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	m := BuildMatrix(in.AllNodes())
	s := ClarkeWright(in, m)
	if len(s) != 1 {
		t.Fatalf("vehicle limit not enforced: %v", s)
	}
	nodes := in.AllNodes()
	// the pruning keeps the heaviest route and drops the other one whole
	if got := s[0].Demand(nodes); got != 90 {
		t.Fatalf("kept route demand %d, want the heaviest (90)", got)
	}
	if served := s.Customers(); served != 1 {
		t.Fatalf("want exactly the kept route's customer served, got %d", served)
	}
}

func TestNewInstanceRejectsInfeasibleDemand(t *testing.T) {
	depot := Node{X: 0, Y: 0}
	customers := []Node{{X: 1, Y: 1, Demand: 150}}
	_, err := NewInstance(depot, customers, 100, 2)
	var infeasible *InfeasibleError
	if !errors.As(err, &infeasible) {
		t.Fatalf("want InfeasibleError, got %v", err)
	}
	if infeasible.Node != 1 || infeasible.Demand != 150 {
		t.Fatalf("bad error detail: %+v", infeasible)
	}
}

func TestNewInstanceRejectsInvalidConfig(t *testing.T) {
	depot := Node{}
	customers := []Node{{X: 1, Demand: 1}}
	if _, err := NewInstance(depot, customers, 0, 1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("zero capacity: want ErrInvalidConfig, got %v", err)
	}
	if _, err := NewInstance(depot, customers, 10, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("zero vehicles: want ErrInvalidConfig, got %v", err)
	}
}
