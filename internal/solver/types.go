package solver

import (
	"errors"
	"fmt"
)

// Window is a service time window. Arriving before Open means waiting;
// arriving after Close accrues lateness.
type Window struct{ Open, Close float64 }

// Node is a depot or customer location. Index 0 is always the depot.
type Node struct {
	Index   int
	X, Y    float64
	Demand  int // 0 for the depot
	TW      *Window
	Service float64
}

// Instance describes one CVRP problem. Immutable once constructed; safe to
// share across concurrent solves.
type Instance struct {
	Depot     Node
	Customers []Node // index 1..N, in declaration order
	Capacity  int
	Vehicles  int
	LambdaTW  float64 // time-window penalty weight
	MuFair    float64 // fairness penalty weight
	FairZones int     // grid dimension for the fairness penalty; 0 means default
}

// DefaultFairZones is the k in the k x k fairness grid.
const DefaultFairZones = 4

// ErrInvalidConfig is returned for non-positive capacity or vehicle count.
var ErrInvalidConfig = errors.New("solver: invalid configuration")

// InfeasibleError reports a customer no vehicle can ever serve.
type InfeasibleError struct {
	Node     int
	Demand   int
	Capacity int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("solver: customer %d demand %d exceeds capacity %d", e.Node, e.Demand, e.Capacity)
}

// NewInstance validates and builds an Instance. Customer indices are
// rewritten to 1..N so that route entries double as matrix indices.
func NewInstance(depot Node, customers []Node, capacity, vehicles int) (*Instance, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrInvalidConfig, capacity)
	}
	if vehicles <= 0 {
		return nil, fmt.Errorf("%w: vehicles %d", ErrInvalidConfig, vehicles)
	}
	depot.Index = 0
	depot.Demand = 0
	cs := make([]Node, len(customers))
	copy(cs, customers)
	for i := range cs {
		cs[i].Index = i + 1
		if cs[i].Demand > capacity {
			return nil, &InfeasibleError{Node: i + 1, Demand: cs[i].Demand, Capacity: capacity}
		}
	}
	return &Instance{Depot: depot, Customers: cs, Capacity: capacity, Vehicles: vehicles}, nil
}

// AllNodes returns the depot-first node list; slice index equals node index.
func (in *Instance) AllNodes() []Node {
	out := make([]Node, 0, len(in.Customers)+1)
	out = append(out, in.Depot)
	out = append(out, in.Customers...)
	return out
}

func (in *Instance) fairZones() int {
	if in.FairZones > 0 {
		return in.FairZones
	}
	return DefaultFairZones
}

// Route is a node index sequence starting and ending at the depot (0).
type Route []int

// Clone returns an independent copy.
func (r Route) Clone() Route {
	return append(Route(nil), r...)
}

// Demand sums customer demand on the route.
func (r Route) Demand(nodes []Node) int {
	total := 0
	for _, i := range r {
		if i != 0 {
			total += nodes[i].Demand
		}
	}
	return total
}

// Solution is a set of routes partitioning the customers.
type Solution []Route

// Clone deep-copies every route. Operators mutate routes in place, so any
// caller that needs the prior state must branch through Clone first.
func (s Solution) Clone() Solution {
	out := make(Solution, len(s))
	for i, r := range s {
		out[i] = r.Clone()
	}
	return out
}

// Customers returns how many customer visits the solution contains.
func (s Solution) Customers() int {
	n := 0
	for _, r := range s {
		for _, i := range r {
			if i != 0 {
				n++
			}
		}
	}
	return n
}
