package solver

import "math/rand"

// GenSpec describes a synthetic benchmark instance.
type GenSpec struct {
	N           int
	Seed        int64
	Capacity    int
	Vehicles    int
	TimeWindows bool
}

// Generate builds a reproducible synthetic instance and its distance matrix.
// The depot sits at (50,50); customers are uniform over [0,100)^2 with
// demand in [1, max(2, capacity/5)). With TimeWindows set, each customer
// gets a window [base, base+U(20,60)] with base U(0,200) and service time
// U(0.5, 2.0).
func Generate(spec GenSpec) (*Instance, Matrix, error) {
	rng := rand.New(rand.NewSource(spec.Seed))
	depot := Node{X: 50, Y: 50}
	customers := make([]Node, spec.N)
	hi := spec.Capacity / 5
	if hi < 2 {
		hi = 2
	}
	for i := range customers {
		nd := Node{
			X:      rng.Float64() * 100,
			Y:      rng.Float64() * 100,
			Demand: 1 + rng.Intn(hi-1),
		}
		if spec.TimeWindows {
			base := rng.Float64() * 200
			nd.TW = &Window{Open: base, Close: base + 20 + rng.Float64()*40}
			nd.Service = 0.5 + rng.Float64()*1.5
		}
		customers[i] = nd
	}
	in, err := NewInstance(depot, customers, spec.Capacity, spec.Vehicles)
	if err != nil {
		return nil, nil, err
	}
	return in, BuildMatrix(in.AllNodes()), nil
}
