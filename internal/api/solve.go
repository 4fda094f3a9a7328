package api

import (
	"math/rand"
	"time"

	"fleetopt/internal/config"
	"fleetopt/internal/metrics"
	"fleetopt/internal/model"
	"fleetopt/internal/solver"
)

// runSolve executes the full pipeline for a validated request: instance
// construction, savings start, optional local search, annealing, and final
// evaluation. Errors come only from instance construction.
func (s *Server) runSolve(req model.SolveRequest) (model.RunResult, error) {
	start := time.Now()
	in, m, err := buildInstance(s.Cfg, req)
	if err != nil {
		return model.RunResult{}, err
	}

	sol := solver.ClarkeWright(in, m)
	if !req.NoLocal {
		sol, _ = solver.LocalSearch(sol, in, m)
	}

	budget := time.Duration(s.Cfg.Solver.SATimeMs) * time.Millisecond
	if req.SATimeMs > 0 {
		budget = time.Duration(req.SATimeMs) * time.Millisecond
	}
	opts := solver.Options{
		Budget: budget,
		T0:     s.Cfg.Solver.InitTemp,
		Alpha:  s.Cfg.Solver.Cooling,
	}
	if req.InitTemp > 0 {
		opts.T0 = req.InitTemp
	}
	if req.Cooling > 0 {
		opts.Alpha = req.Cooling
	}
	if req.Seed != 0 {
		opts.RNG = rand.New(rand.NewSource(req.Seed))
	}
	best, stats := solver.Anneal(sol, in, m, opts)
	if !req.NoLocal {
		best, _ = solver.LocalSearch(best, in, m)
	}

	eval := solver.Evaluate(best, in, m)
	unserved := len(in.Customers) - best.Customers()
	res := model.RunResult{
		Status: "completed",
		Routes: routesOut(best),
		Cost:   eval.Total,
		CostBreakdown: map[string]float64{
			"distance":   eval.Distance,
			"timeWindow": eval.TimeWindow,
			"fairness":   eval.Fairness,
		},
		Unserved:  unserved,
		RuntimeMs: time.Since(start).Milliseconds(),
		Stats: &model.SolveStats{
			Iterations:    stats.Iterations,
			Improvements:  stats.Improvements,
			AcceptedWorse: stats.AcceptedWorse,
			InitialCost:   stats.InitialCost,
			BestCost:      stats.BestCost,
		},
	}
	metrics.SolveDuration.WithLabelValues("completed").Observe(time.Since(start).Seconds())
	metrics.SolveIterations.Add(float64(stats.Iterations))
	metrics.SolveAcceptedWorse.Add(float64(stats.AcceptedWorse))
	metrics.SolveUnserved.Add(float64(unserved))
	return res, nil
}

// buildInstance materializes a solver instance either from the synthetic
// generator or from an explicit customer list.
func buildInstance(cfg config.Config, req model.SolveRequest) (*solver.Instance, solver.Matrix, error) {
	lambdaTW := req.LambdaTw
	muFair := req.MuFair
	zones := cfg.Solver.FairZones

	if req.N > 0 {
		in, m, err := solver.Generate(solver.GenSpec{
			N:           req.N,
			Seed:        req.Seed,
			Capacity:    req.Capacity,
			Vehicles:    req.Vehicles,
			TimeWindows: req.TimeWindows,
		})
		if err != nil {
			return nil, nil, err
		}
		in.LambdaTW = lambdaTW
		in.MuFair = muFair
		in.FairZones = zones
		return in, m, nil
	}

	depot := solver.Node{X: 0, Y: 0}
	if req.Depot != nil {
		depot.X, depot.Y = req.Depot.X, req.Depot.Y
	}
	customers := make([]solver.Node, 0, len(req.Customers))
	for _, c := range req.Customers {
		nd := solver.Node{X: c.X, Y: c.Y, Demand: c.Demand, Service: c.Service}
		if c.TwOpen != nil && c.TwClose != nil {
			nd.TW = &solver.Window{Open: *c.TwOpen, Close: *c.TwClose}
		}
		customers = append(customers, nd)
	}
	in, err := solver.NewInstance(depot, customers, req.Capacity, req.Vehicles)
	if err != nil {
		return nil, nil, err
	}
	in.LambdaTW = lambdaTW
	in.MuFair = muFair
	in.FairZones = zones
	return in, solver.BuildMatrix(in.AllNodes()), nil
}

func routesOut(s solver.Solution) [][]int {
	out := make([][]int, len(s))
	for i, r := range s {
		out[i] = append([]int(nil), r...)
	}
	return out
}
