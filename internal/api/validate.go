package api

import (
	"fmt"

	"fleetopt/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if req.N > 0 && len(req.Customers) > 0 {
		return fmt.Errorf("specify either n or customers, not both")
	}
	if req.N == 0 && len(req.Customers) == 0 {
		return fmt.Errorf("either n or customers is required")
	}
	if req.N < 0 {
		return fmt.Errorf("n must be >= 0")
	}
	if req.Capacity <= 0 {
		return fmt.Errorf("capacity must be > 0")
	}
	if req.Vehicles <= 0 {
		return fmt.Errorf("vehicles must be > 0")
	}
	if req.SATimeMs < 0 {
		return fmt.Errorf("saTimeMs must be >= 0")
	}
	if req.InitTemp < 0 {
		return fmt.Errorf("initTemp must be >= 0")
	}
	if req.Cooling != 0 && (req.Cooling <= 0 || req.Cooling >= 1) {
		return fmt.Errorf("cooling must be in (0,1)")
	}
	if req.LambdaTw < 0 {
		return fmt.Errorf("lambdaTw must be >= 0")
	}
	if req.MuFair < 0 {
		return fmt.Errorf("muFair must be >= 0")
	}
	for i, c := range req.Customers {
		if c.Demand <= 0 {
			return fmt.Errorf("customer %d: demand must be > 0", i)
		}
		if (c.TwOpen == nil) != (c.TwClose == nil) {
			return fmt.Errorf("customer %d: twOpen and twClose must be set together", i)
		}
		if c.TwOpen != nil && *c.TwClose < *c.TwOpen {
			return fmt.Errorf("customer %d: twClose must be >= twOpen", i)
		}
		if c.Service < 0 {
			return fmt.Errorf("customer %d: service must be >= 0", i)
		}
	}
	return nil
}

func validateSubscriptionRequest(req *model.SubscriptionRequest) error {
	if req.URL == "" {
		return fmt.Errorf("url is required")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("at least one event type is required")
	}
	allowed := map[string]struct{}{
		"run.started": {}, "run.completed": {}, "run.failed": {}, "*": {},
	}
	for _, e := range req.Events {
		if _, ok := allowed[e]; !ok {
			return fmt.Errorf("unknown event type: %s (allowed: run.started, run.completed, run.failed, *)", e)
		}
	}
	return nil
}
