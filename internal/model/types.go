package model

// API request/response types for the solver service.

// PointIn is a 2D coordinate in instance units.
type PointIn struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CustomerIn describes one customer in an explicit instance.
type CustomerIn struct {
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Demand  int      `json:"demand"`
	TwOpen  *float64 `json:"twOpen,omitempty"`
	TwClose *float64 `json:"twClose,omitempty"`
	Service float64  `json:"service,omitempty"`
}

// SolveRequest selects either a synthetic instance (N > 0) or an explicit
// customer list, plus solver parameter overrides.
type SolveRequest struct {
	// synthetic instance spec
	N           int   `json:"n,omitempty"`
	Seed        int64 `json:"seed,omitempty"`
	TimeWindows bool  `json:"timeWindows,omitempty"`

	// explicit instance
	Depot     *PointIn     `json:"depot,omitempty"`
	Customers []CustomerIn `json:"customers,omitempty"`

	Capacity int `json:"capacity"`
	Vehicles int `json:"vehicles"`

	// solver parameters (zero means server default)
	SATimeMs int     `json:"saTimeMs,omitempty"`
	InitTemp float64 `json:"initTemp,omitempty"`
	Cooling  float64 `json:"cooling,omitempty"`
	LambdaTw float64 `json:"lambdaTw,omitempty"`
	MuFair   float64 `json:"muFair,omitempty"`
	NoLocal  bool    `json:"noLocal,omitempty"`
	Tag      string  `json:"tag,omitempty"`
}

// SolveStats mirrors solver.Stats for persistence and responses.
type SolveStats struct {
	Iterations    int     `json:"iterations"`
	Improvements  int     `json:"improvements"`
	AcceptedWorse int     `json:"acceptedWorse"`
	InitialCost   float64 `json:"initialCost"`
	BestCost      float64 `json:"bestCost"`
}

// Run is a stored solve run: the request that produced it plus its outcome.
type Run struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"` // running, completed, failed
	CreatedAt     string             `json:"createdAt"`
	Tag           string             `json:"tag,omitempty"`
	Request       SolveRequest       `json:"request"`
	Routes        [][]int            `json:"routes,omitempty"`
	Cost          float64            `json:"cost"`
	CostBreakdown map[string]float64 `json:"costBreakdown,omitempty"`
	Unserved      int                `json:"unserved"`
	RuntimeMs     int64              `json:"runtimeMs"`
	Stats         *SolveStats        `json:"stats,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// RunResult is what a finished solve reports back to the store.
type RunResult struct {
	Status        string
	Routes        [][]int
	Cost          float64
	CostBreakdown map[string]float64
	Unserved      int
	RuntimeMs     int64
	Stats         *SolveStats
	Error         string
}

// SubscriptionRequest registers a webhook for run lifecycle events.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Subscription is a stored webhook registration.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
