// Package v1alpha1 contains the wire types of the Green Hash optimizer API.
package v1alpha1

// OptimizationData is the raw problem exchanged by GET /optimization-data and POST /optimize.
// Per-pair tables are keyed by site id then device name.
type OptimizationData struct {
	// Sites lists the site ids in solver order.
	Sites []string `json:"sites"`

	// Devices lists the device names in solver order.
	Devices []string `json:"devices"`

	// T is the number of periods in the horizon.
	T int `json:"T"`

	// RHash is the hash yield per unit per period.
	RHash map[string]map[string]float64 `json:"r_hash"`

	// RTok is the token yield per unit per period.
	RTok map[string]map[string]float64 `json:"r_tok"`

	// Power is the draw per unit in kW.
	Power map[string]map[string]float64 `json:"power"`

	// N is the per-site machine cap; 0 means the device is unavailable at the site.
	N map[string]map[string]int `json:"N"`

	// H is the hash price series, length T.
	H []float64 `json:"h"`

	// G is the token price series, length T.
	G []float64 `json:"g"`

	// E is the per-site energy price series in $/kWh, each of length T.
	E map[string][]float64 `json:"e"`

	// PMax is the per-site power cap in kW.
	PMax map[string]float64 `json:"P_MAX"`

	// EBudget caps the energy spend over the horizon.
	EBudget float64 `json:"E_BUDGET"`

	// PeriodHours is the length of one period. Defaults to 1.
	// +optional
	PeriodHours *float64 `json:"period_hours,omitempty"`

	// Regions maps site ids to a state or region code.
	// +optional
	Regions map[string]string `json:"regions,omitempty"`
}

// OptimizationResult is one non-zero entry of an allocation.
type OptimizationResult struct {
	Site   string  `json:"site"`
	Device string  `json:"device"`
	Count  int     `json:"count"`
	Profit float64 `json:"profit"`
}

// SolveStatus describes how an allocation was obtained.
type SolveStatus string

// Solve statuses
const (
	StatusOptimal    SolveStatus = "optimal"
	StatusHeuristic  SolveStatus = "heuristic"
	StatusTimeout    SolveStatus = "timeout"
	StatusInfeasible SolveStatus = "infeasible"
)

// OptimizeResponse is the body returned by POST /optimize.
type OptimizeResponse struct {
	// OptimalAllocation maps site to device to count, zero counts included.
	OptimalAllocation map[string]map[string]int `json:"optimal_allocation"`

	Message string `json:"message,omitempty"`

	// Error is set when the problem was infeasible.
	// +optional
	Error string `json:"error,omitempty"`

	Results             []OptimizationResult `json:"results"`
	TotalProfit         float64              `json:"total_profit"`
	TotalRevenue        float64              `json:"total_revenue"`
	TotalEnergyCost     float64              `json:"total_energy_cost"`
	ActiveDeviceCount   int                  `json:"active_device_count"`
	SitesOptimizedCount int                  `json:"sites_optimized_count"`

	// PeriodProfit is the profit contribution of each period.
	PeriodProfit []float64 `json:"period_profit"`

	// PowerUsed is the draw per site in kW.
	PowerUsed map[string]float64 `json:"power_used,omitempty"`

	Status    SolveStatus `json:"status"`
	Optimal   bool        `json:"optimal"`
	Solver    string      `json:"solver"`
	ElapsedMS int64       `json:"elapsed_ms"`
	Timestamp string      `json:"timestamp"`
}

// OptimizationDataResponse is the envelope returned by GET /optimization-data.
type OptimizationDataResponse struct {
	Success   bool              `json:"success"`
	Data      *OptimizationData `json:"data,omitempty"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
