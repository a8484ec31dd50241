package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/pkg/config"
	"github.com/green-hash/fleet-optimizer/pkg/core"
)

// Optimizer selects a solver for each problem and guards its output.
type Optimizer struct {
	spec      config.OptimizerSpec
	newSolver func(config.Strategy, *config.OptimizerSpec) (Solver, error)
}

// NewOptimizer creates an optimizer from a spec. A nil spec selects the defaults.
func NewOptimizer(spec *config.OptimizerSpec) (*Optimizer, error) {
	s := *config.DefaultOptimizerSpec()
	if spec != nil {
		s = *spec
		s.ApplyDefaults()
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimizer spec: %w", err)
	}
	return &Optimizer{spec: s, newSolver: NewSolver}, nil
}

// Spec returns a copy of the effective spec.
func (o *Optimizer) Spec() config.OptimizerSpec {
	return o.spec
}

// FreeVariables returns the number of pairs that can take a non-zero count.
func FreeVariables(p *core.Problem) int {
	return len(newModel(p).vars)
}

// SelectStrategy resolves auto to a concrete strategy for the problem.
func (o *Optimizer) SelectStrategy(p *core.Problem) config.Strategy {
	if o.spec.Strategy != config.StrategyAuto {
		return o.spec.Strategy
	}
	if FreeVariables(p) <= o.spec.MaxExactVariables {
		return config.StrategyExact
	}
	return config.StrategyGreedy
}

// Optimize solves the problem with the configured strategy.
//
// Errors:
//   - core.ErrInfeasibleProblem: malformed constraints; the solution carries a zero allocation.
//   - core.ErrTimeout: the exact search was cut short; the solution carries the incumbent.
//   - core.ErrInternalSolver: a solver panicked or produced an allocation violating a constraint; no solution.
func (o *Optimizer) Optimize(ctx context.Context, p *core.Problem) (sol *Solution, err error) {
	logger := ctrl.LoggerFrom(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Errorf("%v", r), "Solver panicked")
			sol, err = nil, core.NewInternalSolverError("solver panicked: %v", r)
		}
	}()

	if p == nil {
		return nil, core.NewInvalidProblem(field.ErrorList{field.Required(field.NewPath("problem"), "problem is required")})
	}
	if err := screen(p); err != nil {
		zero := &Solution{
			Allocation: core.NewAllocation(p),
			Status:     v1alpha1.StatusInfeasible,
			Solver:     "none",
		}
		logger.Info("Problem is infeasible", "reason", err.Error())
		return zero, err
	}
	if p.EnergyBudget == 0 {
		logger.Info("Energy budget is zero, returning an empty allocation")
		return &Solution{
			Allocation: core.NewAllocation(p),
			Status:     v1alpha1.StatusOptimal,
			Optimal:    true,
			Solver:     "none",
		}, nil
	}

	strategy := o.SelectStrategy(p)
	s, err := o.newSolver(strategy, &o.spec)
	if err != nil {
		return nil, core.NewInternalSolverError("%v", err)
	}

	sol, err = s.Solve(ctx, p)
	if err != nil && !errors.Is(err, core.ErrTimeout) {
		return nil, core.NewInternalSolverError("%s solver failed: %v", s.Name(), err)
	}
	if sol == nil || sol.Allocation == nil {
		return nil, core.NewInternalSolverError("%s solver returned no allocation", s.Name())
	}
	if checkErr := sol.Allocation.Check(p); checkErr != nil {
		logger.Error(checkErr, "Solver produced an allocation that violates the constraints", "solver", s.Name())
		return nil, core.NewInternalSolverError("%s solver produced an invalid allocation: %v", s.Name(), checkErr)
	}
	sol.Objective = sol.Allocation.Profit(p)

	logOutcome(logger, sol, time.Since(start), err)
	return sol, err
}

// screen rejects constraint data no allocation can be checked against.
func screen(p *core.Problem) error {
	if p.EnergyBudget < 0 || math.IsNaN(p.EnergyBudget) {
		return core.NewInfeasibleProblem("energy budget %v is negative", p.EnergyBudget)
	}
	for s, site := range p.Sites {
		if site.PowerCap < 0 || math.IsNaN(site.PowerCap) {
			return core.NewInfeasibleProblem("site %s has negative power cap %v", site.ID, site.PowerCap)
		}
		if len(site.Units) != p.NumDevices() {
			return core.NewInfeasibleProblem("site %s defines %d devices, problem has %d", site.ID, len(site.Units), p.NumDevices())
		}
		for d := range p.Devices {
			u := p.Unit(s, d)
			if u.Power < 0 || math.IsNaN(u.Power) {
				return core.NewInfeasibleProblem("site %s device %s has negative power %v", site.ID, p.Devices[d], u.Power)
			}
			if u.MaxMachines < 0 {
				return core.NewInfeasibleProblem("site %s device %s has negative machine cap %d", site.ID, p.Devices[d], u.MaxMachines)
			}
		}
	}
	return nil
}

func logOutcome(logger logr.Logger, sol *Solution, elapsed time.Duration, err error) {
	kv := []any{
		"solver", sol.Solver,
		"status", sol.Status,
		"objective", sol.Objective,
		"devices", sol.Allocation.TotalDevices(),
		"nodes", sol.Nodes,
		"elapsed", elapsed,
	}
	if err != nil {
		logger.Info("Optimization stopped early, returning incumbent", append(kv, "reason", err.Error())...)
		return
	}
	logger.Info("Optimization completed", kv...)
}
