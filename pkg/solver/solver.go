package solver

import (
	"context"
	"fmt"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/pkg/config"
	"github.com/green-hash/fleet-optimizer/pkg/core"
)

// Solver computes an allocation for a problem.
type Solver interface {
	// Name identifies the algorithm in results and metrics.
	Name() string
	// Solve returns the best allocation found. On timeout it returns the
	// incumbent together with an error wrapping core.ErrTimeout.
	Solve(ctx context.Context, p *core.Problem) (*Solution, error)
}

// Solution is the outcome of a solve.
type Solution struct {
	Allocation core.Allocation
	// Objective is the horizon profit of Allocation.
	Objective float64
	Status    v1alpha1.SolveStatus
	// Optimal is true only when the exact search completed.
	Optimal bool
	// Solver names the algorithm that produced Allocation.
	Solver string
	// Nodes is the number of branch-and-bound nodes explored.
	Nodes int64
}

// NewSolver is a factory that creates a Solver for a concrete strategy.
func NewSolver(strategy config.Strategy, spec *config.OptimizerSpec) (Solver, error) {
	switch strategy {
	case config.StrategyGreedy:
		return NewGreedySolver(), nil
	case config.StrategyExact:
		return NewExactSolver(spec), nil
	default:
		return nil, fmt.Errorf("unsupported solver strategy: %v", strategy)
	}
}
