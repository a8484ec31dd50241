// Package solver implements the allocation algorithms of the fleet optimizer.
//
// The solvers choose integer device counts per site and device type that
// maximize horizon profit subject to the site power caps, the global energy
// budget and the per-site machine caps.
//
// Key Components:
//
//   - Solver: interface implemented by every algorithm
//   - GreedySolver: ratio heuristic (profit per energy dollar), documented approximation
//   - ExactSolver: branch and bound with LP relaxation bounds (gonum simplex)
//   - Optimizer: strategy selection, time limits, infeasibility screening and post-solve checks
//
// Example usage:
//
//	opt, err := solver.NewOptimizer(config.DefaultOptimizerSpec())
//	if err != nil {
//	    return err
//	}
//	sol, err := opt.Optimize(ctx, problem)
//	switch {
//	case errors.Is(err, core.ErrTimeout):
//	    // sol holds the best incumbent, sol.Optimal is false
//	case err != nil:
//	    return err
//	}
//
// Allocations are static over the horizon: a unit placed at a site runs in
// every period, so the power cap applies identically to every period.
package solver
