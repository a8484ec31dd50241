package solver

import (
	"context"
	"math"
	"sort"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
	"github.com/green-hash/fleet-optimizer/pkg/config"
	"github.com/green-hash/fleet-optimizer/pkg/core"
)

// GreedySolver is the ratio heuristic. It is not guaranteed optimal.
//
// Pairs are ranked by profit per energy dollar (pairs with no energy cost first),
// ties broken by higher absolute profit, then lower site index, then lower device
// index. Each pair receives as many units as its site power cap, the remaining
// budget and its machine cap allow. The same fill is repeated with pairs ranked by
// profit per kW and by absolute profit; the most profitable of the passes wins,
// earlier passes winning ties.
type GreedySolver struct{}

// NewGreedySolver creates a greedy solver.
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{}
}

// Name returns the solver name.
func (g *GreedySolver) Name() string {
	return string(config.StrategyGreedy)
}

// Solve runs the heuristic. It never blocks and ignores ctx except for logging.
func (g *GreedySolver) Solve(ctx context.Context, p *core.Problem) (*Solution, error) {
	m := newModel(p)
	counts := greedyFill(m)
	logger := ctrl.LoggerFrom(ctx)
	logger.V(logging.DEBUG).Info("Greedy allocation computed", "variables", len(m.vars), "objective", m.objective(counts))
	return &Solution{
		Allocation: m.allocation(counts),
		Objective:  m.objective(counts),
		Status:     v1alpha1.StatusHeuristic,
		Solver:     g.Name(),
	}, nil
}

// rankKey returns the ordering value of a pair for one greedy pass.
type rankKey func(v pair) float64

var greedyPasses = []rankKey{
	// profit per energy dollar
	func(v pair) float64 {
		if v.energy <= 0 {
			return math.Inf(1)
		}
		return v.profit / v.energy
	},
	// profit per kW of site capacity
	func(v pair) float64 {
		if v.power <= 0 {
			return math.Inf(1)
		}
		return v.profit / v.power
	},
	// absolute profit
	func(v pair) float64 {
		return v.profit
	},
}

// greedyFill returns the best counts over all greedy passes.
func greedyFill(m *model) []int {
	var best []int
	bestObj := math.Inf(-1)
	for _, key := range greedyPasses {
		counts := fillInOrder(m, rankPairs(m.vars, key))
		if obj := m.objective(counts); obj > bestObj+integralTolerance {
			best, bestObj = counts, obj
		}
	}
	if best == nil {
		best = make([]int, len(m.vars))
	}
	return best
}

// rankPairs returns variable indices sorted by key descending with deterministic tie breaks.
func rankPairs(vars []pair, key rankKey) []int {
	order := make([]int, len(vars))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := vars[order[a]], vars[order[b]]
		ka, kb := key(va), key(vb)
		if ka != kb {
			return ka > kb
		}
		if va.profit != vb.profit {
			return va.profit > vb.profit
		}
		if va.site != vb.site {
			return va.site < vb.site
		}
		return va.device < vb.device
	})
	return order
}

// fillInOrder assigns the maximum admissible units to each variable in turn.
func fillInOrder(m *model, order []int) []int {
	counts := make([]int, len(m.vars))
	capLeft := append([]float64(nil), m.siteCaps...)
	budgetLeft := m.budget
	for _, j := range order {
		v := m.vars[j]
		n := v.hi
		n = min(n, maxUnits(capLeft[v.site], v.power))
		n = min(n, maxUnits(budgetLeft, v.energy))
		if n <= 0 {
			continue
		}
		counts[j] = n
		capLeft[v.site] -= float64(n) * v.power
		budgetLeft -= float64(n) * v.energy
	}
	return counts
}
