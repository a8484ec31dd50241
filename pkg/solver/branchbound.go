package solver

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
	"github.com/green-hash/fleet-optimizer/pkg/config"
	"github.com/green-hash/fleet-optimizer/pkg/core"
)

// ExactSolver is a branch-and-bound search over the free variables.
//
// Node bounds come from the LP relaxation, branching is on the most fractional
// variable and the incumbent starts from the greedy allocation. The first
// levels of the tree are expanded breadth first and the resulting subtrees are
// searched concurrently, sharing only the incumbent.
type ExactSolver struct {
	spec config.OptimizerSpec
}

// NewExactSolver creates an exact solver. A nil spec selects the defaults.
func NewExactSolver(spec *config.OptimizerSpec) *ExactSolver {
	s := *config.DefaultOptimizerSpec()
	if spec != nil {
		s = *spec
		s.ApplyDefaults()
	}
	return &ExactSolver{spec: s}
}

// Name returns the solver name.
func (e *ExactSolver) Name() string {
	return string(config.StrategyExact)
}

// Solve searches until the tree is exhausted, the time limit expires, the
// node cap is reached or ctx is done. In the last three cases the incumbent is
// returned with an error wrapping core.ErrTimeout.
func (e *ExactSolver) Solve(ctx context.Context, p *core.Problem) (*Solution, error) {
	logger := ctrl.LoggerFrom(ctx)

	ctx, cancel := context.WithTimeout(ctx, e.spec.TimeLimit)
	defer cancel()

	m := newModel(p)
	s := &search{
		model:    m,
		maxNodes: int64(e.spec.MaxNodes),
	}
	s.incumbent = greedyFill(m)
	s.best = m.objective(s.incumbent)

	root := node{lo: make([]int, len(m.vars)), hi: make([]int, len(m.vars))}
	for j, v := range m.vars {
		root.hi[j] = v.hi
	}
	complete := s.run(ctx, root, e.spec.Parallelism)

	sol := &Solution{
		Allocation: m.allocation(s.incumbent),
		Objective:  s.best,
		Solver:     e.Name(),
		Nodes:      s.nodes.Load(),
	}
	logger.V(logging.DEBUG).Info("Branch and bound finished",
		"variables", len(m.vars),
		"nodes", sol.Nodes,
		"objective", sol.Objective,
		"complete", complete)

	if !complete {
		sol.Status = v1alpha1.StatusTimeout
		return sol, fmt.Errorf("%w: exact search stopped after %d nodes", core.ErrTimeout, sol.Nodes)
	}
	sol.Status = v1alpha1.StatusOptimal
	sol.Optimal = true
	return sol, nil
}

// node is a box of variable bounds.
type node struct {
	lo, hi []int
}

func (n node) with(j, lo, hi int) node {
	c := node{lo: append([]int(nil), n.lo...), hi: append([]int(nil), n.hi...)}
	c.lo[j], c.hi[j] = lo, hi
	return c
}

// widest returns the free variable with the largest range, or -1 when all are fixed.
func (n node) widest() int {
	best, width := -1, 0
	for j := range n.lo {
		if w := n.hi[j] - n.lo[j]; w > width {
			best, width = j, w
		}
	}
	return best
}

// search holds the state shared by concurrent subtrees.
type search struct {
	model    *model
	maxNodes int64

	mu        sync.Mutex
	best      float64
	incumbent []int

	nodes   atomic.Int64
	stopped atomic.Bool
}

func (s *search) bestValue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best
}

// offer replaces the incumbent when counts are strictly better.
func (s *search) offer(counts []int) {
	obj := s.model.objective(counts)
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj > s.best+pruneSlack(s.best) {
		s.best = obj
		s.incumbent = append([]int(nil), counts...)
	}
}

func pruneSlack(v float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(v))
}

// halted reports whether the search must stop, latching the decision.
func (s *search) halted(ctx context.Context) bool {
	if s.stopped.Load() {
		return true
	}
	if ctx.Err() != nil || (s.maxNodes > 0 && s.nodes.Load() >= s.maxNodes) {
		s.stopped.Store(true)
		return true
	}
	return false
}

// run explores the tree rooted at root and reports whether it was exhausted.
func (s *search) run(ctx context.Context, root node, parallelism int) bool {
	frontier := []node{root}
	if parallelism > 1 {
		for len(frontier) > 0 && len(frontier) < 2*parallelism {
			if s.halted(ctx) {
				return false
			}
			n := frontier[0]
			frontier = append(frontier[1:], s.expand(n)...)
		}
	}

	if parallelism <= 1 {
		for _, n := range frontier {
			s.dfs(ctx, n)
		}
		return !s.stopped.Load()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, n := range frontier {
		g.Go(func() error {
			s.dfs(gctx, n)
			return nil
		})
	}
	_ = g.Wait()
	return !s.stopped.Load()
}

// dfs searches a subtree depth first, exploring the rounded-up branch first.
func (s *search) dfs(ctx context.Context, root node) {
	stack := []node{root}
	for len(stack) > 0 {
		if s.halted(ctx) {
			return
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		children := s.expand(n)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// expand bounds a node and returns its children, rounded-up branch first.
func (s *search) expand(n node) []node {
	s.nodes.Add(1)

	r, err := s.model.relax(n.lo, n.hi)
	if err != nil {
		return nil
	}
	best := s.bestValue()
	if r.bound <= best+pruneSlack(best) {
		return nil
	}

	j := -1
	split := 0
	if r.values != nil {
		j = mostFractional(r.values)
		if j >= 0 {
			split = min(max(int(math.Floor(r.values[j])), n.lo[j]), n.hi[j]-1)
		} else {
			counts := make([]int, len(r.values))
			for k, v := range r.values {
				counts[k] = min(max(int(math.Round(v)), n.lo[k]), n.hi[k])
			}
			if s.model.feasible(counts) {
				s.offer(counts)
				return nil
			}
		}
	}
	if j < 0 {
		j = n.widest()
		if j < 0 {
			if s.model.feasible(n.lo) {
				s.offer(n.lo)
			}
			return nil
		}
		split = (n.lo[j] + n.hi[j]) / 2
	}
	return []node{
		n.with(j, split+1, n.hi[j]),
		n.with(j, n.lo[j], split),
	}
}
