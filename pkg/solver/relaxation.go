package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// simplexTolerance is the reduced-cost tolerance handed to the simplex.
const simplexTolerance = 1e-10

var errNodeInfeasible = errors.New("node bounds violate a constraint")

// relaxation is the LP relaxation of a branch-and-bound node.
type relaxation struct {
	// bound is an upper bound on the node's integer objective.
	bound float64
	// values holds the LP optimum per variable, nil when the LP was not solved.
	values []float64
}

// relax bounds the node defined by lo and hi.
//
// The LP is put in gonum's standard form by shifting x = lo + y, so every row
// has a non-negative right-hand side and the slack columns form a feasible
// starting basis. Rows are the site caps that still have free variables, the
// budget and one upper-bound row per free variable. When the simplex fails the
// node falls back to the trivial bound Σ profit·hi.
func (m *model) relax(lo, hi []int) (*relaxation, error) {
	base := 0.0
	capLeft := append([]float64(nil), m.siteCaps...)
	budgetLeft := m.budget
	var free []int
	for j, v := range m.vars {
		base += float64(lo[j]) * v.profit
		capLeft[v.site] -= float64(lo[j]) * v.power
		budgetLeft -= float64(lo[j]) * v.energy
		if hi[j] > lo[j] {
			free = append(free, j)
		}
	}
	for s := range capLeft {
		if capLeft[s] < -feasibilitySlack(m.siteCaps[s]) {
			return nil, errNodeInfeasible
		}
		capLeft[s] = math.Max(capLeft[s], 0)
	}
	if budgetLeft < -feasibilitySlack(m.budget) {
		return nil, errNodeInfeasible
	}
	budgetLeft = math.Max(budgetLeft, 0)

	if len(free) == 0 {
		values := make([]float64, len(m.vars))
		for j := range values {
			values[j] = float64(lo[j])
		}
		return &relaxation{bound: base, values: values}, nil
	}

	values, extra, err := m.solveLP(free, lo, hi, capLeft, budgetLeft)
	if err != nil {
		trivial := base
		for _, j := range free {
			trivial += float64(hi[j]-lo[j]) * m.vars[j].profit
		}
		return &relaxation{bound: trivial}, nil
	}
	return &relaxation{bound: base + extra, values: values}, nil
}

// solveLP maximizes the profit of the free variables and returns the full value vector
// (lo plus the LP shift) together with the objective gained over lo.
func (m *model) solveLP(free, lo, hi []int, capLeft []float64, budgetLeft float64) (values []float64, extra float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex panicked: %v", r)
		}
	}()

	// site rows, only for sites with free variables
	siteRow := make(map[int]int)
	var rhs []float64
	for _, j := range free {
		s := m.vars[j].site
		if _, ok := siteRow[s]; !ok {
			siteRow[s] = len(rhs)
			rhs = append(rhs, capLeft[s])
		}
	}
	budgetRow := len(rhs)
	rhs = append(rhs, budgetLeft)
	boundRow0 := len(rhs)
	for _, j := range free {
		rhs = append(rhs, float64(hi[j]-lo[j]))
	}

	rows := len(rhs)
	cols := len(free) + rows
	A := mat.NewDense(rows, cols, nil)
	c := make([]float64, cols)
	for k, j := range free {
		v := m.vars[j]
		A.Set(siteRow[v.site], k, v.power)
		A.Set(budgetRow, k, v.energy)
		A.Set(boundRow0+k, k, 1)
		c[k] = -v.profit
	}
	basis := make([]int, rows)
	for r := 0; r < rows; r++ {
		A.Set(r, len(free)+r, 1)
		basis[r] = len(free) + r
	}

	optF, optX, err := lp.Simplex(c, A, rhs, simplexTolerance, basis)
	if err != nil {
		return nil, 0, err
	}
	if math.IsNaN(optF) || math.IsInf(optF, 0) {
		return nil, 0, fmt.Errorf("simplex returned non-finite objective %v", optF)
	}

	values = make([]float64, len(m.vars))
	for j := range values {
		values[j] = float64(lo[j])
	}
	for k, j := range free {
		values[j] += optX[k]
	}
	return values, -optF, nil
}

// mostFractional returns the variable whose LP value is farthest from an integer, or -1.
func mostFractional(values []float64) int {
	best, bestDist := -1, integralTolerance
	for j, v := range values {
		frac := v - math.Floor(v)
		dist := math.Min(frac, 1-frac)
		if dist > bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}
