package solver

import (
	"math"

	"github.com/green-hash/fleet-optimizer/pkg/core"
)

// integralTolerance decides whether an LP value is integral.
const integralTolerance = 1e-6

// pair is one decision variable x[s,d] with its horizon economics.
type pair struct {
	site, device int
	profit       float64
	energy       float64
	power        float64
	// hi is the largest count any single constraint allows on its own.
	hi int
}

// model is the solver view of a problem: the free variables and the constraint limits.
type model struct {
	problem *core.Problem
	// vars holds only pairs with positive profit and a positive upper bound.
	vars     []pair
	siteCaps []float64
	budget   float64
}

// newModel prepares the solver data of a problem
func newModel(p *core.Problem) *model {
	m := &model{
		problem:  p,
		siteCaps: make([]float64, p.NumSites()),
		budget:   p.EnergyBudget,
	}
	coeff := p.Coefficients()
	for s := range p.Sites {
		m.siteCaps[s] = p.Sites[s].PowerCap
		for d := range p.Devices {
			v := pair{
				site:   s,
				device: d,
				profit: coeff.Profit[s][d],
				energy: coeff.Energy[s][d],
				power:  p.Unit(s, d).Power,
				hi:     p.Unit(s, d).MaxMachines,
			}
			if v.profit <= 0 {
				continue
			}
			v.hi = min(v.hi, maxUnits(m.siteCaps[s], v.power))
			v.hi = min(v.hi, maxUnits(m.budget, v.energy))
			if v.hi <= 0 {
				continue
			}
			m.vars = append(m.vars, v)
		}
	}
	return m
}

// maxUnits returns how many units of the given weight fit in the limit.
func maxUnits(limit, weight float64) int {
	if weight <= 0 {
		return math.MaxInt32
	}
	if limit <= 0 {
		return 0
	}
	n := math.Floor(limit/weight + integralTolerance)
	for n > 0 && n*weight > limit+feasibilitySlack(limit) {
		n--
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

func feasibilitySlack(limit float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(limit))
}

// allocation converts variable counts to a core allocation.
func (m *model) allocation(counts []int) core.Allocation {
	a := core.NewAllocation(m.problem)
	for j, v := range m.vars {
		a.Set(v.site, v.device, counts[j])
	}
	return a
}

// objective returns the profit of variable counts.
func (m *model) objective(counts []int) float64 {
	var obj float64
	for j, v := range m.vars {
		obj += float64(counts[j]) * v.profit
	}
	return obj
}

// feasible checks variable counts against the site caps and the budget.
func (m *model) feasible(counts []int) bool {
	used := make([]float64, len(m.siteCaps))
	var spend float64
	for j, v := range m.vars {
		if counts[j] < 0 || counts[j] > v.hi {
			return false
		}
		used[v.site] += float64(counts[j]) * v.power
		spend += float64(counts[j]) * v.energy
	}
	for s, u := range used {
		if u > m.siteCaps[s]+feasibilitySlack(m.siteCaps[s]) {
			return false
		}
	}
	return spend <= m.budget+feasibilitySlack(m.budget)
}
