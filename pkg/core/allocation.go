package core

import (
	"fmt"
)

// feasibilityTolerance absorbs float rounding when checking sums against caps.
const feasibilityTolerance = 1e-6

// Allocation holds integer device counts indexed by site then device.
type Allocation [][]int

// NewAllocation returns an all-zero allocation shaped for the problem.
func NewAllocation(p *Problem) Allocation {
	a := make(Allocation, p.NumSites())
	for s := range a {
		a[s] = make([]int, p.NumDevices())
	}
	return a
}

// Count returns the count of device d at site s.
func (a Allocation) Count(s, d int) int {
	return a[s][d]
}

// Set sets the count of device d at site s.
func (a Allocation) Set(s, d, n int) {
	a[s][d] = n
}

// Clone returns a deep copy.
func (a Allocation) Clone() Allocation {
	out := make(Allocation, len(a))
	for s := range a {
		out[s] = append([]int(nil), a[s]...)
	}
	return out
}

// IsZero reports whether no device is allocated anywhere.
func (a Allocation) IsZero() bool {
	for s := range a {
		for _, n := range a[s] {
			if n != 0 {
				return false
			}
		}
	}
	return true
}

// TotalDevices returns the sum of all counts.
func (a Allocation) TotalDevices() int {
	var n int
	for s := range a {
		for _, c := range a[s] {
			n += c
		}
	}
	return n
}

// PowerUsed returns the simultaneous draw at site s in kW.
func (a Allocation) PowerUsed(p *Problem, s int) float64 {
	var w float64
	for d, n := range a[s] {
		w += float64(n) * p.Unit(s, d).Power
	}
	return w
}

// EnergyCost returns the horizon energy spend over all sites.
func (a Allocation) EnergyCost(p *Problem) float64 {
	var c float64
	for s := range a {
		for d, n := range a[s] {
			if n != 0 {
				c += float64(n) * p.UnitEnergyCost(s, d)
			}
		}
	}
	return c
}

// Profit returns the horizon profit of the allocation.
func (a Allocation) Profit(p *Problem) float64 {
	var v float64
	for s := range a {
		for d, n := range a[s] {
			if n != 0 {
				v += float64(n) * p.UnitProfit(s, d)
			}
		}
	}
	return v
}

// Check verifies the allocation against every constraint family of the problem.
func (a Allocation) Check(p *Problem) error {
	if len(a) != p.NumSites() {
		return fmt.Errorf("allocation has %d sites, problem has %d", len(a), p.NumSites())
	}
	for s := range a {
		if len(a[s]) != p.NumDevices() {
			return fmt.Errorf("site %s: allocation has %d devices, problem has %d",
				p.Sites[s].ID, len(a[s]), p.NumDevices())
		}
		for d, n := range a[s] {
			if n < 0 {
				return fmt.Errorf("site %s device %s: negative count %d", p.Sites[s].ID, p.Devices[d], n)
			}
			if maxN := p.Unit(s, d).MaxMachines; n > maxN {
				return fmt.Errorf("site %s device %s: count %d exceeds max machines %d",
					p.Sites[s].ID, p.Devices[d], n, maxN)
			}
		}
		if used := a.PowerUsed(p, s); used > p.Sites[s].PowerCap+tolerance(p.Sites[s].PowerCap) {
			return fmt.Errorf("site %s: power %.3f kW exceeds cap %.3f kW", p.Sites[s].ID, used, p.Sites[s].PowerCap)
		}
	}
	if cost := a.EnergyCost(p); cost > p.EnergyBudget+tolerance(p.EnergyBudget) {
		return fmt.Errorf("energy cost %.4f exceeds budget %.4f", cost, p.EnergyBudget)
	}
	return nil
}

func tolerance(limit float64) float64 {
	if limit < 1 {
		return feasibilityTolerance
	}
	return feasibilityTolerance * limit
}
