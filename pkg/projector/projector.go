// Package projector turns solver allocations into the result list and aggregates served to clients.
package projector

import (
	"github.com/shopspring/decimal"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/pkg/core"
)

// Report is the projection of an allocation onto a problem.
type Report struct {
	// Results lists every pair with a positive count, in site then device order.
	Results             []v1alpha1.OptimizationResult
	TotalProfit         float64
	TotalRevenue        float64
	TotalEnergyCost     float64
	ActiveDeviceCount   int
	SitesOptimizedCount int
	// PowerUsed is the draw per site in kW.
	PowerUsed map[string]float64
	// PeriodProfit is the profit contribution of each period.
	PeriodProfit []float64
	// Allocation maps site to device to count, zero counts included.
	Allocation map[string]map[string]int
}

// Project computes the report. It is a pure function of its inputs.
// Money amounts are rounded to cents after summation.
func Project(alloc core.Allocation, p *core.Problem) *Report {
	r := &Report{
		Results:      []v1alpha1.OptimizationResult{},
		PowerUsed:    make(map[string]float64, p.NumSites()),
		PeriodProfit: make([]float64, p.Periods),
		Allocation:   make(map[string]map[string]int, p.NumSites()),
	}

	profit, revenue, energy := decimal.Zero, decimal.Zero, decimal.Zero
	periods := make([]decimal.Decimal, p.Periods)
	for t := range periods {
		periods[t] = decimal.Zero
	}

	for s, site := range p.Sites {
		row := make(map[string]int, p.NumDevices())
		active := false
		for d, dev := range p.Devices {
			n := alloc.Count(s, d)
			row[string(dev)] = n
			if n <= 0 {
				continue
			}
			active = true
			count := decimal.NewFromInt(int64(n))

			pairProfit := count.Mul(decimal.NewFromFloat(p.UnitProfit(s, d)))
			profit = profit.Add(pairProfit)
			revenue = revenue.Add(count.Mul(decimal.NewFromFloat(p.UnitRevenue(s, d))))
			energy = energy.Add(count.Mul(decimal.NewFromFloat(p.UnitEnergyCost(s, d))))
			for t := range periods {
				periods[t] = periods[t].Add(count.Mul(decimal.NewFromFloat(p.UnitPeriodProfit(s, d, t))))
			}

			r.Results = append(r.Results, v1alpha1.OptimizationResult{
				Site:   site.ID,
				Device: string(dev),
				Count:  n,
				Profit: cents(pairProfit),
			})
			r.ActiveDeviceCount += n
		}
		if active {
			r.SitesOptimizedCount++
		}
		r.Allocation[site.ID] = row
		r.PowerUsed[site.ID] = alloc.PowerUsed(p, s)
	}

	r.TotalProfit = cents(profit)
	r.TotalRevenue = cents(revenue)
	r.TotalEnergyCost = cents(energy)
	for t := range periods {
		r.PeriodProfit[t] = cents(periods[t])
	}
	return r
}

// ZeroReport projects the empty allocation.
func ZeroReport(p *core.Problem) *Report {
	return Project(core.NewAllocation(p), p)
}

func cents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
