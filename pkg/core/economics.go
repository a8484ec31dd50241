package core

// Coefficients holds the per-unit horizon economics of every site and device pair.
type Coefficients struct {
	// Revenue[s][d] is the horizon revenue of one unit.
	Revenue [][]float64
	// Energy[s][d] is the horizon energy cost of one unit.
	Energy [][]float64
	// Profit[s][d] is Revenue minus Energy.
	Profit [][]float64
}

// UnitRevenue returns the horizon revenue of a single unit of device d at site s.
func (p *Problem) UnitRevenue(s, d int) float64 {
	u := p.Unit(s, d)
	var r float64
	for t := 0; t < p.Periods; t++ {
		r += u.Hashrate*at(p.HashPrice, t) + u.Tokens*at(p.TokenPrice, t)
	}
	return r
}

// UnitEnergyCost returns the horizon energy cost of a single unit of device d at site s.
func (p *Problem) UnitEnergyCost(s, d int) float64 {
	u := p.Unit(s, d)
	h := p.periodHours()
	var c float64
	for t := 0; t < p.Periods; t++ {
		c += u.Power * at(p.Sites[s].EnergyPrice, t) * h
	}
	return c
}

// UnitProfit returns revenue minus energy cost of a single unit.
func (p *Problem) UnitProfit(s, d int) float64 {
	return p.UnitRevenue(s, d) - p.UnitEnergyCost(s, d)
}

// UnitPeriodProfit returns the profit a single unit contributes in period t.
func (p *Problem) UnitPeriodProfit(s, d, t int) float64 {
	u := p.Unit(s, d)
	return u.Hashrate*at(p.HashPrice, t) + u.Tokens*at(p.TokenPrice, t) -
		u.Power*at(p.Sites[s].EnergyPrice, t)*p.periodHours()
}

// Coefficients computes the economics table for the whole problem.
func (p *Problem) Coefficients() *Coefficients {
	c := &Coefficients{
		Revenue: make([][]float64, p.NumSites()),
		Energy:  make([][]float64, p.NumSites()),
		Profit:  make([][]float64, p.NumSites()),
	}
	for s := range p.Sites {
		c.Revenue[s] = make([]float64, p.NumDevices())
		c.Energy[s] = make([]float64, p.NumDevices())
		c.Profit[s] = make([]float64, p.NumDevices())
		for d := range p.Devices {
			c.Revenue[s][d] = p.UnitRevenue(s, d)
			c.Energy[s][d] = p.UnitEnergyCost(s, d)
			c.Profit[s][d] = c.Revenue[s][d] - c.Energy[s][d]
		}
	}
	return c
}

func at(series []float64, t int) float64 {
	if t < 0 || t >= len(series) {
		return 0
	}
	return series[t]
}
