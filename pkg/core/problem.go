package core

// UnitSpec describes one device type as deployed at one site.
type UnitSpec struct {
	// Hashrate is the hash yield per unit per period.
	Hashrate float64
	// Tokens is the token yield per unit per period.
	Tokens float64
	// Power is the draw per unit in kW.
	Power float64
	// MaxMachines caps the count at this site; 0 means unavailable.
	MaxMachines int
}

// Usable reports whether at least one unit could be placed.
func (u UnitSpec) Usable() bool {
	return u.MaxMachines > 0
}

// Site is a location with a power cap and an energy price series.
type Site struct {
	ID     string
	Region string
	// PowerCap is the maximum simultaneous draw in kW.
	PowerCap float64
	// EnergyPrice is $/kWh for each period.
	EnergyPrice []float64
	// Units is indexed by device, parallel to Problem.Devices.
	Units []UnitSpec
}

// Problem is a validated optimization instance.
//
// Instances are built by pkg/builder and treated as read-only afterwards;
// solvers share a single Problem across goroutines.
type Problem struct {
	Sites   []Site
	Devices []DeviceType
	// Periods is the horizon length T.
	Periods int
	// PeriodHours is the length of a single period.
	PeriodHours float64
	// HashPrice is $ per hash unit for each period.
	HashPrice []float64
	// TokenPrice is $ per token unit for each period.
	TokenPrice []float64
	// EnergyBudget caps total energy spend over the horizon.
	EnergyBudget float64
}

// NumSites returns the number of sites.
func (p *Problem) NumSites() int {
	return len(p.Sites)
}

// NumDevices returns the number of device types.
func (p *Problem) NumDevices() int {
	return len(p.Devices)
}

// Unit returns the spec of device d at site s.
func (p *Problem) Unit(s, d int) UnitSpec {
	return p.Sites[s].Units[d]
}

// SiteIndex returns the index of the site with the given id, or -1.
func (p *Problem) SiteIndex(id string) int {
	for i := range p.Sites {
		if p.Sites[i].ID == id {
			return i
		}
	}
	return -1
}

// DeviceIndex returns the index of the named device type, or -1.
func (p *Problem) DeviceIndex(name string) int {
	for i, d := range p.Devices {
		if string(d) == name {
			return i
		}
	}
	return -1
}

// periodHours returns the effective period length.
func (p *Problem) periodHours() float64 {
	if p.PeriodHours <= 0 {
		return 1
	}
	return p.PeriodHours
}
