// Package core provides the fundamental data structures of the fleet allocation optimizer.
//
// This package contains the domain model shared by the builder, the solvers and the
// result projector:
//
//   - DeviceType: hardware classes (ASIC, GPU, air/hydro/immersion miners) and their default specs
//   - Site: a location with a power cap, per-device machine caps and an energy price series
//   - Problem: a validated, normalized optimization instance over T periods
//   - Allocation: integer device counts per site and device
//   - Errors: the InvalidProblem / InfeasibleProblem / Timeout / InternalSolverError taxonomy
//
// Example usage:
//
//	p := &core.Problem{
//	    Devices:      []core.DeviceType{core.DeviceHydro},
//	    Periods:      1,
//	    PeriodHours:  1,
//	    HashPrice:    []float64{1},
//	    TokenPrice:   []float64{0},
//	    EnergyBudget: 1000,
//	    Sites: []core.Site{{
//	        ID:          "TX",
//	        PowerCap:    100,
//	        EnergyPrice: []float64{0.05},
//	        Units:       []core.UnitSpec{{Hashrate: 1, Power: 10, MaxMachines: 20}},
//	    }},
//	}
//	alloc := core.NewAllocation(p)
//	alloc.Set(0, 0, 10)
//	if err := alloc.Check(p); err != nil {
//	    // constraint violated
//	}
//
// The core package is designed to be:
//   - Independent of transport and configuration concerns (pure domain logic)
//   - Deterministic: all iteration is by site and device index
package core
