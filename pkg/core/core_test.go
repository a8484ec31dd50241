package core

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// singleSiteProblem is the 100 kW / 10 kW per unit fixture.
func singleSiteProblem() *Problem {
	return &Problem{
		Devices:      []DeviceType{DeviceHydro},
		Periods:      1,
		PeriodHours:  1,
		HashPrice:    []float64{1},
		TokenPrice:   []float64{0},
		EnergyBudget: 1000,
		Sites: []Site{{
			ID:          "TX",
			PowerCap:    100,
			EnergyPrice: []float64{0.05},
			Units:       []UnitSpec{{Hashrate: 1, Power: 10, MaxMachines: 20}},
		}},
	}
}

func twoSiteProblem() *Problem {
	return &Problem{
		Devices:      []DeviceType{DeviceAir, DeviceGPU},
		Periods:      2,
		PeriodHours:  2,
		HashPrice:    []float64{1, 2},
		TokenPrice:   []float64{3, 1},
		EnergyBudget: 500,
		Sites: []Site{
			{
				ID: "CA", PowerCap: 50, EnergyPrice: []float64{0.1, 0.2},
				Units: []UnitSpec{{Hashrate: 10, Power: 5, MaxMachines: 4}, {Tokens: 2, Power: 10, MaxMachines: 2}},
			},
			{
				ID: "TX", PowerCap: 30, EnergyPrice: []float64{0.5, 0.5},
				Units: []UnitSpec{{Hashrate: 10, Power: 5, MaxMachines: 0}, {Tokens: 2, Power: 10, MaxMachines: 3}},
			},
		},
	}
}

func TestUnitEconomics(t *testing.T) {
	p := twoSiteProblem()

	tests := []struct {
		name          string
		site, device  int
		wantRevenue   float64
		wantEnergy    float64
		wantProfit    float64
		wantPeriodOne float64
	}{
		{
			name: "Test case 1: mining unit revenue follows hash price",
			site: 0, device: 0,
			wantRevenue: 10*1 + 10*2,
			wantEnergy:  5*0.1*2 + 5*0.2*2,
			wantProfit:  30 - 3,
			// period 1: 10*2 - 5*0.2*2
			wantPeriodOne: 18,
		},
		{
			name: "Test case 2: inference unit revenue follows token price",
			site: 1, device: 1,
			wantRevenue:   2*3 + 2*1,
			wantEnergy:    10*0.5*2 + 10*0.5*2,
			wantProfit:    8 - 20,
			wantPeriodOne: 2 - 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantRevenue, p.UnitRevenue(tt.site, tt.device), 1e-9)
			assert.InDelta(t, tt.wantEnergy, p.UnitEnergyCost(tt.site, tt.device), 1e-9)
			assert.InDelta(t, tt.wantProfit, p.UnitProfit(tt.site, tt.device), 1e-9)
			assert.InDelta(t, tt.wantPeriodOne, p.UnitPeriodProfit(tt.site, tt.device, 1), 1e-9)
		})
	}

	c := p.Coefficients()
	require.Len(t, c.Profit, 2)
	assert.InDelta(t, 27.0, c.Profit[0][0], 1e-9)
	assert.InDelta(t, -12.0, c.Profit[1][1], 1e-9)
}

func TestPeriodHoursDefaultsToOne(t *testing.T) {
	p := singleSiteProblem()
	p.PeriodHours = 0
	assert.InDelta(t, 0.5, p.UnitEnergyCost(0, 0), 1e-12)
}

func TestAllocationCheck(t *testing.T) {
	p := singleSiteProblem()

	tests := []struct {
		name    string
		count   int
		budget  float64
		wantErr string
	}{
		{name: "Test case 1: power bound allocation is feasible", count: 10, budget: 1000},
		{name: "Test case 2: zero allocation is feasible with zero budget", count: 0, budget: 0},
		{name: "Test case 3: exceeding power cap", count: 11, budget: 1000, wantErr: "exceeds cap"},
		{name: "Test case 4: exceeding budget", count: 10, budget: 4, wantErr: "exceeds budget"},
		{name: "Test case 5: negative count", count: -1, budget: 1000, wantErr: "negative count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.EnergyBudget = tt.budget
			a := NewAllocation(p)
			a.Set(0, 0, tt.count)
			err := a.Check(p)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAllocationMachineCap(t *testing.T) {
	p := singleSiteProblem()
	p.Sites[0].PowerCap = 1000
	a := NewAllocation(p)
	a.Set(0, 0, 21)
	err := a.Check(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max machines")
}

func TestAllocationAggregates(t *testing.T) {
	p := singleSiteProblem()
	a := NewAllocation(p)
	assert.True(t, a.IsZero())

	a.Set(0, 0, 10)
	assert.False(t, a.IsZero())
	assert.Equal(t, 10, a.TotalDevices())
	assert.InDelta(t, 100.0, a.PowerUsed(p, 0), 1e-9)
	assert.InDelta(t, 5.0, a.EnergyCost(p), 1e-9)
	assert.InDelta(t, 5.0, a.Profit(p), 1e-9)

	b := a.Clone()
	b.Set(0, 0, 3)
	assert.Equal(t, 10, a.Count(0, 0), "clone must not alias")
}

func TestProblemLookups(t *testing.T) {
	p := twoSiteProblem()
	assert.Equal(t, 1, p.SiteIndex("TX"))
	assert.Equal(t, -1, p.SiteIndex("OH"))
	assert.Equal(t, 1, p.DeviceIndex("gpu"))
	assert.Equal(t, -1, p.DeviceIndex("asic"))
}

func TestProblemErrors(t *testing.T) {
	errs := field.ErrorList{
		field.Invalid(field.NewPath("E_BUDGET"), 0.0, "must be positive"),
		field.Required(field.NewPath("sites"), "at least one site is required"),
	}
	err := NewInvalidProblem(errs)
	assert.True(t, errors.Is(err, ErrInvalidProblem))
	assert.False(t, errors.Is(err, ErrInfeasibleProblem))
	assert.Contains(t, err.Error(), "E_BUDGET")
	assert.Contains(t, err.Error(), "sites")

	infeasible := NewInfeasibleProblem("site %s has negative power cap", "CA")
	assert.True(t, errors.Is(infeasible, ErrInfeasibleProblem))
	assert.True(t, strings.HasSuffix(infeasible.Error(), "site CA has negative power cap"))

	internal := NewInternalSolverError("boom")
	var pe *ProblemError
	require.True(t, errors.As(internal, &pe))
	assert.Equal(t, ErrInternalSolver, pe.Kind)
}

func TestCatalog(t *testing.T) {
	spec, err := LookupDevice(" Hydro ")
	require.NoError(t, err)
	assert.Equal(t, KindMining, spec.Kind)
	assert.Equal(t, 5000.0, spec.Hashrate)
	assert.Equal(t, 5000.0, spec.Power)

	gpu, err := LookupDevice("gpu")
	require.NoError(t, err)
	assert.Equal(t, KindInference, gpu.Kind)
	assert.Zero(t, gpu.Hashrate)

	_, err = LookupDevice("fpga")
	assert.Error(t, err)

	known := KnownDevices()
	assert.Len(t, known, 5)
	known[0] = "mutated"
	assert.Equal(t, DeviceAir, KnownDevices()[0])

	assert.True(t, IsKnownDevice("immersion"))
	assert.False(t, IsKnownDevice("Immersion"))
}

func TestAtOutOfRange(t *testing.T) {
	assert.Equal(t, 0.0, at(nil, 0))
	assert.Equal(t, 0.0, at([]float64{1}, 3))
	assert.False(t, math.IsNaN(at([]float64{1}, -1)))
}
