package builder

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/pkg/core"
)

// DefaultBudgetHours multiplies the mean energy price and power cap of every
// site to derive the energy budget when none is given.
const DefaultBudgetHours = 4

// Prices is the market input of FromCatalog.
type Prices struct {
	Periods     int
	PeriodHours float64
	HashPrice   []float64
	TokenPrice  []float64
	// EnergyPrice is keyed by site id.
	EnergyPrice map[string][]float64
}

// ResolveUnit returns the effective unit spec of a device at a site. Fields the
// site leaves unset come from the device catalog. A device the site does not
// configure at all is unavailable there.
func ResolveUnit(site *v1alpha1.SiteConfig, device core.DeviceType) (core.UnitSpec, error) {
	spec, err := core.LookupDevice(string(device))
	if err != nil {
		return core.UnitSpec{}, err
	}
	unit := core.UnitSpec{Hashrate: spec.Hashrate, Tokens: spec.Tokens, Power: spec.Power}
	cfg := site.Device(string(device))
	if cfg == nil {
		return unit, nil
	}
	unit.MaxMachines = ptr.Deref(cfg.MaxMachines, spec.MaxMachines)
	unit.Power = ptr.Deref(cfg.Power, unit.Power)
	unit.Hashrate = ptr.Deref(cfg.Hashrate, unit.Hashrate)
	unit.Tokens = ptr.Deref(cfg.Tokens, unit.Tokens)
	return unit, nil
}

// DefaultBudget returns the sum over sites of mean energy price times power cap times DefaultBudgetHours.
func DefaultBudget(data *v1alpha1.OptimizationData) float64 {
	var budget float64
	for _, s := range data.Sites {
		e := data.E[s]
		if len(e) == 0 {
			continue
		}
		budget += stat.Mean(e, nil) * data.PMax[s] * DefaultBudgetHours
	}
	return budget
}

// FromCatalog assembles raw optimization data from catalog entries and a price snapshot.
// Sites without a power cap, a price series, or any usable device are skipped.
// A budget of zero selects DefaultBudget.
func FromCatalog(ctx context.Context, sites []v1alpha1.SiteConfig, prices Prices, budget float64) (*v1alpha1.OptimizationData, error) {
	logger := ctrl.LoggerFrom(ctx)

	if prices.Periods <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d", prices.Periods)
	}
	devices := core.KnownDevices()
	data := &v1alpha1.OptimizationData{
		Devices: make([]string, len(devices)),
		T:       prices.Periods,
		RHash:   make(map[string]map[string]float64),
		RTok:    make(map[string]map[string]float64),
		Power:   make(map[string]map[string]float64),
		N:       make(map[string]map[string]int),
		H:       append([]float64(nil), prices.HashPrice...),
		G:       append([]float64(nil), prices.TokenPrice...),
		E:       make(map[string][]float64),
		PMax:    make(map[string]float64),
		Regions: make(map[string]string),
	}
	for i, d := range devices {
		data.Devices[i] = string(d)
	}
	if prices.PeriodHours > 0 {
		data.PeriodHours = ptr.To(prices.PeriodHours)
	}

	for i := range sites {
		site := &sites[i]
		if site.Power == nil {
			logger.Info("Skipping site without power cap", "site", site.SiteID)
			continue
		}
		series, ok := prices.EnergyPrice[site.SiteID]
		if !ok {
			logger.Info("Skipping site without energy price series", "site", site.SiteID)
			continue
		}

		rHash := make(map[string]float64, len(devices))
		rTok := make(map[string]float64, len(devices))
		power := make(map[string]float64, len(devices))
		n := make(map[string]int, len(devices))
		usable := 0
		for _, d := range devices {
			unit, err := ResolveUnit(site, d)
			if err != nil {
				return nil, fmt.Errorf("site %s: %w", site.SiteID, err)
			}
			rHash[string(d)] = unit.Hashrate
			rTok[string(d)] = unit.Tokens
			power[string(d)] = unit.Power
			n[string(d)] = unit.MaxMachines
			if unit.Usable() {
				usable++
			}
		}
		if usable == 0 {
			logger.Info("Skipping site without usable devices", "site", site.SiteID)
			continue
		}

		data.Sites = append(data.Sites, site.SiteID)
		data.RHash[site.SiteID] = rHash
		data.RTok[site.SiteID] = rTok
		data.Power[site.SiteID] = power
		data.N[site.SiteID] = n
		data.E[site.SiteID] = append([]float64(nil), series...)
		data.PMax[site.SiteID] = *site.Power
		if site.State != "" {
			data.Regions[site.SiteID] = site.State
		}
	}

	if budget > 0 {
		data.EBudget = budget
	} else {
		data.EBudget = DefaultBudget(data)
	}
	return data, nil
}
