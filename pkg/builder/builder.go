// Package builder turns raw optimization inputs into validated core.Problem instances.
package builder

import (
	"context"
	"fmt"
	"math"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
	"github.com/green-hash/fleet-optimizer/pkg/core"
)

// Build validates the raw data and produces a normalized problem.
// Every fault is collected; the returned error is a single InvalidProblem.
func Build(ctx context.Context, data *v1alpha1.OptimizationData) (*core.Problem, error) {
	logger := ctrl.LoggerFrom(ctx)

	if data == nil {
		return nil, core.NewInvalidProblem(field.ErrorList{field.Required(field.NewPath("body"), "problem body is required")})
	}

	allErrs := validate(data)
	if len(allErrs) > 0 {
		logger.V(logging.DEBUG).Info("Rejected optimization problem", "faults", len(allErrs))
		return nil, core.NewInvalidProblem(allErrs)
	}

	problem := &core.Problem{
		Devices:      createDeviceData(data.Devices),
		Periods:      data.T,
		PeriodHours:  1,
		HashPrice:    append([]float64(nil), data.H...),
		TokenPrice:   append([]float64(nil), data.G...),
		EnergyBudget: data.EBudget,
	}
	if data.PeriodHours != nil {
		problem.PeriodHours = *data.PeriodHours
	}
	problem.Sites = createSiteData(data)

	logger.V(logging.DEBUG).Info("Built optimization problem",
		"sites", problem.NumSites(),
		"devices", problem.NumDevices(),
		"periods", problem.Periods,
		"energyBudget", problem.EnergyBudget)
	return problem, nil
}

// createDeviceData converts device names to device types
func createDeviceData(names []string) []core.DeviceType {
	out := make([]core.DeviceType, len(names))
	for i, n := range names {
		out[i] = core.DeviceType(n)
	}
	return out
}

// createSiteData creates the per-site data of a validated problem
func createSiteData(data *v1alpha1.OptimizationData) []core.Site {
	sites := make([]core.Site, len(data.Sites))
	for i, id := range data.Sites {
		site := core.Site{
			ID:          id,
			Region:      data.Regions[id],
			PowerCap:    data.PMax[id],
			EnergyPrice: append([]float64(nil), data.E[id]...),
			Units:       make([]core.UnitSpec, len(data.Devices)),
		}
		for d, dev := range data.Devices {
			site.Units[d] = core.UnitSpec{
				Hashrate:    data.RHash[id][dev],
				Tokens:      data.RTok[id][dev],
				Power:       data.Power[id][dev],
				MaxMachines: data.N[id][dev],
			}
		}
		sites[i] = site
	}
	return sites
}

func validate(data *v1alpha1.OptimizationData) field.ErrorList {
	var allErrs field.ErrorList

	if data.T <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("T"), data.T, "must be positive"))
	}
	allErrs = append(allErrs, validateNames(field.NewPath("sites"), data.Sites, "site")...)
	allErrs = append(allErrs, validateNames(field.NewPath("devices"), data.Devices, "device")...)
	allErrs = append(allErrs, validateDeviceTypes(field.NewPath("devices"), data.Devices)...)

	allErrs = append(allErrs, validateSeries(field.NewPath("h"), data.H, data.T)...)
	allErrs = append(allErrs, validateSeries(field.NewPath("g"), data.G, data.T)...)

	budgetPath := field.NewPath("E_BUDGET")
	switch {
	case !finite(data.EBudget):
		allErrs = append(allErrs, field.Invalid(budgetPath, data.EBudget, "must be a finite number"))
	case data.EBudget <= 0:
		allErrs = append(allErrs, field.Invalid(budgetPath, data.EBudget, "must be positive"))
	}

	if data.PeriodHours != nil && (!finite(*data.PeriodHours) || *data.PeriodHours <= 0) {
		allErrs = append(allErrs, field.Invalid(field.NewPath("period_hours"), *data.PeriodHours, "must be a positive number"))
	}

	for _, site := range data.Sites {
		allErrs = append(allErrs, validateSite(data, site)...)
	}
	return allErrs
}

func validateNames(path *field.Path, names []string, kind string) field.ErrorList {
	var allErrs field.ErrorList
	if len(names) == 0 {
		return append(allErrs, field.Required(path, fmt.Sprintf("at least one %s is required", kind)))
	}
	seen := sets.New[string]()
	for i, n := range names {
		switch {
		case n == "":
			allErrs = append(allErrs, field.Required(path.Index(i), fmt.Sprintf("%s name must not be empty", kind)))
		case seen.Has(n):
			allErrs = append(allErrs, field.Duplicate(path.Index(i), n))
		}
		seen.Insert(n)
	}
	return allErrs
}

// validateDeviceTypes rejects names outside the device catalog.
func validateDeviceTypes(path *field.Path, names []string) field.ErrorList {
	var allErrs field.ErrorList
	for i, n := range names {
		if n != "" && !core.IsKnownDevice(n) {
			allErrs = append(allErrs, field.NotSupported(path.Index(i), n, knownDeviceNames()))
		}
	}
	return allErrs
}

func knownDeviceNames() []string {
	known := core.KnownDevices()
	out := make([]string, len(known))
	for i, d := range known {
		out[i] = string(d)
	}
	return out
}

// validateSeries checks a price series: length T, finite, non-negative.
func validateSeries(path *field.Path, series []float64, periods int) field.ErrorList {
	var allErrs field.ErrorList
	if periods > 0 && len(series) != periods {
		allErrs = append(allErrs, field.Invalid(path, len(series), fmt.Sprintf("series length must equal T (%d)", periods)))
	}
	for t, v := range series {
		switch {
		case !finite(v):
			allErrs = append(allErrs, field.Invalid(path.Index(t), v, "price must be a finite number"))
		case v < 0:
			allErrs = append(allErrs, field.Invalid(path.Index(t), v, "price must be non-negative"))
		}
	}
	return allErrs
}

type namedTable struct {
	name string
	rows map[string]map[string]float64
}

func validateSite(data *v1alpha1.OptimizationData, site string) field.ErrorList {
	var allErrs field.ErrorList

	if e, ok := data.E[site]; !ok {
		allErrs = append(allErrs, field.Required(field.NewPath("e").Key(site), "energy price series is required"))
	} else {
		allErrs = append(allErrs, validateSeries(field.NewPath("e").Key(site), e, data.T)...)
	}

	capPath := field.NewPath("P_MAX").Key(site)
	if pmax, ok := data.PMax[site]; !ok {
		allErrs = append(allErrs, field.Required(capPath, "power cap is required"))
	} else if !finite(pmax) || pmax < 0 {
		allErrs = append(allErrs, field.Invalid(capPath, pmax, "power cap must be a non-negative number"))
	}

	for _, tbl := range []namedTable{{"r_hash", data.RHash}, {"r_tok", data.RTok}, {"power", data.Power}} {
		if _, ok := tbl.rows[site]; !ok {
			allErrs = append(allErrs, field.Required(field.NewPath(tbl.name).Key(site), "per-site table is required"))
		}
	}
	if _, ok := data.N[site]; !ok {
		allErrs = append(allErrs, field.Required(field.NewPath("N").Key(site), "per-site table is required"))
		return allErrs
	}

	usable := 0
	for _, dev := range data.Devices {
		n, ok := data.N[site][dev]
		nPath := field.NewPath("N").Key(site).Key(dev)
		switch {
		case !ok:
			allErrs = append(allErrs, field.Required(nPath, "max machines must be defined for every site and device"))
		case n < 0:
			allErrs = append(allErrs, field.Invalid(nPath, n, "max machines must be non-negative"))
		case n > 0:
			usable++
		}

		powerPath := field.NewPath("power").Key(site).Key(dev)
		if p, ok := data.Power[site][dev]; !ok {
			if data.Power[site] != nil {
				allErrs = append(allErrs, field.Required(powerPath, "unit power is required"))
			}
		} else if !finite(p) || p < 0 {
			allErrs = append(allErrs, field.Invalid(powerPath, p, "unit power must be a non-negative number"))
		}

		for _, tbl := range []namedTable{{"r_hash", data.RHash}, {"r_tok", data.RTok}} {
			if v, ok := tbl.rows[site][dev]; ok && (!finite(v) || v < 0) {
				allErrs = append(allErrs, field.Invalid(field.NewPath(tbl.name).Key(site).Key(dev), v, "yield must be a non-negative number"))
			}
		}
	}
	if usable == 0 && len(data.Devices) > 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("N").Key(site), usable, "site has no usable device types"))
	}
	return allErrs
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
