// Package testutil provides shared optimization fixtures for tests.
package testutil

import (
	"k8s.io/utils/ptr"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
)

// ThreeSiteData returns the CA/TX/OH twelve-period sample problem.
func ThreeSiteData() *v1alpha1.OptimizationData {
	return &v1alpha1.OptimizationData{
		Sites:   []string{"CA", "TX", "OH"},
		Devices: []string{"air", "hydro", "immersion", "gpu", "asic"},
		T:       12,
		H:       []float64{8.1, 8.4, 8.7, 8.3, 7.9, 8.2, 8.6, 8.9, 8.5, 8.0, 7.8, 8.1},
		G:       []float64{2.5, 2.7, 2.9, 2.8, 2.6, 2.4, 2.5, 2.8, 3.0, 2.9, 2.7, 2.6},
		E: map[string][]float64{
			"CA": {0.60, 0.62, 0.58, 0.55, 0.57, 0.59, 0.61, 0.63, 0.60, 0.58, 0.56, 0.57},
			"TX": {0.50, 0.52, 0.49, 0.48, 0.47, 0.46, 0.48, 0.50, 0.51, 0.49, 0.48, 0.47},
			"OH": {0.55, 0.57, 0.56, 0.54, 0.53, 0.52, 0.54, 0.56, 0.55, 0.54, 0.53, 0.52},
		},
		RHash: map[string]map[string]float64{
			"CA": {"air": 1000, "hydro": 5000, "immersion": 10000, "gpu": 0, "asic": 0},
			"TX": {"air": 800, "hydro": 4500, "immersion": 9000, "gpu": 0, "asic": 0},
			"OH": {"air": 1200, "hydro": 5200, "immersion": 11000, "gpu": 0, "asic": 0},
		},
		RTok: map[string]map[string]float64{
			"CA": {"air": 0, "hydro": 0, "immersion": 0, "gpu": 100, "asic": 500},
			"TX": {"air": 0, "hydro": 0, "immersion": 0, "gpu": 90, "asic": 400},
			"OH": {"air": 0, "hydro": 0, "immersion": 0, "gpu": 110, "asic": 600},
		},
		Power: map[string]map[string]float64{
			"CA": {"air": 3500, "hydro": 5000, "immersion": 10000, "gpu": 500, "asic": 15000},
			"TX": {"air": 3000, "hydro": 4800, "immersion": 9500, "gpu": 450, "asic": 15000},
			"OH": {"air": 3600, "hydro": 5200, "immersion": 10500, "gpu": 550, "asic": 15000},
		},
		N: map[string]map[string]int{
			"CA": {"air": 10, "hydro": 5, "immersion": 2, "gpu": 30, "asic": 5},
			"TX": {"air": 8, "hydro": 4, "immersion": 2, "gpu": 25, "asic": 4},
			"OH": {"air": 12, "hydro": 6, "immersion": 3, "gpu": 35, "asic": 6},
		},
		PMax:    map[string]float64{"CA": 80000, "TX": 70000, "OH": 75000},
		EBudget: 0.60*80000*4 + 0.50*70000*4 + 0.55*75000*4,
	}
}

// SingleSiteData returns the one-site, one-device problem whose optimum is
// power bound at ten units.
func SingleSiteData() *v1alpha1.OptimizationData {
	return &v1alpha1.OptimizationData{
		Sites:       []string{"TX"},
		Devices:     []string{"hydro"},
		T:           1,
		RHash:       map[string]map[string]float64{"TX": {"hydro": 1}},
		RTok:        map[string]map[string]float64{"TX": {"hydro": 0}},
		Power:       map[string]map[string]float64{"TX": {"hydro": 10}},
		N:           map[string]map[string]int{"TX": {"hydro": 20}},
		H:           []float64{1},
		G:           []float64{0},
		E:           map[string][]float64{"TX": {0.05}},
		PMax:        map[string]float64{"TX": 100},
		EBudget:     1000,
		PeriodHours: ptr.To(1.0),
	}
}
