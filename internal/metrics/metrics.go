/*
Copyright 2025 The Green Hash Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "greenhash"

// Registry is dedicated to the service so tests and embedders do not collide
// with the global default registry.
var Registry = prometheus.NewRegistry()

var (
	OptimizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizations_total",
			Help:      "Optimization runs by solver and outcome status.",
		},
		[]string{"solver", "status"},
	)
	OptimizationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimization_duration_seconds",
			Help:      "Wall time spent in the solver.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"solver"},
	)
	OptimizationProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "optimization_profit_dollars",
			Help:      "Projected profit of the last successful optimization.",
		},
	)
	AllocatedDevices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "allocated_devices",
			Help:      "Device counts of the last successful optimization.",
		},
		[]string{"site", "device"},
	)
	BranchAndBoundNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bnb_nodes_total",
			Help:      "Branch and bound nodes explored by the exact solver.",
		},
	)
	PriceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_snapshot_fetch_total",
			Help:      "Price snapshot fetches by source and result.",
		},
		[]string{"source", "result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		OptimizationsTotal,
		OptimizationDuration,
		OptimizationProfit,
		AllocatedDevices,
		BranchAndBoundNodes,
		PriceFetches,
	)
}

// ObserveOptimization records one finished solver run.
func ObserveOptimization(solver, status string, elapsed time.Duration, nodes int64) {
	OptimizationsTotal.WithLabelValues(solver, status).Inc()
	OptimizationDuration.WithLabelValues(solver).Observe(elapsed.Seconds())
	if nodes > 0 {
		BranchAndBoundNodes.Add(float64(nodes))
	}
}

// allocationMu serializes SetAllocation so concurrent runs never mix their series.
var allocationMu sync.Mutex

// SetAllocation replaces the allocation gauges with the given counts.
func SetAllocation(profit float64, alloc map[string]map[string]int) {
	allocationMu.Lock()
	defer allocationMu.Unlock()

	OptimizationProfit.Set(profit)
	AllocatedDevices.Reset()
	for site, devices := range alloc {
		for device, n := range devices {
			AllocatedDevices.WithLabelValues(site, device).Set(float64(n))
		}
	}
}

// ObservePriceFetch counts a snapshot fetch as success or error.
func ObservePriceFetch(source string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	PriceFetches.WithLabelValues(source, result).Inc()
}
