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

package prices

import (
	"context"
	"fmt"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
)

// Source produces price snapshots for a set of sites.
type Source interface {
	// Name returns a short identifier such as "static" or "http".
	Name() string

	// Snapshot returns prices over periods for the given sites. Sites the
	// source has no energy price for are left out of EnergyPrice.
	Snapshot(ctx context.Context, sites []v1alpha1.SiteConfig, periods int) (*Snapshot, error)
}

// StaticConfig holds the fixed series served by StaticSource.
type StaticConfig struct {
	HashPrice  []float64 `json:"hash_price" mapstructure:"hash-price"`
	TokenPrice []float64 `json:"token_price" mapstructure:"token-price"`
	// DefaultEnergyPrice applies to sites that carry no energy series of their own.
	DefaultEnergyPrice []float64 `json:"default_energy_price,omitempty" mapstructure:"default-energy-price"`
	PeriodHours        float64   `json:"period_hours,omitempty" mapstructure:"period-hours"`
}

// DefaultStaticConfig returns twelve hourly periods of sample market prices.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		HashPrice:          []float64{8.1, 8.4, 8.7, 8.3, 7.9, 8.2, 8.6, 8.9, 8.5, 8.0, 7.8, 8.1},
		TokenPrice:         []float64{2.5, 2.7, 2.9, 2.8, 2.6, 2.4, 2.5, 2.8, 3.0, 2.9, 2.7, 2.6},
		DefaultEnergyPrice: []float64{0.55, 0.57, 0.56, 0.54, 0.53, 0.52, 0.54, 0.56, 0.55, 0.54, 0.53, 0.52},
		PeriodHours:        1,
	}
}

// StaticSource serves configured series, extended by Forecast when the
// requested horizon is longer than the configuration.
type StaticSource struct {
	cfg StaticConfig
	now func() time.Time
}

// NewStaticSource validates cfg and returns a source.
func NewStaticSource(cfg StaticConfig) (*StaticSource, error) {
	if len(cfg.HashPrice) == 0 || len(cfg.TokenPrice) == 0 {
		return nil, fmt.Errorf("static prices need hash and token series")
	}
	if cfg.PeriodHours <= 0 {
		cfg.PeriodHours = 1
	}
	return &StaticSource{cfg: cfg, now: time.Now}, nil
}

// Name returns "static".
func (s *StaticSource) Name() string {
	return "static"
}

// Snapshot implements Source.
func (s *StaticSource) Snapshot(ctx context.Context, sites []v1alpha1.SiteConfig, periods int) (*Snapshot, error) {
	logger := ctrl.LoggerFrom(ctx)
	if periods <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d", periods)
	}

	snap := &Snapshot{
		Source:      s.Name(),
		FetchedAt:   s.now(),
		Periods:     periods,
		PeriodHours: s.cfg.PeriodHours,
		EnergyPrice: make(map[string][]float64, len(sites)),
	}
	var err error
	if snap.HashPrice, err = Forecast(s.cfg.HashPrice, periods); err != nil {
		return nil, fmt.Errorf("hash price: %w", err)
	}
	if snap.TokenPrice, err = Forecast(s.cfg.TokenPrice, periods); err != nil {
		return nil, fmt.Errorf("token price: %w", err)
	}

	for _, site := range sites {
		series := site.EnergyPrice
		if len(series) == 0 {
			series = s.cfg.DefaultEnergyPrice
		}
		if len(series) == 0 {
			logger.V(logging.DEBUG).Info("No energy price for site", "site", site.SiteID)
			continue
		}
		e, err := Forecast(series, periods)
		if err != nil {
			return nil, fmt.Errorf("energy price of site %s: %w", site.SiteID, err)
		}
		snap.EnergyPrice[site.SiteID] = e
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
