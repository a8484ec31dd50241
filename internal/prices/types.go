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

// Package prices provides the market price snapshots optimization problems are built from.
package prices

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/green-hash/fleet-optimizer/pkg/builder"
)

// DataPoint is a single observation of a price series.
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is a price time series in chronological order.
// It is not safe for concurrent mutation.
type Series struct {
	Name   string
	Points []DataPoint
}

// NewSeries creates an empty series.
func NewSeries(name string) *Series {
	return &Series{Name: name, Points: make([]DataPoint, 0)}
}

// AddPoint appends an observation.
func (s *Series) AddPoint(ts time.Time, v float64) {
	s.Points = append(s.Points, DataPoint{Timestamp: ts, Value: v})
}

// Latest returns the most recent point, or nil if the series is empty.
func (s *Series) Latest() *DataPoint {
	if len(s.Points) == 0 {
		return nil
	}
	return &s.Points[len(s.Points)-1]
}

// Resample returns one value per step starting at start, carrying the last
// observation forward. Steps before the first observation take its value.
func (s *Series) Resample(start time.Time, step time.Duration, periods int) []float64 {
	if len(s.Points) == 0 || periods <= 0 {
		return nil
	}
	pts := append([]DataPoint(nil), s.Points...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })

	out := make([]float64, periods)
	k := 0
	for t := 0; t < periods; t++ {
		at := start.Add(time.Duration(t) * step)
		for k+1 < len(pts) && !pts[k+1].Timestamp.After(at) {
			k++
		}
		out[t] = pts[k].Value
	}
	return out
}

// Snapshot is a consistent set of price series over one horizon.
type Snapshot struct {
	// Source names the producer of the snapshot.
	Source      string
	FetchedAt   time.Time
	Periods     int
	PeriodHours float64
	HashPrice   []float64
	TokenPrice  []float64
	// EnergyPrice is keyed by site id. Sites without a series are absent.
	EnergyPrice map[string][]float64
}

// Validate checks every series has exactly Periods non-negative values.
func (s *Snapshot) Validate() error {
	if s.Periods <= 0 {
		return fmt.Errorf("snapshot periods must be positive, got %d", s.Periods)
	}
	if err := checkSeries("hash price", s.HashPrice, s.Periods); err != nil {
		return err
	}
	if err := checkSeries("token price", s.TokenPrice, s.Periods); err != nil {
		return err
	}
	for _, site := range s.Sites() {
		if err := checkSeries("energy price of site "+site, s.EnergyPrice[site], s.Periods); err != nil {
			return err
		}
	}
	return nil
}

// Sites returns the site ids that have an energy series, sorted.
func (s *Snapshot) Sites() []string {
	out := make([]string, 0, len(s.EnergyPrice))
	for k := range s.EnergyPrice {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DeepCopy returns an independent copy.
func (s *Snapshot) DeepCopy() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.HashPrice = append([]float64(nil), s.HashPrice...)
	out.TokenPrice = append([]float64(nil), s.TokenPrice...)
	out.EnergyPrice = make(map[string][]float64, len(s.EnergyPrice))
	for k, v := range s.EnergyPrice {
		out.EnergyPrice[k] = append([]float64(nil), v...)
	}
	return &out
}

// Prices converts the snapshot into builder input.
func (s *Snapshot) Prices() builder.Prices {
	c := s.DeepCopy()
	return builder.Prices{
		Periods:     c.Periods,
		PeriodHours: c.PeriodHours,
		HashPrice:   c.HashPrice,
		TokenPrice:  c.TokenPrice,
		EnergyPrice: c.EnergyPrice,
	}
}

func checkSeries(name string, values []float64, periods int) error {
	if len(values) != periods {
		return fmt.Errorf("%s has %d values, want %d", name, len(values), periods)
	}
	for i, v := range values {
		if v < 0 {
			return fmt.Errorf("%s[%d] is negative: %v", name, i, v)
		}
	}
	return nil
}

// cacheKey identifies a snapshot request.
func cacheKey(source string, siteIDs []string, periods int) string {
	ids := append([]string(nil), siteIDs...)
	sort.Strings(ids)
	return fmt.Sprintf("%s:%d:%s", source, periods, strings.Join(ids, ","))
}
