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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
)

const maxFeedBytes = 4 << 20

// FeedDocument is the JSON body served by a price feed.
type FeedDocument struct {
	HashPrice   []float64            `json:"hash_price"`
	TokenPrice  []float64            `json:"token_price"`
	EnergyPrice map[string][]float64 `json:"energy_price"`
	PeriodHours float64              `json:"period_hours,omitempty"`

	// EnergySeries holds timestamped observations per site. They are resampled
	// onto the planning grid and take precedence over EnergyPrice.
	EnergySeries map[string][]DataPoint `json:"energy_series,omitempty"`
	// Start is the beginning of the planning grid. It defaults to the fetch
	// time truncated to the period length.
	Start *time.Time `json:"start,omitempty"`
}

// HTTPOptions tune the retry policy of HTTPSource.
type HTTPOptions struct {
	Client          *http.Client
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// PeriodHours is used when the feed omits period_hours. Defaults to 1.
	PeriodHours float64
}

// HTTPSource fetches snapshots from a JSON price feed, retrying transient
// failures with exponential backoff. Client errors are not retried.
type HTTPSource struct {
	url  string
	opts HTTPOptions
	now  func() time.Time
}

// NewHTTPSource creates a source for the feed at rawURL.
func NewHTTPSource(rawURL string, opts HTTPOptions) (*HTTPSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid price feed url %q", rawURL)
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 4
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = backoff.DefaultInitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 5 * time.Second
	}
	if opts.PeriodHours <= 0 {
		opts.PeriodHours = 1
	}
	return &HTTPSource{url: rawURL, opts: opts, now: time.Now}, nil
}

// Name returns "http".
func (h *HTTPSource) Name() string {
	return "http"
}

// Snapshot implements Source. Series shorter than periods are extended with Forecast.
// Sites missing from the feed fall back to their catalog energy series.
func (h *HTTPSource) Snapshot(ctx context.Context, sites []v1alpha1.SiteConfig, periods int) (*Snapshot, error) {
	logger := ctrl.LoggerFrom(ctx)
	if periods <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d", periods)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.opts.InitialInterval
	b.MaxInterval = h.opts.MaxInterval

	doc, err := backoff.Retry(ctx, func() (*FeedDocument, error) {
		return h.fetch(ctx, periods)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(h.opts.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Info("Price feed request failed, retrying", "error", err.Error(), "retryIn", next)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching price feed: %w", err)
	}
	return h.toSnapshot(ctx, doc, sites, periods)
}

func (h *HTTPSource) fetch(ctx context.Context, periods int) (*FeedDocument, error) {
	u, _ := url.Parse(h.url)
	q := u.Query()
	q.Set("periods", strconv.Itoa(periods))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("price feed returned %s", resp.Status)
	case resp.StatusCode >= 300:
		return nil, backoff.Permanent(fmt.Errorf("price feed returned %s", resp.Status))
	}

	var doc FeedDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&doc); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding price feed: %w", err))
	}
	return &doc, nil
}

func (h *HTTPSource) toSnapshot(ctx context.Context, doc *FeedDocument, sites []v1alpha1.SiteConfig, periods int) (*Snapshot, error) {
	logger := ctrl.LoggerFrom(ctx)

	snap := &Snapshot{
		Source:      h.Name(),
		FetchedAt:   h.now(),
		Periods:     periods,
		PeriodHours: doc.PeriodHours,
		EnergyPrice: make(map[string][]float64, len(sites)),
	}
	if snap.PeriodHours <= 0 {
		snap.PeriodHours = h.opts.PeriodHours
	}
	step := time.Duration(snap.PeriodHours * float64(time.Hour))
	start := snap.FetchedAt.Truncate(step)
	if doc.Start != nil {
		start = *doc.Start
	}

	var err error
	if snap.HashPrice, err = Forecast(doc.HashPrice, periods); err != nil {
		return nil, fmt.Errorf("hash price: %w", err)
	}
	if snap.TokenPrice, err = Forecast(doc.TokenPrice, periods); err != nil {
		return nil, fmt.Errorf("token price: %w", err)
	}
	for _, site := range sites {
		series := doc.EnergyPrice[site.SiteID]
		if points := doc.EnergySeries[site.SiteID]; len(points) > 0 {
			observed := NewSeries(site.SiteID)
			for _, p := range points {
				observed.AddPoint(p.Timestamp, p.Value)
			}
			series = observed.Resample(start, step, periods)
			logger.V(logging.TRACE).Info("Resampled energy price series",
				"site", site.SiteID, "points", len(points), "last", observed.Latest().Timestamp)
		}
		if len(series) == 0 {
			series = site.EnergyPrice
		}
		if len(series) == 0 {
			continue
		}
		if snap.EnergyPrice[site.SiteID], err = Forecast(series, periods); err != nil {
			return nil, fmt.Errorf("energy price of site %s: %w", site.SiteID, err)
		}
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
