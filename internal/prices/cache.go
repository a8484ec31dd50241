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
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
	"github.com/green-hash/fleet-optimizer/internal/metrics"
)

// fetchTimeout bounds a shared upstream fetch, which outlives the caller that started it.
const fetchTimeout = 30 * time.Second

// CachedSource memoizes snapshots of an underlying source for a TTL.
// Concurrent misses for the same key share one upstream fetch.
type CachedSource struct {
	source Source
	cache  *gocache.Cache
	group  singleflight.Group
}

// NewCachedSource wraps source. A non-positive ttl disables caching but
// still collapses concurrent fetches.
func NewCachedSource(source Source, ttl time.Duration) *CachedSource {
	expiration := ttl
	if ttl <= 0 {
		expiration = time.Nanosecond
	}
	return &CachedSource{
		source: source,
		cache:  gocache.New(expiration, 2*expiration+time.Minute),
	}
}

// Name returns the name of the wrapped source.
func (c *CachedSource) Name() string {
	return c.source.Name()
}

// Snapshot implements Source. Callers receive their own copy.
func (c *CachedSource) Snapshot(ctx context.Context, sites []v1alpha1.SiteConfig, periods int) (*Snapshot, error) {
	logger := ctrl.LoggerFrom(ctx)

	ids := make([]string, len(sites))
	for i := range sites {
		ids[i] = sites[i].SiteID
	}
	key := cacheKey(c.source.Name(), ids, periods)

	if v, ok := c.cache.Get(key); ok {
		logger.V(logging.DEBUG).Info("Price snapshot cache hit", "key", key)
		return v.(*Snapshot).DeepCopy(), nil
	}

	// The fetch is detached from the first caller so that its cancellation
	// does not fail the callers sharing it. Each caller still honors its own ctx.
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		snap, err := c.source.Snapshot(fetchCtx, sites, periods)
		metrics.ObservePriceFetch(c.source.Name(), err)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(key, snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		logger.V(logging.DEBUG).Info("Price snapshot fetched", "key", key, "shared", res.Shared)
		return res.Val.(*Snapshot).DeepCopy(), nil
	}
}

// Invalidate drops every cached snapshot.
func (c *CachedSource) Invalidate() {
	c.cache.Flush()
}

// Len returns the number of cached snapshots.
func (c *CachedSource) Len() int {
	return c.cache.ItemCount()
}
