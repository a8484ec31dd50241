// Package catalog holds the in-memory site catalog and its loaders.
package catalog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/config"
)

// Store is a concurrency-safe set of site configurations keyed by site id.
// Values are copied in and out so callers never share memory with the store.
type Store struct {
	mu    sync.RWMutex
	sites map[string]v1alpha1.SiteConfig
	now   func() time.Time
}

// NewStore creates a store holding sites. Later duplicates replace earlier ones.
func NewStore(sites ...v1alpha1.SiteConfig) *Store {
	s := &Store{sites: make(map[string]v1alpha1.SiteConfig, len(sites)), now: time.Now}
	for i := range sites {
		s.sites[sites[i].SiteID] = *sites[i].DeepCopy()
	}
	return s
}

// List returns every site ordered by id.
func (s *Store) List() []v1alpha1.SiteConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sites))
	for id := range s.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]v1alpha1.SiteConfig, len(ids))
	for i, id := range ids {
		site := s.sites[id]
		out[i] = *site.DeepCopy()
	}
	return out
}

// Get returns the site with the given id.
func (s *Store) Get(id string) (v1alpha1.SiteConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return v1alpha1.SiteConfig{}, false
	}
	return *site.DeepCopy(), true
}

// Upsert validates and stores site, replacing any entry with the same id.
// An empty UpdatedAt is set to the current time. The stored entry is returned.
func (s *Store) Upsert(site v1alpha1.SiteConfig) (v1alpha1.SiteConfig, error) {
	if err := config.ValidateSite(&site, false); err != nil {
		return v1alpha1.SiteConfig{}, err
	}
	stored := *site.DeepCopy()
	if stored.UpdatedAt == "" {
		stored.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, stored.UpdatedAt); err != nil {
		return v1alpha1.SiteConfig{}, fmt.Errorf("updated_at must be an RFC3339 timestamp: %w", err)
	}

	s.mu.Lock()
	s.sites[stored.SiteID] = stored
	s.mu.Unlock()
	return *stored.DeepCopy(), nil
}

// Replace swaps the whole catalog. Nothing changes if any site is invalid.
func (s *Store) Replace(sites []v1alpha1.SiteConfig) error {
	next := make(map[string]v1alpha1.SiteConfig, len(sites))
	for i := range sites {
		if err := config.ValidateSite(&sites[i], false); err != nil {
			return fmt.Errorf("site %d: %w", i, err)
		}
		next[sites[i].SiteID] = *sites[i].DeepCopy()
	}

	s.mu.Lock()
	s.sites = next
	s.mu.Unlock()
	return nil
}

// Len returns the number of sites.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sites)
}
