package config

import (
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
	"github.com/green-hash/fleet-optimizer/pkg/core"
)

const (
	// DefaultSiteCatalogConfigMapName is the ConfigMap holding one site per key.
	DefaultSiteCatalogConfigMapName = "greenhash-sites"

	// DefaultsKey holds device settings merged into every site.
	DefaultsKey = "default"
)

// SiteCatalogData maps site id to its configuration. The DefaultsKey entry, if
// present, holds the shared defaults.
type SiteCatalogData map[string]v1alpha1.SiteConfig

// ValidateSite checks a site entry. Defaults entries may omit the site id.
func ValidateSite(s *v1alpha1.SiteConfig, isDefaults bool) error {
	if !isDefaults && s.SiteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if s.Power != nil && (*s.Power < 0 || math.IsNaN(*s.Power) || math.IsInf(*s.Power, 0)) {
		return fmt.Errorf("power must be a finite value >= 0, got %v", *s.Power)
	}
	for i, e := range s.EnergyPrice {
		if e < 0 || math.IsNaN(e) || math.IsInf(e, 0) {
			return fmt.Errorf("energy_price[%d] must be a finite value >= 0, got %v", i, e)
		}
	}
	for _, d := range core.KnownDevices() {
		cfg := s.Device(string(d))
		if cfg == nil {
			continue
		}
		if cfg.MaxMachines != nil && *cfg.MaxMachines < 0 {
			return fmt.Errorf("%s.max_machines must be >= 0, got %d", d, *cfg.MaxMachines)
		}
		for name, v := range map[string]*float64{"power": cfg.Power, "hashrate": cfg.Hashrate, "tokens": cfg.Tokens} {
			if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
				return fmt.Errorf("%s.%s must be a finite value >= 0, got %v", d, name, *v)
			}
		}
	}
	return nil
}

// ParseSiteCatalog parses site entries from a ConfigMap's data.
//   - "default": device settings shared by all sites
//   - "<any key>": one site, identified by its site_id field
//
// Entries that fail to parse or validate are skipped. When two keys declare
// the same site_id the first key in sorted order wins.
func ParseSiteCatalog(data map[string]string) SiteCatalogData {
	out := make(SiteCatalogData)
	if data == nil {
		return out
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	owner := make(map[string]string)
	for _, key := range keys {
		var site v1alpha1.SiteConfig
		if err := yaml.Unmarshal([]byte(data[key]), &site); err != nil {
			ctrl.Log.Info("Failed to parse site catalog entry, skipping", "key", key, "error", err)
			continue
		}
		isDefaults := key == DefaultsKey
		if err := ValidateSite(&site, isDefaults); err != nil {
			ctrl.Log.Info("Invalid site catalog entry, skipping", "key", key, "error", err)
			continue
		}
		if isDefaults {
			site.SiteID = ""
			out[DefaultsKey] = site
			continue
		}
		if site.SiteID == DefaultsKey {
			ctrl.Log.Info("Site id is reserved, skipping", "key", key, "site_id", site.SiteID)
			continue
		}
		if winner, exists := owner[site.SiteID]; exists {
			ctrl.Log.Info("Duplicate site_id in site catalog - first key wins",
				"site_id", site.SiteID,
				"winningKey", winner,
				"duplicateKey", key)
			continue
		}
		owner[site.SiteID] = key
		out[site.SiteID] = site
	}

	ctrl.Log.V(logging.DEBUG).Info("Parsed site catalog", "siteCount", len(owner))
	return out
}

// SiteConfig returns the effective configuration of a site with defaults merged in.
// Site values override defaults field by field.
func (data SiteCatalogData) SiteConfig(siteID string) (v1alpha1.SiteConfig, bool) {
	site, ok := data[siteID]
	if !ok || siteID == DefaultsKey {
		return v1alpha1.SiteConfig{}, false
	}
	defaults, hasDefaults := data[DefaultsKey]
	if !hasDefaults {
		return *site.DeepCopy(), true
	}
	return MergeSite(&defaults, &site), true
}

// Sites returns the effective configuration of every site, ordered by site id.
func (data SiteCatalogData) Sites() []v1alpha1.SiteConfig {
	ids := make([]string, 0, len(data))
	for id := range data {
		if id != DefaultsKey {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]v1alpha1.SiteConfig, 0, len(ids))
	for _, id := range ids {
		s, _ := data.SiteConfig(id)
		out = append(out, s)
	}
	return out
}

// MergeSite overlays site on defaults and returns an independent result.
func MergeSite(defaults, site *v1alpha1.SiteConfig) v1alpha1.SiteConfig {
	result := *site.DeepCopy()
	if result.Power == nil && defaults.Power != nil {
		p := *defaults.Power
		result.Power = &p
	}
	if len(result.EnergyPrice) == 0 && len(defaults.EnergyPrice) > 0 {
		result.EnergyPrice = append([]float64(nil), defaults.EnergyPrice...)
	}
	if result.State == "" {
		result.State = defaults.State
	}

	for _, d := range core.KnownDevices() {
		def := defaults.Device(string(d))
		if def == nil {
			continue
		}
		own := result.Device(string(d))
		if own == nil {
			result.SetDevice(string(d), def.DeepCopy())
			continue
		}
		if own.MaxMachines == nil && def.MaxMachines != nil {
			v := *def.MaxMachines
			own.MaxMachines = &v
		}
		if own.Power == nil && def.Power != nil {
			v := *def.Power
			own.Power = &v
		}
		if own.Hashrate == nil && def.Hashrate != nil {
			v := *def.Hashrate
			own.Hashrate = &v
		}
		if own.Tokens == nil && def.Tokens != nil {
			v := *def.Tokens
			own.Tokens = &v
		}
	}
	return result
}
