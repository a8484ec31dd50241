package catalog

import (
	"context"
	"fmt"
	"os"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/config"
)

// File is the on-disk catalog document.
type File struct {
	// Default holds device settings merged into every site.
	Default *v1alpha1.SiteConfig `json:"default,omitempty"`
	Sites   []v1alpha1.SiteConfig `json:"sites"`
}

// ParseFile decodes a YAML or JSON catalog document and returns its sites with
// defaults merged in. Unlike ConfigMap entries, an invalid site is an error.
func ParseFile(data []byte) ([]v1alpha1.SiteConfig, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("decoding site catalog: %w", err)
	}
	if f.Default != nil {
		if err := config.ValidateSite(f.Default, true); err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
	}

	seen := make(map[string]bool, len(f.Sites))
	out := make([]v1alpha1.SiteConfig, 0, len(f.Sites))
	for i := range f.Sites {
		site := &f.Sites[i]
		if err := config.ValidateSite(site, false); err != nil {
			return nil, fmt.Errorf("sites[%d]: %w", i, err)
		}
		if seen[site.SiteID] {
			return nil, fmt.Errorf("sites[%d]: duplicate site_id %q", i, site.SiteID)
		}
		seen[site.SiteID] = true
		if f.Default != nil {
			out = append(out, config.MergeSite(f.Default, site))
		} else {
			out = append(out, *site.DeepCopy())
		}
	}
	return out, nil
}

// LoadFile reads a catalog document from path.
func LoadFile(path string) ([]v1alpha1.SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading site catalog: %w", err)
	}
	return ParseFile(data)
}

// LoadConfigMap reads the site catalog from a ConfigMap holding one site per key.
// Invalid entries are logged and skipped.
func LoadConfigMap(ctx context.Context, c client.Reader, namespace, name string) ([]v1alpha1.SiteConfig, error) {
	logger := ctrl.LoggerFrom(ctx)

	cm := &corev1.ConfigMap{}
	if err := c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, cm); err != nil {
		return nil, fmt.Errorf("getting ConfigMap %s/%s: %w", namespace, name, err)
	}
	sites := config.ParseSiteCatalog(cm.Data).Sites()
	logger.Info("Loaded site catalog from ConfigMap",
		"namespace", namespace,
		"name", name,
		"entries", len(cm.Data),
		"sites", len(sites))
	return sites, nil
}
