package catalog

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/util/wait"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
)

// LoadFunc reads the complete site catalog from its source.
type LoadFunc func(ctx context.Context) ([]v1alpha1.SiteConfig, error)

// Refresh replaces the store contents with the result of load every interval
// until ctx is done. onChange, when set, runs after each replace that changed
// the catalog. A failed load keeps the current catalog.
func Refresh(ctx context.Context, store *Store, load LoadFunc, interval time.Duration, onChange func()) {
	logger := ctrl.LoggerFrom(ctx)

	wait.UntilWithContext(ctx, func(ctx context.Context) {
		sites, err := load(ctx)
		if err != nil {
			logger.Error(err, "Failed to reload site catalog, keeping the current one")
			return
		}
		if equality.Semantic.DeepEqual(NewStore(sites...).List(), store.List()) {
			logger.V(logging.TRACE).Info("Site catalog unchanged", "sites", len(sites))
			return
		}
		if err := store.Replace(sites); err != nil {
			logger.Error(err, "Reloaded site catalog is invalid, keeping the current one")
			return
		}
		logger.Info("Site catalog reloaded", "sites", store.Len())
		if onChange != nil {
			onChange()
		}
	}, interval)
}
