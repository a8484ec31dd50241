package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/wait"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/catalog"
	"github.com/green-hash/fleet-optimizer/internal/config"
	"github.com/green-hash/fleet-optimizer/internal/prices"
	"github.com/green-hash/fleet-optimizer/internal/server"
	"github.com/green-hash/fleet-optimizer/pkg/solver"
)

const (
	configMapPollInterval = 2 * time.Second
	configMapPollTimeout  = 30 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the optimizer HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := ctrl.LoggerFrom(ctx)

	sites, load, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("Loaded site catalog", "sites", len(sites))
	store := catalog.NewStore(sites...)

	source, err := newPriceSource(cfg)
	if err != nil {
		return err
	}
	opt, err := solver.NewOptimizer(&cfg.Solver)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Options{
		Optimizer: opt,
		Store:     store,
		Prices:    source,
		Periods:   cfg.Periods,
		RateLimit: cfg.OptimizeRateLimit,
		Burst:     cfg.OptimizeBurst,
	})
	if err != nil {
		return err
	}

	if load != nil && cfg.CatalogRefreshInterval > 0 {
		var onChange func()
		if c, ok := source.(*prices.CachedSource); ok {
			onChange = c.Invalidate
		}
		go catalog.Refresh(ctx, store, load, cfg.CatalogRefreshInterval, onChange)
	}
	return srv.Run(ctx, cfg.ListenAddress)
}

// loadCatalog reads the site catalog from the configured file or ConfigMap and
// returns the function that reads it again. With neither configured the catalog
// starts empty, is filled through POST /config and the returned LoadFunc is nil.
func loadCatalog(ctx context.Context, cfg *config.Config) ([]v1alpha1.SiteConfig, catalog.LoadFunc, error) {
	logger := ctrl.LoggerFrom(ctx)

	switch {
	case cfg.CatalogFile != "":
		load := func(context.Context) ([]v1alpha1.SiteConfig, error) {
			return catalog.LoadFile(cfg.CatalogFile)
		}
		sites, err := load(ctx)
		if err != nil {
			return nil, nil, err
		}
		return sites, load, nil
	case cfg.CatalogConfigMap != "":
		namespace, name, err := cfg.ConfigMapRef()
		if err != nil {
			return nil, nil, err
		}
		restConfig, err := ctrl.GetConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("getting cluster config: %w", err)
		}
		c, err := client.New(restConfig, client.Options{})
		if err != nil {
			return nil, nil, fmt.Errorf("creating cluster client: %w", err)
		}
		load := func(ctx context.Context) ([]v1alpha1.SiteConfig, error) {
			return catalog.LoadConfigMap(ctx, c, namespace, name)
		}

		var sites []v1alpha1.SiteConfig
		var lastErr error
		err = wait.PollUntilContextTimeout(ctx, configMapPollInterval, configMapPollTimeout, true, func(ctx context.Context) (bool, error) {
			sites, lastErr = load(ctx)
			if lastErr != nil {
				logger.Info("Site catalog ConfigMap not readable yet", "namespace", namespace, "name", name, "error", lastErr.Error())
				return false, nil
			}
			return true, nil
		})
		if err != nil {
			if lastErr != nil {
				return nil, nil, lastErr
			}
			return nil, nil, err
		}
		return sites, load, nil
	default:
		logger.Info("No site catalog configured, starting empty")
		return nil, nil, nil
	}
}

func newPriceSource(cfg *config.Config) (prices.Source, error) {
	var source prices.Source
	switch cfg.PriceSource {
	case config.PriceSourceHTTP:
		s, err := prices.NewHTTPSource(cfg.PriceURL, prices.HTTPOptions{PeriodHours: cfg.PeriodHours})
		if err != nil {
			return nil, err
		}
		source = s
	default:
		s, err := prices.NewStaticSource(cfg.StaticPriceConfig())
		if err != nil {
			return nil, err
		}
		source = s
	}
	if cfg.PriceCacheTTL == 0 {
		return source, nil
	}
	return prices.NewCachedSource(source, cfg.PriceCacheTTL), nil
}
