// Package config loads the service configuration and parses site catalog entries.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/green-hash/fleet-optimizer/internal/prices"
	solverconfig "github.com/green-hash/fleet-optimizer/pkg/config"
)

// EnvPrefix prefixes every environment variable, e.g. GREENHASH_LISTEN_ADDRESS.
const EnvPrefix = "GREENHASH"

// Price source kinds.
const (
	PriceSourceStatic = "static"
	PriceSourceHTTP   = "http"
)

// Config holds the configuration of the service and CLI.
type Config struct {
	ListenAddress string `mapstructure:"listen-address"`

	LogLevel    string `mapstructure:"log-level"`
	LogEncoding string `mapstructure:"log-encoding"`

	// CatalogFile is a YAML or JSON document with a sites list.
	CatalogFile string `mapstructure:"catalog-file"`
	// CatalogConfigMap is a namespace/name reference read at start.
	CatalogConfigMap string `mapstructure:"catalog-configmap"`
	// CatalogRefreshInterval re-reads the catalog file or ConfigMap. Zero disables it.
	CatalogRefreshInterval time.Duration `mapstructure:"catalog-refresh-interval"`

	PriceSource   string              `mapstructure:"price-source"`
	PriceURL      string              `mapstructure:"price-url"`
	PriceCacheTTL time.Duration       `mapstructure:"price-cache-ttl"`
	StaticPrices  prices.StaticConfig `mapstructure:"static-prices"`

	Periods     int     `mapstructure:"periods"`
	PeriodHours float64 `mapstructure:"period-hours"`

	Solver solverconfig.OptimizerSpec `mapstructure:"solver"`

	// OptimizeRateLimit is the sustained POST /optimize rate per second. Zero disables limiting.
	OptimizeRateLimit float64 `mapstructure:"optimize-rate-limit"`
	OptimizeBurst     int     `mapstructure:"optimize-burst"`
}

// DefaultConfig returns a Config with defaults suitable for local use.
func DefaultConfig() *Config {
	return &Config{
		ListenAddress:     ":8080",
		LogLevel:          "info",
		LogEncoding:       "console",
		PriceSource:       PriceSourceStatic,
		PriceCacheTTL:     time.Minute,
		StaticPrices:      prices.DefaultStaticConfig(),
		Periods:           12,
		PeriodHours:       1,
		Solver:            *solverconfig.DefaultOptimizerSpec(),
		OptimizeRateLimit: 5,
		OptimizeBurst:     10,
	}
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"listen-address":             "listen-address",
	"log-level":                  "log-level",
	"log-encoding":               "log-encoding",
	"catalog-file":               "catalog-file",
	"catalog-configmap":          "catalog-configmap",
	"catalog-refresh-interval":   "catalog-refresh-interval",
	"price-source":               "price-source",
	"price-url":                  "price-url",
	"price-cache-ttl":            "price-cache-ttl",
	"periods":                    "periods",
	"period-hours":               "period-hours",
	"solver-strategy":            "solver.strategy",
	"solver-time-limit":          "solver.time-limit",
	"solver-max-exact-variables": "solver.max-exact-variables",
	"solver-parallelism":         "solver.parallelism",
	"solver-max-nodes":           "solver.max-nodes",
	"optimize-rate-limit":        "optimize-rate-limit",
	"optimize-burst":             "optimize-burst",
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("listen-address", d.ListenAddress, "HTTP listen address")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.String("log-encoding", d.LogEncoding, "Log encoding: console or json")
	fs.String("catalog-file", d.CatalogFile, "Site catalog file (YAML or JSON)")
	fs.String("catalog-configmap", d.CatalogConfigMap, "Site catalog ConfigMap as namespace/name")
	fs.Duration("catalog-refresh-interval", d.CatalogRefreshInterval, "Reload the site catalog at this interval, replacing POST /config edits; 0 disables")
	fs.String("price-source", d.PriceSource, "Price source: static or http")
	fs.String("price-url", d.PriceURL, "Price feed URL for the http source")
	fs.Duration("price-cache-ttl", d.PriceCacheTTL, "How long price snapshots are reused")
	fs.Int("periods", d.Periods, "Number of periods in the price horizon")
	fs.Float64("period-hours", d.PeriodHours, "Length of one period in hours")
	fs.String("solver-strategy", string(d.Solver.Strategy), "Solver strategy: auto, exact or greedy")
	fs.Duration("solver-time-limit", d.Solver.TimeLimit, "Wall-time limit of the exact solver")
	fs.Int("solver-max-exact-variables", d.Solver.MaxExactVariables, "Largest problem auto solves exactly")
	fs.Int("solver-parallelism", d.Solver.Parallelism, "Concurrent branch-and-bound subtrees")
	fs.Int("solver-max-nodes", d.Solver.MaxNodes, "Branch-and-bound node cap")
	fs.Float64("optimize-rate-limit", d.OptimizeRateLimit, "POST /optimize requests per second, 0 disables")
	fs.Int("optimize-burst", d.OptimizeBurst, "POST /optimize burst size")
}

// Load reads configuration from, highest first, flags in fs (when non-nil),
// GREENHASH_* environment variables, the --config file and defaults.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			if err := v.BindPFlag("config", f); err != nil {
				return nil, fmt.Errorf("binding flag config: %w", err)
			}
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	strategy, err := solverconfig.ParseStrategy(string(cfg.Solver.Strategy))
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	cfg.Solver.Strategy = strategy
	cfg.Solver.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("config", "")
	v.SetDefault("listen-address", d.ListenAddress)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-encoding", d.LogEncoding)
	v.SetDefault("catalog-file", d.CatalogFile)
	v.SetDefault("catalog-configmap", d.CatalogConfigMap)
	v.SetDefault("catalog-refresh-interval", d.CatalogRefreshInterval)
	v.SetDefault("price-source", d.PriceSource)
	v.SetDefault("price-url", d.PriceURL)
	v.SetDefault("price-cache-ttl", d.PriceCacheTTL)
	v.SetDefault("static-prices.hash-price", d.StaticPrices.HashPrice)
	v.SetDefault("static-prices.token-price", d.StaticPrices.TokenPrice)
	v.SetDefault("static-prices.default-energy-price", d.StaticPrices.DefaultEnergyPrice)
	v.SetDefault("periods", d.Periods)
	v.SetDefault("period-hours", d.PeriodHours)
	v.SetDefault("solver.strategy", string(d.Solver.Strategy))
	v.SetDefault("solver.time-limit", d.Solver.TimeLimit)
	v.SetDefault("solver.max-exact-variables", d.Solver.MaxExactVariables)
	v.SetDefault("solver.parallelism", d.Solver.Parallelism)
	v.SetDefault("solver.max-nodes", d.Solver.MaxNodes)
	v.SetDefault("optimize-rate-limit", d.OptimizeRateLimit)
	v.SetDefault("optimize-burst", d.OptimizeBurst)
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen-address is required")
	}
	switch c.LogEncoding {
	case "console", "json":
	default:
		return fmt.Errorf("log-encoding must be console or json, got %q", c.LogEncoding)
	}
	switch c.PriceSource {
	case PriceSourceStatic:
	case PriceSourceHTTP:
		if c.PriceURL == "" {
			return fmt.Errorf("price-url is required when price-source is http")
		}
	default:
		return fmt.Errorf("price-source must be static or http, got %q", c.PriceSource)
	}
	if c.PriceCacheTTL < 0 {
		return fmt.Errorf("price-cache-ttl must be >= 0, got %s", c.PriceCacheTTL)
	}
	if c.Periods <= 0 {
		return fmt.Errorf("periods must be positive, got %d", c.Periods)
	}
	if c.PeriodHours <= 0 {
		return fmt.Errorf("period-hours must be positive, got %v", c.PeriodHours)
	}
	if c.CatalogConfigMap != "" {
		if _, _, err := c.ConfigMapRef(); err != nil {
			return err
		}
	}
	if c.CatalogRefreshInterval < 0 {
		return fmt.Errorf("catalog-refresh-interval must be >= 0, got %s", c.CatalogRefreshInterval)
	}
	if c.OptimizeRateLimit < 0 {
		return fmt.Errorf("optimize-rate-limit must be >= 0, got %v", c.OptimizeRateLimit)
	}
	if c.OptimizeRateLimit > 0 && c.OptimizeBurst < 1 {
		return fmt.Errorf("optimize-burst must be >= 1 when rate limiting, got %d", c.OptimizeBurst)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	return nil
}

// ConfigMapRef splits CatalogConfigMap into namespace and name.
func (c *Config) ConfigMapRef() (namespace, name string, err error) {
	parts := strings.Split(c.CatalogConfigMap, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("catalog-configmap must be namespace/name, got %q", c.CatalogConfigMap)
	}
	return parts[0], parts[1], nil
}

// StaticPriceConfig returns the static series with the period length filled in.
func (c *Config) StaticPriceConfig() prices.StaticConfig {
	sc := c.StaticPrices
	if sc.PeriodHours <= 0 {
		sc.PeriodHours = c.PeriodHours
	}
	return sc
}
