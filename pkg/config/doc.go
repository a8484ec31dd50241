// Package config defines the solver-facing options of the fleet optimizer.
//
// OptimizerSpec selects the allocation strategy and bounds the exact search:
//
//	spec := config.DefaultOptimizerSpec()
//	spec.Strategy = config.StrategyExact
//	spec.TimeLimit = 2 * time.Second
//	if err := spec.Validate(); err != nil {
//	    return err
//	}
//
// Process-level settings (listen address, catalog sources, price feeds) live in
// internal/config; this package only carries what pkg/solver consumes so that
// library users do not pull in viper.
package config
