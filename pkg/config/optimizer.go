package config

import (
	"fmt"
	"strings"
	"time"
)

// Strategy names an allocation algorithm.
type Strategy string

// Supported strategies
const (
	StrategyAuto   Strategy = "auto"
	StrategyExact  Strategy = "exact"
	StrategyGreedy Strategy = "greedy"
)

// Defaults of the optimizer
const (
	DefaultStrategy          = StrategyAuto
	DefaultTimeLimit         = 5 * time.Second
	DefaultMaxExactVariables = 40
	DefaultParallelism       = 4
	DefaultMaxNodes          = 2_000_000
)

// OptimizerSpec holds the solver options.
type OptimizerSpec struct {
	// Strategy selects the algorithm; auto picks exact for small instances.
	Strategy Strategy `json:"strategy,omitempty" mapstructure:"strategy"`
	// TimeLimit bounds the exact search. Zero means DefaultTimeLimit.
	TimeLimit time.Duration `json:"timeLimit,omitempty" mapstructure:"time-limit"`
	// MaxExactVariables is the largest free-variable count auto hands to the exact solver.
	MaxExactVariables int `json:"maxExactVariables,omitempty" mapstructure:"max-exact-variables"`
	// Parallelism bounds the concurrent subtrees of the exact search.
	Parallelism int `json:"parallelism,omitempty" mapstructure:"parallelism"`
	// MaxNodes caps the explored branch-and-bound nodes; reaching it is reported like a timeout.
	MaxNodes int `json:"maxNodes,omitempty" mapstructure:"max-nodes"`
}

// DefaultOptimizerSpec returns a spec populated with defaults.
func DefaultOptimizerSpec() *OptimizerSpec {
	return &OptimizerSpec{
		Strategy:          DefaultStrategy,
		TimeLimit:         DefaultTimeLimit,
		MaxExactVariables: DefaultMaxExactVariables,
		Parallelism:       DefaultParallelism,
		MaxNodes:          DefaultMaxNodes,
	}
}

// ApplyDefaults fills zero fields with defaults.
func (s *OptimizerSpec) ApplyDefaults() {
	if s.Strategy == "" {
		s.Strategy = DefaultStrategy
	}
	if s.TimeLimit == 0 {
		s.TimeLimit = DefaultTimeLimit
	}
	if s.MaxExactVariables == 0 {
		s.MaxExactVariables = DefaultMaxExactVariables
	}
	if s.Parallelism == 0 {
		s.Parallelism = DefaultParallelism
	}
	if s.MaxNodes == 0 {
		s.MaxNodes = DefaultMaxNodes
	}
}

// Validate checks the spec ranges.
func (s *OptimizerSpec) Validate() error {
	switch s.Strategy {
	case StrategyAuto, StrategyExact, StrategyGreedy:
	default:
		return fmt.Errorf("unsupported strategy %q, must be one of auto, exact, greedy", s.Strategy)
	}
	if s.TimeLimit < 0 {
		return fmt.Errorf("timeLimit must be non-negative, got %s", s.TimeLimit)
	}
	if s.MaxExactVariables < 0 {
		return fmt.Errorf("maxExactVariables must be non-negative, got %d", s.MaxExactVariables)
	}
	if s.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative, got %d", s.Parallelism)
	}
	if s.MaxNodes < 0 {
		return fmt.Errorf("maxNodes must be non-negative, got %d", s.MaxNodes)
	}
	return nil
}

// ParseStrategy converts a string to a Strategy, ignoring case and
// surrounding space. An empty string selects DefaultStrategy.
func ParseStrategy(v string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case StrategyAuto, StrategyExact, StrategyGreedy:
		return s, nil
	case "":
		return DefaultStrategy, nil
	}
	return "", fmt.Errorf("unsupported strategy %q", v)
}
