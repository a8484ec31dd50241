package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/config"
	"github.com/green-hash/fleet-optimizer/pkg/builder"
	"github.com/green-hash/fleet-optimizer/pkg/core"
	"github.com/green-hash/fleet-optimizer/pkg/projector"
	"github.com/green-hash/fleet-optimizer/pkg/solver"
)

func newSolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "solve FILE",
		Short: "Solve an optimization data file (YAML or JSON) locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return solve(cmd.Context(), cfg, raw, cmd.OutOrStdout())
		},
	}
}

func solve(ctx context.Context, cfg *config.Config, raw []byte, out io.Writer) error {
	var data v1alpha1.OptimizationData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decoding optimization data: %w", err)
	}
	p, err := builder.Build(ctx, &data)
	if err != nil {
		return err
	}
	opt, err := solver.NewOptimizer(&cfg.Solver)
	if err != nil {
		return err
	}

	start := time.Now()
	sol, err := opt.Optimize(ctx, p)
	if err != nil && !errors.Is(err, core.ErrTimeout) {
		return err
	}
	report := projector.Project(sol.Allocation, p)

	resp := v1alpha1.OptimizeResponse{
		OptimalAllocation:   report.Allocation,
		Results:             report.Results,
		TotalProfit:         report.TotalProfit,
		TotalRevenue:        report.TotalRevenue,
		TotalEnergyCost:     report.TotalEnergyCost,
		ActiveDeviceCount:   report.ActiveDeviceCount,
		SitesOptimizedCount: report.SitesOptimizedCount,
		PeriodProfit:        report.PeriodProfit,
		PowerUsed:           report.PowerUsed,
		Status:              sol.Status,
		Optimal:             sol.Optimal,
		Solver:              sol.Solver,
		ElapsedMS:           time.Since(start).Milliseconds(),
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		resp.Message = err.Error()
	}
	return printJSON(out, resp)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
