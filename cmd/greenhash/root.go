package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/internal/config"
	"github.com/green-hash/fleet-optimizer/internal/logging"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "greenhash",
		Short:        "Allocate mining and inference devices across Green Hash sites",
		SilenceUsage: true,
	}
	config.AddFlags(root.PersistentFlags())
	root.AddCommand(newServeCommand(), newSolveCommand(), newOptimizeCommand())
	return root
}

// setup loads the configuration and installs the process logger.
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		return nil, err
	}
	cmd.SetContext(ctrl.LoggerInto(cmd.Context(), logger))
	return cfg, nil
}
