package main

import (
	"github.com/spf13/cobra"

	"github.com/green-hash/fleet-optimizer/pkg/client"
)

func newOptimizeCommand() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Fetch optimization data from a running server and optimize it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := setup(cmd); err != nil {
				return err
			}
			c, err := client.New(serverURL)
			if err != nil {
				return err
			}
			resp, err := c.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the optimizer API")
	return cmd
}
