package cmd

import (
	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Start both database instances and rewrite the deployment config",
	Long: `provision checks dependencies, replaces the database sections of the
deployment configuration, starts both service instances, waits until each
answers its validation query, and applies the engine schema scripts.
On any fatal failure the configuration change is rolled back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator, err := newCoordinator()
		if err != nil {
			return err
		}
		return coordinator.Provision(cmd.Context())
	},
}
