package cmd

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List durable backup sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator, err := newCoordinator()
		if err != nil {
			return err
		}
		return coordinator.List()
	},
}
