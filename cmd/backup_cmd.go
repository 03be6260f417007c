package cmd

import (
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up both databases into a new session",
	Long: `backup runs the engine's native backup for the primary and shared
databases in turn, copies the images into a session directory, and writes
the session manifest with the provider-issued backup timestamps. A session
is all-or-nothing: if either database fails, nothing is kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator, err := newCoordinator()
		if err != nil {
			return err
		}
		_, err = coordinator.Backup(cmd.Context())
		return err
	},
}
