package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dakshina99/apimdbctl/internal/pipeline"
)

var assumeYes bool

var restoreCmd = &cobra.Command{
	Use:     "restore <sessionDir> [primaryTimestamp] [sharedTimestamp]",
	Aliases: []string{"recover"},
	Short:   "Restore both databases from a backup session",
	Long: `restore replays a backup session against the running instances.
Timestamps default to the session manifest; explicitly supplied timestamps
always win. The restore replaces both databases in place, so it asks for
confirmation first; declining cancels cleanly.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []pipeline.Option
		if assumeYes {
			opts = append(opts, pipeline.WithConfirm(pipeline.AlwaysConfirm))
		}
		coordinator, err := newCoordinator(opts...)
		if err != nil {
			return err
		}

		var primaryTimestamp, sharedTimestamp string
		if len(args) > 1 {
			primaryTimestamp = args[1]
		}
		if len(args) > 2 {
			sharedTimestamp = args[2]
		}
		return coordinator.Recover(cmd.Context(), args[0], primaryTimestamp, sharedTimestamp)
	},
}

func init() {
	restoreCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
}
