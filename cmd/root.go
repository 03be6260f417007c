package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dakshina99/apimdbctl/internal/config"
	"github.com/dakshina99/apimdbctl/internal/docker"
	"github.com/dakshina99/apimdbctl/internal/logger"
	"github.com/dakshina99/apimdbctl/internal/pipeline"
)

var (
	// configFile is the path to the YAML configuration.
	configFile string
	verbose    bool

	// rootCmd is the base command for apimdbctl.
	rootCmd = &cobra.Command{
		Use:   "apimdbctl",
		Short: "Provision, back up, and restore the API manager databases",
		Long: `apimdbctl provisions the primary and shared databases behind an
API manager deployment, rewrites the deployment configuration to point
at them, and drives engine-native backup and restore using the
provider-issued backup timestamps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command. Fatal errors exit 1; a cancelled restore
// is not an error.
func Execute() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().
		BoolVar(&verbose, "verbose", false, "enable debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		_, err := logger.Init(verbose)
		return err
	}

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(listCmd)
}

// newCoordinator loads the config and wires a coordinator around the
// local docker CLI.
func newCoordinator(opts ...pipeline.Option) (*pipeline.Coordinator, error) {
	var cfg config.Config
	if err := cfg.Load(configFile); err != nil {
		return nil, err
	}
	log := logger.Global()
	runtime := docker.NewCLI(cfg.Compose.File, cfg.Compose.Project, log)
	return pipeline.New(&cfg, runtime, log, opts...), nil
}
