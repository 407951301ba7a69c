// Package main is the entry point for the theory server.
// It only handles dependency injection and command wiring.
// NO business logic belongs here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CalculusMatrix/internal/platform/config"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
)

var (
	// Global flags
	verbose    bool
	configPath string
	variantArg string

	appLogger *logger.Logger
	appConfig config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "theory-server",
	Short: "Idle-game theory engine: server, simulator and replay tools",
	Long: `theory-server runs a publication/milestone progression theory.

  serve     run the engine in real time behind a WebSocket + HTTP API
  simulate  play a variant headlessly and print a pacing summary
  replay    rebuild permanent progress from the event journal or database`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appLogger = logger.NewDevelopment(verbose)

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if variantArg != "" {
			cfg.Engine.Variant = variantArg
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		appConfig = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			_ = appLogger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to theory.yaml")
	rootCmd.PersistentFlags().StringVar(&variantArg, "variant", "", "variant to run (overrides config)")

	rootCmd.AddCommand(serveCmd, simulateCmd, replayCmd, configCmd)
}

// configCmd writes the effective configuration, a starting point for theory.yaml.
var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Write the effective configuration as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "theory.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := appConfig.Save(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
