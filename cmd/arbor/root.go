package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/spf13/cobra"
)

var (
	env    config.Env
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a hierarchical state machine engine",
	Long:  `Arbor resolves, tick by tick, which state an entity occupies inside a tree of nested states.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		env, err = config.Load()
		if err != nil {
			return err
		}
		levelName := env.LogLevel
		if cmd.Flags().Changed("log-level") {
			levelName, _ = cmd.Flags().GetString("log-level")
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			levelName = "debug"
		}
		level, err := logging.ParseLevel(levelName)
		if err != nil {
			return err
		}
		logger = logging.New(level)
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error); overrides ARBOR_LOG_LEVEL")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every transition")
}

func debugEnabled(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}
