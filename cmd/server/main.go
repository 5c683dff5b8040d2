package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/config"
	"radzz.ai/chat-orchestrator/internal/logger"
)

var (
	verbose bool
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "radzz",
	Short: "RADZZ AI chat backend",
	Long: `Runs the RADZZ AI chat backend: multi-session chat with streaming replies,
grounded search, simulated media generation and trial-based premium gating.

Configuration comes from the environment, optionally seeded from a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(); err != nil {
			return err
		}
		level := config.AppConfig.LogLevel
		if verbose {
			level = "DEBUG"
		}
		var err error
		log, err = logger.New(level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.AddCommand(serveCmd, sendCmd, sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
