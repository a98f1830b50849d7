package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Optional optimizer.yaml path
	historyDB  string // Optional SQLite file for persisting monitor output
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "mcpboost",
	Short: "Client-side optimization layer for MCP capability servers",
	Long: `mcpboost sits between an application and a fleet of MCP capability
servers and reduces latency and wasted work: context-aware result caching,
capability-aware load balancing, DAG-parallel request orchestration, and
sliding-window performance regression monitoring.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to optimizer.yaml (defaults apply when unset)")
}
