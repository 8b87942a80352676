// Package cmd wires up the sd-helper command tree.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xuopoj/sd-helper/pkg/logger"
)

var (
	profileFlag  string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "sd-helper",
	Short: "Service-delivery helper for Huawei Cloud field work",
	Long: `sd-helper is a CLI toolbox for Huawei Cloud service-delivery work:
IAM token management, LLM chat against ModelArts/Pangu endpoints, offline
HTTP data collection for customer-network diagnosis, and batch image
upload to SWR.`,
	SilenceUsage: true,
}

// Execute runs the CLI. Build metadata comes from main via ldflags.
func Execute(version, commit, date string) {
	setBuildInfo(version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initRuntime)

	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "configuration profile to use (default: from config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newIAMCommand(),
		newLLMCommand(),
		newDataCommand(),
		newSWRCommand(),
		newVersionCommand(),
	)
}

func initRuntime() {
	// A .env next to the working directory may carry SD_* overrides.
	_ = godotenv.Load()

	logger.Setup(logLevelFlag)
}
