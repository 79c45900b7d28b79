// Package cmd provides the command-line interface for codefair.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/codefair/internal/config"
	"github.com/danielolaszy/codefair/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "codefair",
	Short: "Codefair keeps repositories FAIR-compliant",
	Long: `Codefair is a GitHub App that checks repositories for a LICENSE and a
CITATION.cff file. It opens an issue when one is missing and, on a
maintainer's request, opens a pull request that adds it.

Run "codefair serve" to receive webhooks, or "codefair check" to inspect a
single repository with a personal access token.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(licenseCmd)
}

// setupLogging applies the configured level and format. Production sends
// records to the OpenTelemetry log pipeline when one is running and
// otherwise writes JSON.
func setupLogging(cfg *config.Config, telemetryEnabled bool) {
	level := logging.LogLevel(cfg.LogLevel)
	format := logging.Format(cfg.LogFormat)

	switch {
	case cfg.IsProduction() && telemetryEnabled:
		logging.SetupOTel(cfg.OTel.ServiceName)
	case cfg.IsProduction():
		logging.Setup(os.Stdout, level, logging.FormatJSON)
	default:
		logging.Setup(os.Stdout, level, format)
	}
}
