// Package cli implements the siemctl command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/gregoryhugaerts/mini-siem/internal/client"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "siemctl",
	Short: "Control the event ingestion pipeline",
	Long: `siemctl manages event sources and events on a running ingestion
service: register sources, send and query events, and seed demo data.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "ingestion service URL")
}

func apiClient() *client.Client {
	return client.New(serverURL)
}
