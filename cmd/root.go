package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the map server.
var rootCmd = &cobra.Command{
	Use:   "mcp-map-server",
	Short: "Let AI agents drive interactive MapLibre maps over MCP",
	Long: `mcp-map-server exposes map control tools over the Model Context
Protocol. An agent builds up map state (layers, filters, styling, view)
through tool calls, and every change streams live to browser viewers
watching the same session.`,
	// SilenceUsage prevents cobra from printing usage on errors the
	// application already reports.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main
// to inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcp-map-server version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
