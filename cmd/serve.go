package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boettiger-lab/mcp-map-server/internal/app"
)

var (
	serveHost       string
	servePort       int
	serveTransport  string
	serveConfigPath string
	servePromptText string
	servePromptFile string
	serveDebug      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the map server",
	Long: `Starts the MCP map server and the browser viewer.

The HTTP listener serves the map viewer at /, a state snapshot at
/api/map-state and the live update stream at /events. The MCP transport
is mounted on the same listener (/mcp for streamable-http, /sse and
/message for sse); with --transport stdio the MCP server runs on
stdin/stdout instead, for use with desktop AI assistants.

Configuration is read from config.yaml in --config-path (or
~/.config/mcp-map-server), overridden by the HTTP_PORT and
MCP_MAP_SYSTEM_PROMPT environment variables and then by flags.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.Options{
		ConfigPath: serveConfigPath,
		Host:       serveHost,
		Port:       servePort,
		Transport:  serveTransport,
		PromptText: servePromptText,
		PromptFile: servePromptFile,
		Debug:      serveDebug,
		Version:    GetVersion(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind the HTTP listener to")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port for the HTTP listener")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "MCP transport: streamable-http, sse or stdio")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Directory containing config.yaml")
	serveCmd.Flags().StringVar(&servePromptText, "prompt-text", "", "Inline layer catalog text for the data_layers prompt")
	serveCmd.Flags().StringVar(&servePromptFile, "prompt-file", "", "Path to a layer catalog file for the data_layers prompt")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd)
}
