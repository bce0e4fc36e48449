package config

import "fmt"

const (
	// TransportStreamableHTTP is the streamable HTTP transport.
	TransportStreamableHTTP = "streamable-http"
	// TransportSSE is the Server-Sent Events transport.
	TransportSSE = "sse"
	// TransportStdio is the standard I/O transport.
	TransportStdio = "stdio"
)

// Config is the top-level configuration for the map server.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Prompt PromptConfig `yaml:"prompt"`
}

// ServerConfig controls where and how the server listens. The HTTP
// listener always carries the viewer endpoints; the MCP transport is
// mounted on it unless transport is stdio.
type ServerConfig struct {
	Host      string `yaml:"host,omitempty"`      // Host to bind to (default: localhost)
	Port      int    `yaml:"port,omitempty"`      // Port for the HTTP listener (default: 8081)
	Transport string `yaml:"transport,omitempty"` // MCP transport (default: streamable-http)
}

// PromptConfig controls the data_layers prompt content. Text wins over
// File; with neither set the MCP_MAP_SYSTEM_PROMPT environment
// variable and then the built-in catalog apply.
type PromptConfig struct {
	Text string `yaml:"text,omitempty"` // Inline catalog text
	File string `yaml:"file,omitempty"` // Path to a catalog markdown file
}

// Validate checks config invariants that a typo would otherwise turn
// into a confusing runtime failure.
func (c Config) Validate() error {
	switch c.Server.Transport {
	case TransportStreamableHTTP, TransportSSE, TransportStdio:
	default:
		return fmt.Errorf("invalid transport %q: must be %q, %q or %q",
			c.Server.Transport, TransportStreamableHTTP, TransportSSE, TransportStdio)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}
