// Package app wires the map server together: configuration, the
// session registry, the MCP tool surface, the viewer HTTP endpoints,
// and the lifecycle that runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/boettiger-lab/mcp-map-server/internal/catalog"
	"github.com/boettiger-lab/mcp-map-server/internal/config"
	"github.com/boettiger-lab/mcp-map-server/internal/maptools"
	"github.com/boettiger-lab/mcp-map-server/internal/session"
	"github.com/boettiger-lab/mcp-map-server/internal/viewer"
	"github.com/boettiger-lab/mcp-map-server/pkg/logging"
)

const serverName = "mcp-map-server"

// Options carries command-line overrides. Zero values mean "use the
// configuration file / defaults".
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Transport  string
	PromptText string
	PromptFile string
	Debug      bool
	Version    string
}

// Application is the assembled server, ready to Run.
type Application struct {
	cfg      config.Config
	sessions *session.Registry
	catalog  *catalog.Catalog
	mcp      *server.MCPServer
	viewer   *viewer.Server
}

// NewApplication loads configuration, applies overrides and assembles
// all components.
func NewApplication(opts Options) (*Application, error) {
	level := logging.LevelInfo
	if opts.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Transport != "" {
		cfg.Server.Transport = opts.Transport
	}
	if opts.PromptText != "" {
		cfg.Prompt.Text = opts.PromptText
	}
	if opts.PromptFile != "" {
		cfg.Prompt.File = opts.PromptFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.Prompt.Text, cfg.Prompt.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load layer catalog: %w", err)
	}

	sessions := session.NewRegistry()

	mcpServer := server.NewMCPServer(
		serverName,
		opts.Version,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)
	maptools.NewService(sessions, cat).Register(mcpServer)

	return &Application{
		cfg:      cfg,
		sessions: sessions,
		catalog:  cat,
		mcp:      mcpServer,
		viewer:   viewer.New(sessions),
	}, nil
}

// Run starts the HTTP listener (viewer endpoints plus the MCP
// transport unless it is stdio) and blocks until the context is
// cancelled or a server fails.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	a.viewer.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)

	switch a.cfg.Server.Transport {
	case config.TransportStdio:
		logging.Info("App", "Starting MCP server on stdio")
		stdioServer := server.NewStdioServer(a.mcp)
		g.Go(func() error {
			if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
				return fmt.Errorf("stdio server: %w", err)
			}
			return nil
		})

	case config.TransportSSE:
		logging.Info("App", "Mounting MCP SSE transport at /sse on %s", addr)
		sseServer := server.NewSSEServer(
			a.mcp,
			server.WithBaseURL(fmt.Sprintf("http://%s", addr)),
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
			server.WithKeepAlive(true),
			server.WithKeepAliveInterval(30*time.Second),
		)
		mux.Handle("/sse", sseServer)
		mux.Handle("/message", sseServer)

	default:
		logging.Info("App", "Mounting MCP streamable-http transport at /mcp on %s", addr)
		streamableServer := server.NewStreamableHTTPServer(a.mcp)
		mux.Handle("/mcp", streamableServer)
		mux.Handle("/mcp/", streamableServer)
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g.Go(func() error {
		logging.Info("App", "HTTP server running on http://%s", addr)
		logging.Info("App", "  Map viewer: http://%s/", addr)
		logging.Info("App", "  Live stream: http://%s/events", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("App", err, "Error shutting down HTTP server")
		}
		return nil
	})

	g.Go(func() error {
		return a.catalog.Watch(ctx)
	})

	return g.Wait()
}
