package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/hstswatch/internal/guard"
	"github.com/ppiankov/hstswatch/internal/ignore"
	"github.com/ppiankov/hstswatch/internal/policy"
)

// Preferences is the preference store written by the set tool.
type Preferences interface {
	SetBool(key string, value bool) error
}

// Config holds MCP server configuration.
type Config struct {
	Guard     *guard.Guard
	Ignore    *ignore.List
	Prefs     Preferences // nil updates the in-process policy only
	SessionID string
	Version   string
	Logger    zerolog.Logger
}

// Server exposes the running guard to MCP clients.
type Server struct {
	mcpServer *mcpsdk.Server
	guard     *guard.Guard
	ignore    *ignore.List
	prefs     Preferences
	sessionID string
	log       zerolog.Logger
}

// New creates an MCP server and registers its tools.
func New(cfg Config) *Server {
	g := cfg.Guard
	if g == nil {
		g = guard.New(guard.Config{Ignore: cfg.Ignore, Policy: policy.NewRuntime(false), Logger: cfg.Logger})
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		guard:     g,
		ignore:    cfg.Ignore,
		prefs:     cfg.Prefs,
		sessionID: cfg.SessionID,
		log:       cfg.Logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "hstswatch",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all hstswatch tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hstswatch_check_host",
		Description: "Report whether HSTS enforcement is skipped for a hostname or URL, and which ignore rule matched.",
	}, s.handleCheckHost)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hstswatch_status",
		Description: "Show the block-downgrades policy, the number of flagged requests in flight and decision counters.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hstswatch_set_block_downgrades",
		Description: "Turn cancellation of downgraded requests in a redirect loop on or off. Persists to the preference store.",
	}, s.handleSetBlockDowngrades)
}
