package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/logging"
	hstsmcp "github.com/ppiankov/hstswatch/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs hstswatch as an MCP (Model Context Protocol) server over stdio\n" +
		"without attaching to a browser. Exposes: check_host, status,\n" +
		"set_block_downgrades. Use `run --mcp` to serve the tools alongside a\n" +
		"live browser session.",
	RunE: runMCPServer,
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	eng, err := openEngine(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer eng.Close()

	srv := hstsmcp.New(hstsmcp.Config{
		Guard:     eng.guard,
		Ignore:    eng.ignore,
		Prefs:     eng.prefs,
		SessionID: eng.sessionID,
		Version:   version,
		Logger:    logging.Component(log, "mcp"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "hstswatch MCP server running on stdio")
	return srv.Run(ctx)
}
