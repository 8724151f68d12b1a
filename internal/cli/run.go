package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/browser"
	"github.com/ppiankov/hstswatch/internal/logging"
	hstsmcp "github.com/ppiankov/hstswatch/internal/mcp"
	"github.com/ppiankov/hstswatch/internal/policy"
	"github.com/ppiankov/hstswatch/internal/prefs"
)

var (
	runDevTools        string
	runTarget          string
	runBlockDowngrades bool
	runMCP             bool
	runWorkers         int
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runDevTools, "devtools", "", "DevTools HTTP endpoint (default from config)")
	runCmd.Flags().StringVar(&runTarget, "target", "", "Target id or URL substring (default: first page)")
	runCmd.Flags().BoolVar(&runBlockDowngrades, "block-downgrades", false, "Store the block-downgrades preference before starting")
	runCmd.Flags().BoolVar(&runMCP, "mcp", false, "Also serve MCP tools on stdio")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent paused requests (default from config)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach to a browser and enforce HSTS",
	Long: "Connects to a Chromium DevTools endpoint (start the browser with\n" +
		"--remote-debugging-port=9222), intercepts plain-http requests and https\n" +
		"responses, and applies the HSTS and downgrade-loop policy until interrupted.",
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDevTools != "" {
		cfg.DevToolsURL = runDevTools
	}
	if runWorkers > 0 {
		cfg.Workers = runWorkers
	}

	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	eng, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	if cmd.Flags().Changed("block-downgrades") {
		if err := eng.prefs.SetBool(policy.PrefBlockDowngrades, runBlockDowngrades); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := prefs.NewWatcher(eng.prefs)
	if err != nil {
		log.Warn().Err(err).Msg("preference changes from other processes will not be picked up")
	} else {
		go watcher.Run(ctx)
	}

	host := browser.New(browser.Config{
		DevToolsURL: cfg.DevToolsURL,
		Target:      runTarget,
		Guard:       eng.guard,
		Logger:      logging.Component(log, "browser"),
		Workers:     cfg.Workers,
	})
	if err := host.Attach(ctx); err != nil {
		if errors.Is(err, browser.ErrNoTarget) {
			return fmt.Errorf("%w (is the browser running with --remote-debugging-port?)", err)
		}
		return err
	}
	defer host.Close()

	if runMCP {
		srv := hstsmcp.New(hstsmcp.Config{
			Guard:     eng.guard,
			Ignore:    eng.ignore,
			Prefs:     eng.prefs,
			SessionID: eng.sessionID,
			Version:   version,
			Logger:    logging.Component(log, "mcp"),
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("mcp server stopped")
			}
		}()
	}

	log.Info().
		Str("session", eng.sessionID).
		Str("devtools", cfg.DevToolsURL).
		Bool("block_downgrades", eng.policy.BlockDowngrades()).
		Int("ignore_rules", eng.ignore.Len()).
		Msg("hstswatch running")

	err = host.Run(ctx)

	counts := eng.guard.Counts()
	ev := log.Info().Str("session", eng.sessionID)
	for k, v := range counts {
		ev = ev.Int64(string(k), v)
	}
	ev.Msg("hstswatch stopped")

	return err
}
