package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/config"
	"github.com/ppiankov/hstswatch/internal/logging"
)

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.hstswatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
}

var rootCmd = &cobra.Command{
	Use:   "hstswatch",
	Short: "HSTS enforcement and downgrade-loop breaker for Chromium",
	Long: "Adds a Strict-Transport-Security header to https responses that lack one,\n" +
		"and detects sites that redirect https to http, disabling HSTS for them so\n" +
		"the browser does not get stuck in a redirect loop.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	l, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       config.ExpandPath(cfg.Log.File),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return l, closer, fmt.Errorf("init logging: %w", err)
	}
	return l, closer, nil
}
