// Package config loads the hstswatch configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hstswatch/internal/looptrack"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".hstswatch"

// Tracker bounds the downgrade-loop tracker.
type Tracker struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// Log configures the logger.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Config holds all configurable parameters.
type Config struct {
	DevToolsURL string  `yaml:"devtools_url"`
	MaxAge      int64   `yaml:"max_age"`
	Tracker     Tracker `yaml:"tracker"`
	PrefsDB     string  `yaml:"prefs_db"`
	IgnoreFile  string  `yaml:"ignore_file"`
	AuditLog    string  `yaml:"audit_log"`
	Log         Log     `yaml:"log"`
	Workers     int     `yaml:"workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DevToolsURL: "http://127.0.0.1:9222",
		MaxAge:      15570000,
		Tracker: Tracker{
			Size: looptrack.DefaultSize,
			TTL:  looptrack.DefaultTTL,
		},
		PrefsDB:    "~/" + DirName + "/prefs.db",
		IgnoreFile: "~/" + DirName + "/ignore.yaml",
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Workers: 16,
	}
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Load loads configuration from a YAML file.
// Empty path falls back to ~/.hstswatch/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(dir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.MaxAge <= 0 {
		return fmt.Errorf("config: max_age must be positive, got %d", c.MaxAge)
	}
	if c.Tracker.Size < 0 {
		return fmt.Errorf("config: tracker.size must not be negative")
	}
	if c.Tracker.TTL < 0 {
		return fmt.Errorf("config: tracker.ttl must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative")
	}
	return nil
}

// MaxAgeDuration returns the default HSTS max-age.
func (c *Config) MaxAgeDuration() time.Duration {
	return time.Duration(c.MaxAge) * time.Second
}

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// DefaultYAML renders the default configuration with a short header.
func DefaultYAML() ([]byte, error) {
	body, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("config: marshal defaults: %w", err)
	}
	header := "# hstswatch configuration\n# max_age is the synthesized Strict-Transport-Security max-age in seconds.\n"
	return append([]byte(header), body...), nil
}
