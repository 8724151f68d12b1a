package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxAge != 15570000 {
		t.Errorf("expected default max_age, got %d", cfg.MaxAge)
	}
	if cfg.MaxAgeDuration() != 15570000*time.Second {
		t.Errorf("unexpected duration %v", cfg.MaxAgeDuration())
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeTempFile(t, "config.yaml", `
max_age: 600
tracker:
  ttl: 30s
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxAge != 600 {
		t.Errorf("expected max_age 600, got %d", cfg.MaxAge)
	}
	if cfg.Tracker.TTL != 30*time.Second {
		t.Errorf("expected ttl 30s, got %v", cfg.Tracker.TTL)
	}
	if cfg.Tracker.Size != 4096 {
		t.Errorf("unspecified fields keep defaults, got size %d", cfg.Tracker.Size)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxBackups != 3 {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.DevToolsURL != "http://127.0.0.1:9222" {
		t.Errorf("unexpected devtools url %q", cfg.DevToolsURL)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"yaml":    "max_age: [",
		"max_age": "max_age: 0",
		"size":    "tracker: {size: -1}",
		"workers": "workers: -2",
	}
	for name, content := range tests {
		path := writeTempFile(t, "config.yaml", content)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := ExpandPath("~/.hstswatch/prefs.db"); got != filepath.Join(home, ".hstswatch", "prefs.db") {
		t.Errorf("unexpected expansion %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute paths are unchanged, got %q", got)
	}
}

func TestDefaultYAMLLoads(t *testing.T) {
	data, err := DefaultYAML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "max_age: 15570000") {
		t.Errorf("expected max_age in output:\n%s", data)
	}
	path := writeTempFile(t, "config.yaml", string(data))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracker.TTL != 5*time.Minute {
		t.Errorf("expected ttl to round-trip, got %v", cfg.Tracker.TTL)
	}
}
