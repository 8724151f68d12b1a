package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleSinkRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := New(Options{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line must be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warn line, got %q", out)
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hstswatch.log")
	l, closer, err := New(Options{Level: "debug", File: path, NoConsole: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cl := Component(l, "guard")
	cl.Info().Str("id", "7").Msg("flagging downgrade redirect")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", data, err)
	}
	if line["component"] != "guard" || line["id"] != "7" {
		t.Errorf("unexpected fields %v", line)
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
