package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ppiankov/hstswatch/internal/guard"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ptr[T any](v T) *T { return &v }

func TestBuiltinScenariosPass(t *testing.T) {
	scenarios, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	if len(scenarios) != 4 {
		t.Fatalf("expected 4 builtin scenarios, got %d", len(scenarios))
	}
	for _, s := range scenarios {
		result := Run(s, zerolog.Nop())
		if result.Failed != 0 {
			t.Errorf("%s: %d failed steps: %+v", s.Name, result.Failed, result.Steps)
		}
		if result.Total == 0 {
			t.Errorf("%s: no steps", s.Name)
		}
	}
}

func TestFailedExpectationDetected(t *testing.T) {
	s := &Scenario{
		Name: "wrong expectation",
		Steps: []Step{
			{Redirect: &RedirectStep{ID: "1", URL: "https://a.com/x", To: "http://a.com/x"}, Expect: "not_flagged"},
		},
	}

	result := Run(s, zerolog.Nop())
	if result.Failed != 1 || result.Passed != 0 {
		t.Fatalf("expected 1 failure, got %+v", result)
	}
	if result.Steps[0].Actual != "flagged" {
		t.Errorf("expected actual flagged, got %s", result.Steps[0].Actual)
	}
}

func TestSetPolicyStep(t *testing.T) {
	s := &Scenario{
		Name: "policy flip",
		Steps: []Step{
			{Redirect: &RedirectStep{ID: "1", URL: "https://a.com/x", To: "http://a.com/x"}, Expect: "flagged"},
			{SetPolicy: &PolicyStep{BlockDowngrades: true}},
			{Request: &RequestStep{ID: "1", URL: "http://a.com/x"}, Expect: "cancel", Marked: ptr(false)},
		},
	}

	result := Run(s, zerolog.Nop())
	if result.Failed != 0 {
		t.Errorf("expected all steps to pass, got %+v", result.Steps)
	}
}

func TestHeaderExpectation(t *testing.T) {
	s := &Scenario{
		Name: "existing header",
		Steps: []Step{
			{
				Response: &ResponseStep{
					ID:      "2",
					URL:     "https://a.com/",
					Headers: []guard.Header{{Name: "Strict-Transport-Security", Value: "max-age=60"}},
				},
				Expect: "existing",
				Header: ptr("max-age=60"),
			},
			{
				Response: &ResponseStep{ID: "3", URL: "https://a.com/"},
				Expect:   "enabled",
				Header:   ptr("max-age=1;"),
			},
		},
	}

	result := Run(s, zerolog.Nop())
	if !result.Steps[0].Passed {
		t.Errorf("step 1: %s", result.Steps[0].Reason)
	}
	if result.Steps[1].Passed {
		t.Error("step 2 must fail on the header value")
	}
	if !strings.Contains(result.Steps[1].Reason, "max-age=15570000;") {
		t.Errorf("reason should show the actual header, got %q", result.Steps[1].Reason)
	}
}

func TestInvalidStep(t *testing.T) {
	s := &Scenario{
		Name: "invalid",
		Steps: []Step{
			{},
			{Request: &RequestStep{ID: "1"}, Redirect: &RedirectStep{ID: "1"}},
		},
	}
	result := Run(s, zerolog.Nop())
	if result.Failed != 2 {
		t.Errorf("expected 2 invalid steps, got %+v", result.Steps)
	}
}

func TestLoadAndRunFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "test.yaml", `
name: "file test"
ignore:
  - exact: a.com
steps:
  - response: {id: "1", url: "https://a.com/"}
    expect: skipped
    header: ""
`)

	result, err := LoadAndRun(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %+v", result.Steps)
	}
	if result.File != path {
		t.Errorf("expected file %s, got %s", path, result.File)
	}
}

func TestLoadAndRunErrors(t *testing.T) {
	if _, err := LoadAndRun(filepath.Join(t.TempDir(), "missing.yaml"), zerolog.Nop()); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeScenario(t, t.TempDir(), "bad.yaml", "steps: [")
	if _, err := LoadAndRun(path, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestFormatText(t *testing.T) {
	results := []*RunResult{
		{Name: "ok", Total: 2, Passed: 2},
		{Name: "bad", Total: 1, Failed: 1, Steps: []StepResult{
			{Index: 1, Event: "request", RequestID: "7", Expected: "cancel", Actual: "allow", Reason: "outcome allow"},
		}},
	}
	out := FormatText(results)
	for _, want := range []string{"PASS  ok (2/2)", "FAIL  bad (0/1)", "step 1: request", "2 of 3 steps passed.", "1 of 2 scenarios failed."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	out, err := FormatJSON([]*RunResult{{Name: "ok", Total: 1, Passed: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"name": "ok"`) {
		t.Errorf("unexpected JSON %s", out)
	}
}
