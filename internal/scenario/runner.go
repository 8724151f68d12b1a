package scenario

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hstswatch/internal/guard"
	"github.com/ppiankov/hstswatch/internal/hsts"
	"github.com/ppiankov/hstswatch/internal/ignore"
	"github.com/ppiankov/hstswatch/internal/looptrack"
	"github.com/ppiankov/hstswatch/internal/policy"
)

// Run replays all steps of a scenario through a fresh guard. Steps share the
// guard, so tracker state carries from one step to the next. A scenario
// without ignore rules uses the default list.
func Run(s *Scenario, logger zerolog.Logger) *RunResult {
	list := ignore.NewDefault()
	if len(s.Ignore) > 0 {
		list = ignore.New(s.Ignore)
	}
	rt := policy.NewRuntime(s.BlockDowngrades)
	g := guard.New(guard.Config{
		Ignore:  list,
		Tracker: looptrack.New(0, 0),
		Policy:  rt,
		Logger:  logger,
	})

	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Steps),
	}

	for i, step := range s.Steps {
		sr := runStep(g, rt, step)
		sr.Index = i + 1
		if sr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Steps = append(result.Steps, sr)
	}

	return result
}

func runStep(g *guard.Guard, rt *policy.Runtime, step Step) StepResult {
	if n := countEvents(step); n != 1 {
		return StepResult{
			Event:  "invalid",
			Actual: "invalid",
			Reason: fmt.Sprintf("step must set exactly one event, got %d", n),
		}
	}

	var (
		sr      StepResult
		id      string
		headers []guard.Header
	)

	switch {
	case step.Redirect != nil:
		id = step.Redirect.ID
		v := g.OnBeforeRedirect(guard.RedirectEvent{RequestID: id, URL: step.Redirect.URL, RedirectURL: step.Redirect.To})
		sr = StepResult{Event: "redirect", Actual: string(v)}

	case step.Request != nil:
		id = step.Request.ID
		a := g.OnBeforeRequest(guard.RequestEvent{RequestID: id, URL: step.Request.URL})
		sr = StepResult{Event: "request", Actual: string(a.Outcome)}

	case step.Response != nil:
		id = step.Response.ID
		d := g.OnHeadersReceived(guard.ResponseEvent{RequestID: id, URL: step.Response.URL, Headers: step.Response.Headers})
		sr = StepResult{Event: "response", Actual: string(d.Outcome)}
		headers = d.Headers

	case step.SetPolicy != nil:
		rt.SetBlockDowngrades(step.SetPolicy.BlockDowngrades)
		return StepResult{
			Event:    "set_policy",
			Passed:   true,
			Expected: fmt.Sprintf("block_downgrades=%t", step.SetPolicy.BlockDowngrades),
			Actual:   fmt.Sprintf("block_downgrades=%t", rt.BlockDowngrades()),
		}
	}

	sr.RequestID = id
	sr.Expected = strings.ToLower(step.Expect)
	if sr.Expected == "" {
		sr.Expected = sr.Actual
	}

	var reasons []string
	if sr.Expected != sr.Actual {
		reasons = append(reasons, fmt.Sprintf("outcome %s", sr.Actual))
	}
	if step.Header != nil {
		if step.Response == nil {
			reasons = append(reasons, "header expectation on a non-response step")
		} else if got := stsValue(headers); got != *step.Header {
			reasons = append(reasons, fmt.Sprintf("header %q, want %q", got, *step.Header))
		}
	}
	if step.Marked != nil {
		if got := g.Tracker().IsMarked(id); got != *step.Marked {
			reasons = append(reasons, fmt.Sprintf("marked=%t, want %t", got, *step.Marked))
		}
	}

	sr.Passed = len(reasons) == 0
	sr.Reason = strings.Join(reasons, "; ")
	return sr
}

func countEvents(step Step) int {
	n := 0
	if step.Redirect != nil {
		n++
	}
	if step.Request != nil {
		n++
	}
	if step.Response != nil {
		n++
	}
	if step.SetPolicy != nil {
		n++
	}
	return n
}

// stsValue returns the last Strict-Transport-Security value, or "".
func stsValue(headers []guard.Header) string {
	var v string
	for _, h := range headers {
		if hsts.IsHeader(h.Name) {
			v = h.Value
		}
	}
	return v
}

// Parse decodes a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file and runs it.
func LoadAndRun(path string, logger zerolog.Logger) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	result := Run(s, logger)
	result.File = path

	return result, nil
}
