package scenario

import (
	"github.com/ppiankov/hstswatch/internal/guard"
	"github.com/ppiankov/hstswatch/internal/ignore"
)

// RedirectStep replays a redirect of an https request.
type RedirectStep struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
	To  string `yaml:"to"`
}

// RequestStep replays a plain-http request about to be sent.
type RequestStep struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// ResponseStep replays the headers of an https response.
type ResponseStep struct {
	ID      string         `yaml:"id"`
	URL     string         `yaml:"url"`
	Headers []guard.Header `yaml:"headers,omitempty"`
}

// PolicyStep flips the block-downgrades preference mid-scenario.
type PolicyStep struct {
	BlockDowngrades bool `yaml:"block_downgrades"`
}

// Step is one event. Exactly one of Redirect, Request, Response or SetPolicy
// is set.
type Step struct {
	Redirect  *RedirectStep `yaml:"redirect,omitempty"`
	Request   *RequestStep  `yaml:"request,omitempty"`
	Response  *ResponseStep `yaml:"response,omitempty"`
	SetPolicy *PolicyStep   `yaml:"set_policy,omitempty"`

	// Expect is the handler outcome: a redirect verdict, an admission
	// outcome or a header outcome.
	Expect string `yaml:"expect,omitempty"`
	// Header is the expected Strict-Transport-Security value after a
	// response step; "" asserts that no such header is present.
	Header *string `yaml:"header,omitempty"`
	// Marked is the expected tracker state for the step's request id.
	Marked *bool `yaml:"marked,omitempty"`
}

// Scenario is a named sequence of events replayed through one guard.
type Scenario struct {
	Name            string        `yaml:"name"`
	BlockDowngrades bool          `yaml:"block_downgrades"`
	Ignore          []ignore.Spec `yaml:"ignore,omitempty"`
	Steps           []Step        `yaml:"steps"`
}

// StepResult is the outcome of replaying one step.
type StepResult struct {
	Index     int    `json:"index"`
	Passed    bool   `json:"passed"`
	Event     string `json:"event"`
	RequestID string `json:"request_id,omitempty"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
	Reason    string `json:"reason,omitempty"`
}

// RunResult is the outcome of running all steps in one scenario.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Steps  []StepResult `json:"steps"`
}
