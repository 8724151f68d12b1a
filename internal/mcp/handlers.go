package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/hstswatch/internal/policy"
)

// --- Input/Output types ---

// CheckHostInput defines parameters for the hstswatch_check_host tool.
type CheckHostInput struct {
	Host string `json:"host" jsonschema:"hostname or absolute URL to check"`
}

// CheckHostOutput reports the ignore verdict.
type CheckHostOutput struct {
	Hostname string `json:"hostname"`
	Ignored  bool   `json:"ignored"`
	Rule     string `json:"rule,omitempty"`
	RuleKind string `json:"rule_kind,omitempty"`
}

// StatusInput is empty.
type StatusInput struct{}

// StatusOutput describes the live engine state.
type StatusOutput struct {
	SessionID       string           `json:"session_id,omitempty"`
	BlockDowngrades bool             `json:"block_downgrades"`
	Flagged         int              `json:"flagged"`
	OldestFlagID    string           `json:"oldest_flag_id,omitempty"`
	OldestFlagAge   float64          `json:"oldest_flag_age_seconds,omitempty"`
	IgnoreRules     int              `json:"ignore_rules"`
	Decisions       map[string]int64 `json:"decisions"`
}

// SetBlockDowngradesInput defines parameters for hstswatch_set_block_downgrades.
type SetBlockDowngradesInput struct {
	Enabled bool `json:"enabled" jsonschema:"true cancels downgraded requests in a redirect loop"`
}

// SetBlockDowngradesOutput confirms the new value.
type SetBlockDowngradesOutput struct {
	BlockDowngrades bool `json:"block_downgrades"`
	Persisted       bool `json:"persisted"`
}

// --- Handlers ---

func (s *Server) handleCheckHost(_ context.Context, _ *mcpsdk.CallToolRequest, input CheckHostInput) (*mcpsdk.CallToolResult, CheckHostOutput, error) {
	host, err := hostOf(input.Host)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, CheckHostOutput{}, nil
	}

	out := CheckHostOutput{Hostname: host}
	if rule, ok := s.ignore.Match(host); ok {
		out.Ignored = true
		out.Rule = rule.String()
		out.RuleKind = rule.Kind().String()
	}
	return nil, out, nil
}

func (s *Server) handleStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	counts := s.guard.Counts()
	decisions := make(map[string]int64, len(counts))
	for k, v := range counts {
		decisions[string(k)] = v
	}

	out := StatusOutput{
		SessionID:       s.sessionID,
		BlockDowngrades: s.guard.Policy().BlockDowngrades(),
		Flagged:         s.guard.Tracker().Len(),
		IgnoreRules:     s.ignore.Len(),
		Decisions:       decisions,
	}
	// A mark that lingers means a redirect chain never reached its response.
	if id, at, ok := s.guard.Tracker().Oldest(); ok {
		out.OldestFlagID = id
		out.OldestFlagAge = time.Since(at).Seconds()
	}
	return nil, out, nil
}

func (s *Server) handleSetBlockDowngrades(_ context.Context, _ *mcpsdk.CallToolRequest, input SetBlockDowngradesInput) (*mcpsdk.CallToolResult, SetBlockDowngradesOutput, error) {
	out := SetBlockDowngradesOutput{}
	if s.prefs != nil {
		if err := s.prefs.SetBool(policy.PrefBlockDowngrades, input.Enabled); err != nil {
			s.log.Error().Err(err).Msg("persist block-downgrades preference")
			return &mcpsdk.CallToolResult{IsError: true}, out, nil
		}
		out.Persisted = true
	}

	s.guard.Policy().SetBlockDowngrades(input.Enabled)
	out.BlockDowngrades = s.guard.Policy().BlockDowngrades()
	s.log.Info().Bool("block_downgrades", out.BlockDowngrades).Msg("policy updated over MCP")
	return nil, out, nil
}

// hostOf accepts a bare hostname or an absolute URL.
func hostOf(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty host")
	}
	if !strings.Contains(raw, "://") {
		return strings.ToLower(raw), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no hostname in %q", raw)
	}
	return u.Hostname(), nil
}
