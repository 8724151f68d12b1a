package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	label := result.SessionID
	if label == "" {
		label = "all sessions"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Session: %s | No entries found.\n", label)
	}

	var b strings.Builder

	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	fmt.Fprintf(&b, "Session: %s | %s–%s UTC\n", label, first, last)
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		fmt.Fprintf(&b, "%-10s %-18s %-8s %s\n",
			formatTimeOnly(e.Timestamp),
			strings.ToUpper(e.Decision),
			truncate(e.RequestID, 8),
			truncate(e.URL, 60))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	names := make([]string, 0, len(s.ByDecision))
	for name := range s.ByDecision {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByDecision[name], name))
	}
	return fmt.Sprintf("Summary: %d decisions | %s\n", s.Total, strings.Join(parts, ", "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
