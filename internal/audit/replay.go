package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ReplayFilter holds filtering criteria for a replay. Empty fields match
// everything.
type ReplayFilter struct {
	SessionID string
	RequestID string
	From      time.Time // zero value = no lower bound
	To        time.Time // zero value = no upper bound
}

// ReplaySummary holds decision counts and metadata for a replayed log.
type ReplaySummary struct {
	Total          int            `json:"total"`
	ByDecision     map[string]int `json:"by_decision"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and summary.
type ReplayResult struct {
	SessionID string        `json:"session_id,omitempty"`
	Entries   []AuditEntry  `json:"entries"`
	Summary   ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{
		SessionID: filter.SessionID,
		Summary:   ReplaySummary{ByDecision: make(map[string]int)},
	}

	err = eachLine(f, func(_ int, line []byte) error {
		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil // skip malformed lines
		}
		if filter.match(entry) {
			result.Entries = append(result.Entries, entry)
			updateSummary(&result.Summary, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func (f ReplayFilter) match(entry AuditEntry) bool {
	if f.SessionID != "" && entry.SessionID != f.SessionID {
		return false
	}
	if f.RequestID != "" && entry.RequestID != f.RequestID {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, entry.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	return f.To.IsZero() || !ts.After(f.To)
}

func updateSummary(s *ReplaySummary, entry AuditEntry) {
	s.Total++
	s.ByDecision[entry.Decision]++

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
