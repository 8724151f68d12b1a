package audit

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/hstswatch/internal/guard"
)

func TestRecorderWritesDecisions(t *testing.T) {
	l, path := newTestLog(t)
	rec := NewRecorder(l, zerolog.Nop())

	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	rec.Record(guard.Decision{Time: now, Kind: guard.LoopFlagged, RequestID: "7", URL: "https://a.com/x", Detail: "http://a.com/x"})
	rec.Record(guard.Decision{Time: now.Add(time.Second), Kind: guard.RequestAllowed, RequestID: "7", URL: "http://a.com/x"})
	rec.Record(guard.Decision{Time: now.Add(2 * time.Second), Kind: guard.HSTSDisabled, RequestID: "7", URL: "https://a.com/x"})
	l.Close()

	if v := Verify(path); !v.Valid || v.Lines != 3 {
		t.Fatalf("expected valid 3-line chain, got %+v", v)
	}

	result, err := Replay(path, ReplayFilter{SessionID: "s-test123"})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if result.Summary.Total != 3 {
		t.Fatalf("expected 3 entries, got %d", result.Summary.Total)
	}
	if result.Summary.ByDecision["hsts_disabled"] != 1 {
		t.Errorf("expected one hsts_disabled, got %v", result.Summary.ByDecision)
	}
	if result.Entries[0].Detail != "http://a.com/x" {
		t.Errorf("expected detail to be kept, got %q", result.Entries[0].Detail)
	}
	if result.Summary.FirstTimestamp != "2025-01-15T10:30:00.000Z" {
		t.Errorf("unexpected first timestamp %q", result.Summary.FirstTimestamp)
	}
}

func TestRecorderLogsWriteFailure(t *testing.T) {
	l, _ := newTestLog(t)
	var buf bytes.Buffer
	rec := NewRecorder(l, zerolog.New(&buf))
	l.Close()

	rec.Record(guard.Decision{Time: time.Now(), Kind: guard.HSTSEnabled, RequestID: "7", URL: "https://a.com/"})

	out := buf.String()
	if !strings.Contains(out, "audit write failed") || !strings.Contains(out, `"session":"s-test123"`) {
		t.Errorf("expected write failure to be logged, got %q", out)
	}
}

func TestReplayFilters(t *testing.T) {
	l, path := newTestLog(t)
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"1", "2", "1"} {
		e := testEntry("loop_flagged")
		e.RequestID = id
		e.Timestamp = base.Add(time.Duration(i) * time.Minute).Format(TimestampFormat)
		l.Record(e)
	}
	other := testEntry("hsts_enabled")
	other.SessionID = "s-other"
	l.Record(other)
	l.Close()

	byReq, err := Replay(path, ReplayFilter{RequestID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if byReq.Summary.Total != 2 {
		t.Errorf("expected 2 entries for request 1, got %d", byReq.Summary.Total)
	}

	bySession, _ := Replay(path, ReplayFilter{SessionID: "s-other"})
	if bySession.Summary.Total != 1 {
		t.Errorf("expected 1 entry for s-other, got %d", bySession.Summary.Total)
	}

	byTime, _ := Replay(path, ReplayFilter{SessionID: "s-test123", From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)})
	if byTime.Summary.Total != 1 || byTime.Entries[0].RequestID != "2" {
		t.Errorf("expected only the middle entry, got %+v", byTime.Entries)
	}
}

func TestFormatTimeline(t *testing.T) {
	result := &ReplayResult{
		SessionID: "s-1",
		Entries: []AuditEntry{
			{Timestamp: "2025-01-15T10:30:00.000Z", Decision: "loop_flagged", RequestID: "7", URL: "https://a.com/x"},
			{Timestamp: "2025-01-15T10:30:01.000Z", Decision: "hsts_disabled", RequestID: "7", URL: "https://a.com/x"},
		},
		Summary: ReplaySummary{
			Total:          2,
			ByDecision:     map[string]int{"loop_flagged": 1, "hsts_disabled": 1},
			FirstTimestamp: "2025-01-15T10:30:00.000Z",
			LastTimestamp:  "2025-01-15T10:30:01.000Z",
		},
	}

	out := FormatTimeline(result)
	for _, want := range []string{"Session: s-1", "LOOP_FLAGGED", "HSTS_DISABLED", "Summary: 2 decisions", "1 hsts_disabled, 1 loop_flagged"} {
		if !strings.Contains(out, want) {
			t.Errorf("timeline missing %q:\n%s", want, out)
		}
	}

	empty := FormatTimeline(&ReplayResult{})
	if !strings.Contains(empty, "No entries found") {
		t.Errorf("unexpected empty output %q", empty)
	}
}
