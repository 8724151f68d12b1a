package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/hstswatch/internal/guard"
)

// VerifyResult reports on one audit log. Lines and Sessions count the
// entries that passed, so on failure they describe the intact prefix.
type VerifyResult struct {
	Valid     bool           `json:"valid"`
	Lines     int            `json:"lines"`
	Sessions  map[string]int `json:"sessions,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorLine int            `json:"error_line,omitempty"`
}

// Verify checks that every line of the log at path is a known guard decision
// stamped with a session id and linked to the line before it.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	res := VerifyResult{Sessions: make(map[string]int)}
	want := GenesisHash
	err = eachLine(f, func(n int, line []byte) error {
		e, err := checkEntry(line, want)
		if err != nil {
			res.ErrorLine = n
			return err
		}
		want = HashLine(line)
		res.Lines = n
		res.Sessions[e.SessionID]++
		return nil
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Valid = true
	return res
}

func checkEntry(line []byte, prev string) (AuditEntry, error) {
	var e AuditEntry
	if err := json.Unmarshal(line, &e); err != nil {
		return e, fmt.Errorf("parse error: %v", err)
	}
	if e.PrevHash != prev {
		if prev == GenesisHash {
			return e, fmt.Errorf("first entry prev_hash is %q, expected genesis hash", e.PrevHash)
		}
		return e, fmt.Errorf("hash mismatch: expected %s, got %s", prev, e.PrevHash)
	}
	if e.SessionID == "" {
		return e, errors.New("entry has no session_id")
	}
	if !guard.Kind(e.Decision).Known() {
		return e, fmt.Errorf("unknown decision %q", e.Decision)
	}
	return e, nil
}
