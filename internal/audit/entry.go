package audit

// AuditEntry is one line in the hash-chained JSONL decision log.
// All fields are plain strings (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type AuditEntry struct {
	Timestamp string `json:"ts"`
	SessionID string `json:"session_id"`
	Decision  string `json:"decision"`
	RequestID string `json:"request_id"`
	URL       string `json:"url"`
	Detail    string `json:"detail,omitempty"`
	PrevHash  string `json:"prev_hash"`
}
