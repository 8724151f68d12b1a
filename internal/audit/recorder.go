package audit

import (
	"github.com/rs/zerolog"

	"github.com/ppiankov/hstswatch/internal/guard"
)

// Recorder adapts a Log to guard.Recorder. Write failures are logged and
// never reach the guard.
type Recorder struct {
	log    *Log
	logger zerolog.Logger
}

// NewRecorder creates a recorder writing under the log's session.
func NewRecorder(l *Log, logger zerolog.Logger) *Recorder {
	return &Recorder{log: l, logger: logger}
}

// Record appends d to the audit log.
func (r *Recorder) Record(d guard.Decision) {
	err := r.log.Record(AuditEntry{
		Timestamp: d.Time.UTC().Format(TimestampFormat),
		Decision:  string(d.Kind),
		RequestID: d.RequestID,
		URL:       d.URL,
		Detail:    d.Detail,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("decision", string(d.Kind)).Str("session", r.log.Session()).Msg("audit write failed")
	}
}
