// Package guard implements the per-request downgrade-loop and HSTS policy:
// the redirect classifier, the plain-HTTP admission filter and the
// Strict-Transport-Security header synthesizer, all sharing one loop tracker.
package guard

import (
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/hstswatch/internal/hsts"
	"github.com/ppiankov/hstswatch/internal/ignore"
	"github.com/ppiankov/hstswatch/internal/looptrack"
	"github.com/ppiankov/hstswatch/internal/policy"
)

// Header is one response header entry. Sequences of headers are ordered and
// may contain duplicate names.
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// RedirectEvent is delivered when an https request is redirected.
type RedirectEvent struct {
	RequestID   string
	URL         string
	RedirectURL string
}

// RequestEvent is delivered before a plain-http request is sent.
type RequestEvent struct {
	RequestID string
	URL       string
}

// ResponseEvent is delivered when the headers of an https response arrive.
type ResponseEvent struct {
	RequestID string
	URL       string
	Headers   []Header
}

// Recorder receives every decision the guard makes.
type Recorder interface {
	Record(d Decision)
}

// Config wires the guard's collaborators.
type Config struct {
	Ignore   *ignore.List
	Tracker  *looptrack.Tracker
	Policy   *policy.Runtime
	MaxAge   time.Duration
	Logger   zerolog.Logger
	Recorder Recorder
}

// Guard evaluates network events against the downgrade-loop policy. It is
// safe for concurrent use.
type Guard struct {
	ignore   *ignore.List
	tracker  *looptrack.Tracker
	policy   *policy.Runtime
	maxAge   time.Duration
	log      zerolog.Logger
	recorder Recorder

	mu     sync.Mutex
	counts map[Kind]int64
}

// New creates a Guard. A nil tracker or policy is replaced by a default one;
// a zero MaxAge selects hsts.DefaultMaxAge.
func New(cfg Config) *Guard {
	if cfg.Tracker == nil {
		cfg.Tracker = looptrack.New(0, 0)
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.NewRuntime(false)
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = hsts.DefaultMaxAge
	}
	return &Guard{
		ignore:   cfg.Ignore,
		tracker:  cfg.Tracker,
		policy:   cfg.Policy,
		maxAge:   cfg.MaxAge,
		log:      cfg.Logger,
		recorder: cfg.Recorder,
		counts:   make(map[Kind]int64),
	}
}

// Tracker exposes the loop tracker shared by the handlers.
func (g *Guard) Tracker() *looptrack.Tracker { return g.tracker }

// Policy exposes the runtime policy.
func (g *Guard) Policy() *policy.Runtime { return g.policy }

// ShouldIgnore reports whether HSTS enforcement is skipped for hostname.
func (g *Guard) ShouldIgnore(hostname string) bool {
	return g.ignore.ShouldIgnore(hostname)
}

// Counts returns how many decisions of each kind were made.
func (g *Guard) Counts() map[Kind]int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[Kind]int64, len(g.counts))
	for k, v := range g.counts {
		out[k] = v
	}
	return out
}

func (g *Guard) record(kind Kind, id, rawURL, detail string) {
	g.mu.Lock()
	g.counts[kind]++
	g.mu.Unlock()

	if g.recorder != nil {
		g.recorder.Record(Decision{
			Time:      time.Now().UTC(),
			Kind:      kind,
			RequestID: id,
			URL:       rawURL,
			Detail:    detail,
		})
	}
}

// recoverHandler logs a panic raised inside a handler. Handlers pair it with
// an inert default result so nothing propagates to the host; undo, when set,
// rolls back any tracker change the handler made before panicking so the
// tracker agrees with that inert result.
func (g *Guard) recoverHandler(handler, id string, undo func()) {
	r := recover()
	if r == nil {
		return
	}
	if undo != nil {
		undo()
	}
	g.log.Error().Str("handler", handler).Str("id", id).Interface("panic", r).Msg("handler panicked, falling back to pass-through")
}

// hostname extracts the hostname of rawURL, or "" when it cannot be parsed.
func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
