// Package browser attaches the guard to a Chromium browser through the
// DevTools protocol. Plain-http requests are paused at the request stage and
// https responses at the response stage, and each pause is answered with the
// guard's decision.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/rpcc"
	"github.com/rs/zerolog"

	"github.com/ppiankov/hstswatch/internal/guard"
)

// ErrNoTarget is returned when no matching page target is available.
var ErrNoTarget = errors.New("browser: no matching target")

// ErrNotAttached is returned by Run before a successful Attach.
var ErrNotAttached = errors.New("browser: not attached")

const (
	defaultWorkers = 16
	defaultTimeout = 3 * time.Second
)

// interceptedTypes mirrors the resource types a browser extension would
// filter on: frames, stylesheets, scripts, images, objects, XHR and other.
var interceptedTypes = []network.ResourceType{
	network.ResourceTypeDocument,
	network.ResourceTypeStylesheet,
	network.ResourceTypeScript,
	network.ResourceTypeImage,
	network.ResourceTypeXHR,
	network.ResourceTypeFetch,
	network.ResourceTypeOther,
}

// pausedClient is the part of the Fetch domain used to answer pauses.
type pausedClient interface {
	ContinueRequest(ctx context.Context, args *fetch.ContinueRequestArgs) error
	ContinueResponse(ctx context.Context, args *fetch.ContinueResponseArgs) error
	FailRequest(ctx context.Context, args *fetch.FailRequestArgs) error
}

// Config configures a Host.
type Config struct {
	DevToolsURL string
	// Target selects a page by target id or URL substring; empty picks the
	// first page.
	Target  string
	Guard   *guard.Guard
	Logger  zerolog.Logger
	Workers int
	// Timeout bounds how long answering one pause may take.
	Timeout time.Duration
}

// Host drives one DevTools connection.
type Host struct {
	cfg    Config
	log    zerolog.Logger
	conn   *rpcc.Conn
	client *cdp.Client
	target *devtool.Target
}

// New creates a Host. Call Attach before Run.
func New(cfg Config) *Host {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Host{cfg: cfg, log: cfg.Logger}
}

// Attach connects to the selected page target.
func (h *Host) Attach(ctx context.Context) error {
	dt := devtool.New(h.cfg.DevToolsURL)

	var sel *devtool.Target
	if h.cfg.Target == "" {
		t, err := dt.Get(ctx, devtool.Page)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoTarget, err)
		}
		sel = t
	} else {
		targets, err := dt.List(ctx)
		if err != nil {
			return fmt.Errorf("browser: list targets at %s: %w", h.cfg.DevToolsURL, err)
		}
		sel = selectTarget(targets, h.cfg.Target)
		if sel == nil {
			return fmt.Errorf("%w: %q", ErrNoTarget, h.cfg.Target)
		}
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("browser: dial %s: %w", sel.WebSocketDebuggerURL, err)
	}
	h.conn = conn
	h.client = cdp.NewClient(conn)
	h.target = sel

	h.log.Info().Str("target", sel.ID).Str("url", sel.URL).Msg("attached to browser target")
	return nil
}

func selectTarget(targets []*devtool.Target, want string) *devtool.Target {
	for _, t := range targets {
		if t.ID == want {
			return t
		}
	}
	for _, t := range targets {
		if t.Type == devtool.Page && strings.Contains(t.URL, want) {
			return t
		}
	}
	return nil
}

// Close releases the DevTools connection.
func (h *Host) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}

// Run enables interception and answers pauses until ctx is cancelled or the
// connection drops.
func (h *Host) Run(ctx context.Context) error {
	if h.client == nil {
		return ErrNotAttached
	}

	if err := h.client.Fetch.Enable(ctx, &fetch.EnableArgs{Patterns: patterns()}); err != nil {
		return fmt.Errorf("browser: enable fetch interception: %w", err)
	}

	paused, err := h.client.Fetch.RequestPaused(ctx)
	if err != nil {
		return fmt.Errorf("browser: subscribe to paused requests: %w", err)
	}
	defer paused.Close()

	sem := make(chan struct{}, h.cfg.Workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		ev, err := paused.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("browser: receive paused request: %w", err)
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			h.handle(ctx, h.client.Fetch, ev)
		}()
	}
}

func patterns() []fetch.RequestPattern {
	httpURL := "http://*"
	httpsURL := "https://*"
	out := make([]fetch.RequestPattern, 0, 2*len(interceptedTypes))
	for _, rt := range interceptedTypes {
		rt := rt
		out = append(out,
			fetch.RequestPattern{URLPattern: &httpURL, ResourceType: &rt, RequestStage: fetch.RequestStageRequest},
			fetch.RequestPattern{URLPattern: &httpsURL, ResourceType: &rt, RequestStage: fetch.RequestStageResponse},
		)
	}
	return out
}

// handle answers a single pause. Every pause is answered exactly once.
func (h *Host) handle(ctx context.Context, fc pausedClient, ev *fetch.RequestPausedReply) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	id := requestID(ev)
	rawURL := ev.Request.URL

	if ev.ResponseStatusCode == nil {
		h.answerRequest(ctx, fc, ev, id, rawURL)
		return
	}
	h.answerResponse(ctx, fc, ev, id, rawURL)
}

func (h *Host) answerRequest(ctx context.Context, fc pausedClient, ev *fetch.RequestPausedReply, id, rawURL string) {
	if hasScheme(rawURL, "http") {
		adm := h.cfg.Guard.OnBeforeRequest(guard.RequestEvent{RequestID: id, URL: rawURL})
		if adm.Cancel {
			err := fc.FailRequest(ctx, &fetch.FailRequestArgs{
				RequestID:   ev.RequestID,
				ErrorReason: network.ErrorReasonBlockedByClient,
			})
			if err != nil {
				h.log.Error().Err(err).Str("id", id).Msg("fail request")
			}
			return
		}
	}
	if err := fc.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID}); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("continue request")
	}
}

func (h *Host) answerResponse(ctx context.Context, fc pausedClient, ev *fetch.RequestPausedReply, id, rawURL string) {
	args := &fetch.ContinueResponseArgs{RequestID: ev.RequestID}

	if hasScheme(rawURL, "https") {
		headers := fromEntries(ev.ResponseHeaders)
		d := h.cfg.Guard.OnHeadersReceived(guard.ResponseEvent{RequestID: id, URL: rawURL, Headers: headers})
		if d.Changed {
			args.ResponseHeaders = toEntries(d.Headers)
		}

		if target, ok := redirectTarget(*ev.ResponseStatusCode, rawURL, headers); ok {
			h.cfg.Guard.OnBeforeRedirect(guard.RedirectEvent{RequestID: id, URL: rawURL, RedirectURL: target})
		}
	}

	if err := fc.ContinueResponse(ctx, args); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("continue response")
	}
}

// requestID prefers the network id, which stays the same across a redirect
// chain, over the per-pause fetch id.
func requestID(ev *fetch.RequestPausedReply) string {
	if ev.NetworkID != nil && *ev.NetworkID != "" {
		return string(*ev.NetworkID)
	}
	return string(ev.RequestID)
}

func hasScheme(rawURL, scheme string) bool {
	return len(rawURL) > len(scheme) && rawURL[len(scheme)] == ':' && strings.EqualFold(rawURL[:len(scheme)], scheme)
}

func fromEntries(entries []fetch.HeaderEntry) []guard.Header {
	out := make([]guard.Header, len(entries))
	for i, e := range entries {
		out[i] = guard.Header{Name: e.Name, Value: e.Value}
	}
	return out
}

func toEntries(headers []guard.Header) []fetch.HeaderEntry {
	out := make([]fetch.HeaderEntry, len(headers))
	for i, h := range headers {
		out[i] = fetch.HeaderEntry{Name: h.Name, Value: h.Value}
	}
	return out
}
