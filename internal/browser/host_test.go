package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/rs/zerolog"

	"github.com/ppiankov/hstswatch/internal/guard"
	"github.com/ppiankov/hstswatch/internal/ignore"
	"github.com/ppiankov/hstswatch/internal/looptrack"
	"github.com/ppiankov/hstswatch/internal/policy"
)

type fakeFetch struct {
	mu        sync.Mutex
	continued []string
	failed    []network.ErrorReason
	responses []*fetch.ContinueResponseArgs
}

func (f *fakeFetch) ContinueRequest(_ context.Context, args *fetch.ContinueRequestArgs) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.continued = append(f.continued, string(args.RequestID))
	return nil
}

func (f *fakeFetch) ContinueResponse(_ context.Context, args *fetch.ContinueResponseArgs) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, args)
	return nil
}

func (f *fakeFetch) FailRequest(_ context.Context, args *fetch.FailRequestArgs) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, args.ErrorReason)
	return nil
}

func newTestHost(t *testing.T, block bool) (*Host, *guard.Guard) {
	t.Helper()
	g := guard.New(guard.Config{
		Ignore:  ignore.NewDefault(),
		Tracker: looptrack.New(0, 0),
		Policy:  policy.NewRuntime(block),
		Logger:  zerolog.Nop(),
	})
	return New(Config{Guard: g, Logger: zerolog.Nop()}), g
}

// pausedEvent builds a Fetch.requestPaused payload. A zero status means the
// request stage.
func pausedEvent(t *testing.T, networkID, rawURL string, status int, headers ...string) *fetch.RequestPausedReply {
	t.Helper()
	payload := map[string]any{
		"requestId":    "interception-" + networkID,
		"networkId":    networkID,
		"frameId":      "frame-1",
		"resourceType": "Document",
		"request": map[string]any{
			"url":             rawURL,
			"method":          "GET",
			"headers":         map[string]string{},
			"initialPriority": "VeryHigh",
			"referrerPolicy":  "no-referrer",
		},
	}
	if status != 0 {
		payload["responseStatusCode"] = status
		var entries []map[string]string
		for i := 0; i+1 < len(headers); i += 2 {
			entries = append(entries, map[string]string{"name": headers[i], "value": headers[i+1]})
		}
		payload["responseHeaders"] = entries
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	var ev fetch.RequestPausedReply
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal paused event: %v", err)
	}
	return &ev
}

func hstsValue(args *fetch.ContinueResponseArgs) (string, int) {
	var v string
	n := 0
	for _, h := range args.ResponseHeaders {
		if h.Name == "Strict-Transport-Security" {
			v = h.Value
			n++
		}
	}
	return v, n
}

func TestResponseAddsHSTS(t *testing.T) {
	h, _ := newTestHost(t, false)
	f := &fakeFetch{}

	h.handle(context.Background(), f, pausedEvent(t, "1", "https://example.com/", 200, "Content-Type", "text/html"))

	if len(f.responses) != 1 {
		t.Fatalf("expected one continueResponse, got %d", len(f.responses))
	}
	v, n := hstsValue(f.responses[0])
	if n != 1 || v != "max-age=15570000;" {
		t.Errorf("expected synthesized header, got %q (%d)", v, n)
	}
}

func TestResponseKeepsExistingHeaders(t *testing.T) {
	h, _ := newTestHost(t, false)
	f := &fakeFetch{}

	h.handle(context.Background(), f, pausedEvent(t, "1", "https://example.com/", 200, "strict-transport-security", "max-age=60"))

	if len(f.responses) != 1 {
		t.Fatalf("expected one continueResponse, got %d", len(f.responses))
	}
	if f.responses[0].ResponseHeaders != nil {
		t.Errorf("unchanged response must not override headers, got %v", f.responses[0].ResponseHeaders)
	}
}

func TestRequestStageContinuesUnmarked(t *testing.T) {
	h, _ := newTestHost(t, true)
	f := &fakeFetch{}

	h.handle(context.Background(), f, pausedEvent(t, "1", "http://example.com/", 0))

	if len(f.continued) != 1 || len(f.failed) != 0 {
		t.Errorf("expected plain continue, got continued=%v failed=%v", f.continued, f.failed)
	}
}

func TestDowngradeLoopBlocked(t *testing.T) {
	h, g := newTestHost(t, true)
	f := &fakeFetch{}
	ctx := context.Background()

	// https 301 -> http same URL flags the loop.
	h.handle(ctx, f, pausedEvent(t, "7", "https://a.com/x", 301, "Location", "http://a.com/x"))
	if !g.Tracker().IsMarked("7") {
		t.Fatal("expected request 7 to be flagged after the redirect")
	}

	h.handle(ctx, f, pausedEvent(t, "7", "http://a.com/x", 0))
	if len(f.failed) != 1 || f.failed[0] != network.ErrorReasonBlockedByClient {
		t.Fatalf("expected blocked-by-client failure, got %v", f.failed)
	}
	if g.Tracker().IsMarked("7") {
		t.Error("cancel must consume the flag")
	}
}

func TestDowngradeLoopAllowedThenDisabled(t *testing.T) {
	h, _ := newTestHost(t, false)
	f := &fakeFetch{}
	ctx := context.Background()

	h.handle(ctx, f, pausedEvent(t, "7", "https://a.com/x", 302, "Location", "http://a.com/x"))
	h.handle(ctx, f, pausedEvent(t, "7", "http://a.com/x", 0))
	if len(f.continued) != 1 {
		t.Fatalf("expected the http request to continue, got %v", f.continued)
	}

	h.handle(ctx, f, pausedEvent(t, "7", "https://a.com/x", 200, "Strict-Transport-Security", "max-age=31536000"))
	last := f.responses[len(f.responses)-1]
	v, n := hstsValue(last)
	if n != 1 || v != "max-age=0;" {
		t.Errorf("expected HSTS disabled, got %q (%d)", v, n)
	}
}

func TestRelativeLocationResolved(t *testing.T) {
	h, g := newTestHost(t, false)
	f := &fakeFetch{}

	h.handle(context.Background(), f, pausedEvent(t, "9", "https://a.com/x", 301, "Location", "/y"))
	if g.Tracker().IsMarked("9") {
		t.Error("https to https redirect must not be flagged")
	}
}

func TestRedirectTarget(t *testing.T) {
	tests := []struct {
		status int
		loc    string
		want   string
		ok     bool
	}{
		{301, "http://a.com/x", "http://a.com/x", true},
		{302, "/y", "https://a.com/y", true},
		{307, "//b.com/z", "https://b.com/z", true},
		{304, "http://a.com/x", "", false},
		{200, "http://a.com/x", "", false},
		{301, "", "", false},
	}
	for _, tt := range tests {
		var headers []guard.Header
		if tt.loc != "" {
			headers = append(headers, guard.Header{Name: "location", Value: tt.loc})
		}
		got, ok := redirectTarget(tt.status, "https://a.com/x", headers)
		if got != tt.want || ok != tt.ok {
			t.Errorf("redirectTarget(%d, %q) = %q, %v; want %q, %v", tt.status, tt.loc, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRequestIDFallsBack(t *testing.T) {
	ev := pausedEvent(t, "", "http://a.com/", 0)
	if got := requestID(ev); got != "interception-" {
		t.Errorf("expected fetch id fallback, got %q", got)
	}
	ev = pausedEvent(t, "42", "http://a.com/", 0)
	if got := requestID(ev); got != "42" {
		t.Errorf("expected network id, got %q", got)
	}
}

func TestPatternsCoverBothStages(t *testing.T) {
	ps := patterns()
	if len(ps) != 2*len(interceptedTypes) {
		t.Fatalf("unexpected pattern count %d", len(ps))
	}
	stages := map[string]int{}
	types := map[network.ResourceType]int{}
	for _, p := range ps {
		if p.ResourceType == nil {
			t.Fatalf("pattern %s %s has no resource type", *p.URLPattern, p.RequestStage)
		}
		stages[fmt.Sprintf("%s %s", *p.URLPattern, p.RequestStage)]++
		types[*p.ResourceType]++
	}
	if stages["http://* Request"] != len(interceptedTypes) || stages["https://* Response"] != len(interceptedTypes) {
		t.Errorf("unexpected stage split %v", stages)
	}
	for _, rt := range interceptedTypes {
		if types[rt] != 2 {
			t.Errorf("resource type %s: got %d patterns, want 2", rt, types[rt])
		}
	}
}

func TestConcurrentHandles(t *testing.T) {
	h, g := newTestHost(t, true)
	f := &fakeFetch{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		id := fmt.Sprint(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handle(ctx, f, pausedEvent(t, id, "https://a.com/"+id, 301, "Location", "http://a.com/"+id))
			h.handle(ctx, f, pausedEvent(t, id, "http://a.com/"+id, 0))
		}()
	}
	wg.Wait()

	if len(f.failed) != 32 {
		t.Errorf("expected 32 cancelled requests, got %d", len(f.failed))
	}
	if g.Tracker().Len() != 0 {
		t.Errorf("expected empty tracker, got %d", g.Tracker().Len())
	}
}
