package guard

import (
	"time"

	"github.com/ppiankov/hstswatch/internal/hsts"
)

// OnHeadersReceived decides the Strict-Transport-Security header of an https
// response. A request flagged as a downgrade loop gets max-age=0 replacing any
// existing policy; otherwise a missing header is added with the default
// max-age and an existing one is left alone. Ignored hosts are never touched.
func (g *Guard) OnHeadersReceived(ev ResponseEvent) (d HeaderDecision) {
	d = HeaderDecision{Headers: ev.Headers, Outcome: HeaderSkipped}
	var marked bool
	defer g.recoverHandler("response", ev.RequestID, func() {
		if marked {
			g.tracker.Mark(ev.RequestID)
		}
	})

	host := hostname(ev.URL)
	ignored := g.ignore.ShouldIgnore(host)
	marked = g.tracker.Take(ev.RequestID)

	if ignored {
		g.log.Info().Str("id", ev.RequestID).Str("url", ev.URL).Bool("loop", marked).Msg("skipped HSTS enforcement on ignored host")
		g.record(HSTSIgnored, ev.RequestID, ev.URL, host)
		return d
	}

	forceDisable := marked
	if forceDisable {
		g.log.Warn().Str("id", ev.RequestID).Str("url", ev.URL).Msg("redirect loop detected, disabling HSTS")
	}

	out, changed := Synthesize(ev.Headers, forceDisable, g.maxAge)
	if !changed {
		existing := existingMaxAge(ev.Headers)
		g.log.Debug().Str("id", ev.RequestID).Str("url", ev.URL).Str("max_age", existing).Msg("skipping because of existing header")
		g.record(HSTSExisting, ev.RequestID, ev.URL, existing)
		return HeaderDecision{Headers: ev.Headers, Outcome: HeaderExisting}
	}

	if forceDisable {
		g.log.Info().Str("id", ev.RequestID).Str("url", ev.URL).Msg("disabling HSTS")
		g.record(HSTSDisabled, ev.RequestID, ev.URL, hsts.Format(0))
		return HeaderDecision{Changed: true, Headers: out, Outcome: HeaderDisabled, ForceDisable: true}
	}

	g.log.Debug().Str("id", ev.RequestID).Str("url", ev.URL).Msg("enabling HSTS")
	g.record(HSTSEnabled, ev.RequestID, ev.URL, hsts.Format(g.maxAge))
	return HeaderDecision{Changed: true, Headers: out, Outcome: HeaderEnabled}
}

// Synthesize computes the response headers for one https response without
// modifying headers. When forceDisable is false and a
// Strict-Transport-Security header is present the existing policy wins and
// changed is false. Otherwise every existing entry is dropped (only possible
// with forceDisable) and a new header is appended with max-age 0 or maxAge.
func Synthesize(headers []Header, forceDisable bool, maxAge time.Duration) (out []Header, changed bool) {
	out = make([]Header, 0, len(headers)+1)
	for _, h := range headers {
		if hsts.IsHeader(h.Name) {
			if !forceDisable {
				return headers, false
			}
			// Drop every entry, not only the first: a duplicate left behind
			// would keep the loop's policy alive next to max-age=0.
			continue
		}
		out = append(out, h)
	}

	age := maxAge
	if forceDisable {
		age = 0
	}
	out = append(out, Header{Name: hsts.HeaderName, Value: hsts.Format(age)})
	return out, true
}

func existingMaxAge(headers []Header) string {
	for _, h := range headers {
		if hsts.IsHeader(h.Name) {
			if d, ok := hsts.Parse(h.Value); ok {
				return hsts.Format(d.MaxAge)
			}
			return h.Value
		}
	}
	return ""
}
