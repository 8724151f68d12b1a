package guard

import (
	"net/url"
	"strings"
)

// OnBeforeRedirect classifies a redirect of an https request. The first
// same-resource https→http hop of a chain marks the request id.
func (g *Guard) OnBeforeRedirect(ev RedirectEvent) (v RedirectVerdict) {
	v = RedirectNotFlagged
	var marked bool
	defer g.recoverHandler("redirect", ev.RequestID, func() {
		if marked {
			g.tracker.Clear(ev.RequestID)
		}
	})

	if !hasScheme(ev.RedirectURL, "http") {
		return RedirectIgnored
	}
	if g.tracker.IsMarked(ev.RequestID) {
		return RedirectAlreadyFlagged
	}

	if IsDowngrade(ev.URL, ev.RedirectURL) {
		g.tracker.Mark(ev.RequestID)
		marked = true
		g.log.Info().Str("id", ev.RequestID).Str("from", ev.URL).Str("to", ev.RedirectURL).Msg("flagging downgrade redirect")
		g.record(LoopFlagged, ev.RequestID, ev.URL, ev.RedirectURL)
		return RedirectFlagged
	}

	g.log.Debug().Str("id", ev.RequestID).Str("from", ev.URL).Str("to", ev.RedirectURL).Msg("not flagging redirect")
	g.record(LoopNotFlagged, ev.RequestID, ev.URL, ev.RedirectURL)
	return RedirectNotFlagged
}

// IsDowngrade reports whether to is from with "https" replaced by "http" and
// nothing else changed: host, port, path, query and fragment must be
// identical. Unparseable URLs never qualify.
func IsDowngrade(from, to string) bool {
	if !hasScheme(from, "https") || !hasScheme(to, "http") {
		return false
	}
	if !wellFormed(from) || !wellFormed(to) {
		return false
	}
	return from[len("https"):] == to[len("http"):]
}

// hasScheme reports whether rawURL starts with scheme followed by a colon,
// ignoring case.
func hasScheme(rawURL, scheme string) bool {
	n := len(scheme) + 1
	return len(rawURL) >= n && strings.EqualFold(rawURL[:n], scheme+":")
}

func wellFormed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Host != ""
}
