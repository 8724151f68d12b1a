package browser

import (
	"net/url"
	"strings"

	"github.com/ppiankov/hstswatch/internal/guard"
)

// redirectTarget returns the absolute Location of a 3xx response.
func redirectTarget(status int, base string, headers []guard.Header) (string, bool) {
	if status < 300 || status > 399 || status == 304 {
		return "", false
	}

	var loc string
	for _, h := range headers {
		if strings.EqualFold(h.Name, "Location") {
			loc = strings.TrimSpace(h.Value)
			break
		}
	}
	if loc == "" {
		return "", false
	}

	ref, err := url.Parse(loc)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		return loc, true
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	return b.ResolveReference(ref).String(), true
}
