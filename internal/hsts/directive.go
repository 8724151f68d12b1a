// Package hsts parses and formats Strict-Transport-Security header values.
package hsts

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// HeaderName is the canonical response header name.
const HeaderName = "Strict-Transport-Security"

// DefaultMaxAge is roughly six months.
const DefaultMaxAge = 15570000 * time.Second

// maxSeconds is the largest max-age a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Directive is the parsed content of a Strict-Transport-Security header.
type Directive struct {
	MaxAge            time.Duration
	IncludeSubDomains bool
	Preload           bool
}

// Parse parses a Strict-Transport-Security header value as specified in
// RFC 6797 section 6.1. Non-conforming directives are ignored; ok is false when
// the required max-age directive is missing.
func Parse(header string) (d Directive, ok bool) {
	seen := make(map[string]struct{})
	hasMaxAge := false

	for _, part := range strings.Split(header, ";") {
		var name, value string
		if i := strings.IndexByte(part, '='); i >= 0 {
			name, value = part[:i], part[i+1:]
		} else {
			name = part
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}

		// Directives must appear only once; later duplicates are ignored.
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			v, err := strconv.Unquote(value)
			if err != nil {
				continue
			}
			value = v
		}

		switch name {
		case "max-age":
			secs, err := strconv.ParseInt(value, 10, 64)
			if errors.Is(err, strconv.ErrRange) && secs > 0 {
				err = nil
			}
			if err != nil || secs < 0 {
				continue
			}
			// Clamp instead of overflowing time.Duration (about 292 years).
			if secs > maxSeconds {
				secs = maxSeconds
			}
			d.MaxAge = time.Duration(secs) * time.Second
			hasMaxAge = true
		case "includesubdomains":
			if value == "" {
				d.IncludeSubDomains = true
			}
		case "preload":
			if value == "" {
				d.Preload = true
			}
		}
	}
	return d, hasMaxAge
}

// Format renders the header value written by the synthesizer, e.g.
// "max-age=15570000;". The trailing separator is kept for compatibility with
// previously emitted policies.
func Format(maxAge time.Duration) string {
	secs := int64(maxAge / time.Second)
	if secs < 0 {
		secs = 0
	}
	return "max-age=" + strconv.FormatInt(secs, 10) + ";"
}

// IsHeader reports whether name is the Strict-Transport-Security header,
// compared case-insensitively.
func IsHeader(name string) bool {
	return strings.EqualFold(name, HeaderName)
}
