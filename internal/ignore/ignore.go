package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Kind distinguishes the two rule variants.
type Kind int

const (
	KindExact Kind = iota
	KindPattern
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// Rule is either an exact hostname or a compiled pattern matched against the
// full hostname. A pattern that failed to compile has a nil re and never matches.
type Rule struct {
	kind  Kind
	value string
	re    *regexp.Regexp
}

// Exact returns a rule matching hostnames equal to host.
func Exact(host string) Rule {
	return Rule{kind: KindExact, value: host}
}

// Pattern compiles expr into a pattern rule. On a compile error the returned
// rule is inert and the error describes why.
func Pattern(expr string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{kind: KindPattern, value: expr}, fmt.Errorf("ignore: invalid pattern %q: %w", expr, err)
	}
	return Rule{kind: KindPattern, value: expr, re: re}, nil
}

// Kind reports the rule variant.
func (r Rule) Kind() Kind { return r.kind }

// String returns the exact hostname or the pattern source.
func (r Rule) String() string { return r.value }

// Match reports whether host satisfies the rule.
func (r Rule) Match(host string) bool {
	switch r.kind {
	case KindExact:
		return r.value == host
	case KindPattern:
		return r.re != nil && r.re.MatchString(host)
	default:
		return false
	}
}

// Spec is the on-disk form of a rule. Exactly one field is set.
type Spec struct {
	Exact   string `yaml:"exact,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
}

// File is the YAML document holding the ignore rules.
type File struct {
	Ignore []Spec `yaml:"ignore"`
}

// List is an ordered, immutable sequence of rules.
type List struct {
	rules   []Rule
	invalid []error
}

// New builds a List from specs, preserving order. Malformed patterns are kept
// as inert rules and reported by Invalid.
func New(specs []Spec) *List {
	l := &List{}
	for _, s := range specs {
		switch {
		case s.Pattern != "":
			r, err := Pattern(s.Pattern)
			if err != nil {
				l.invalid = append(l.invalid, err)
			}
			l.rules = append(l.rules, r)
		case s.Exact != "":
			l.rules = append(l.rules, Exact(s.Exact))
		}
	}
	return l
}

// NewDefault creates a List with the built-in rules.
func NewDefault() *List {
	return New(DefaultRules)
}

// Load reads an ignore list from a YAML file. Falls back to defaults if the
// file doesn't exist.
func Load(path string) (*List, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return NewDefault(), nil
		}
		path = filepath.Join(home, ".hstswatch", "ignore.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return nil, fmt.Errorf("ignore: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ignore: parse %s: %w", path, err)
	}

	return New(f.Ignore), nil
}

// ShouldIgnore reports whether HSTS enforcement must be skipped for hostname.
// Rules are evaluated in order and the first match wins.
func (l *List) ShouldIgnore(hostname string) bool {
	_, ok := l.Match(hostname)
	return ok
}

// Match returns the first rule matching hostname.
func (l *List) Match(hostname string) (Rule, bool) {
	if l == nil {
		return Rule{}, false
	}
	for _, r := range l.rules {
		if r.Match(hostname) {
			return r, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the rules in evaluation order.
func (l *List) Rules() []Rule {
	if l == nil {
		return nil
	}
	out := make([]Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

// Invalid returns the compile errors of malformed pattern rules.
func (l *List) Invalid() []error {
	if l == nil {
		return nil
	}
	return l.invalid
}

// Len returns the number of rules, including inert ones.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.rules)
}

// DefaultYAML renders the built-in rules as an ignore file.
func DefaultYAML() ([]byte, error) {
	return yaml.Marshal(File{Ignore: DefaultRules})
}
