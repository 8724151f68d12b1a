package scenario

import (
	"fmt"
	"sort"

	_ "embed"
)

//go:embed builtin/loop-allowed.yaml
var loopAllowedYAML []byte

//go:embed builtin/loop-blocked.yaml
var loopBlockedYAML []byte

//go:embed builtin/cross-host.yaml
var crossHostYAML []byte

//go:embed builtin/ignored-host.yaml
var ignoredHostYAML []byte

// builtinScenarios maps scenario names to their embedded YAML content.
var builtinScenarios = map[string][]byte{
	"loop-allowed": loopAllowedYAML,
	"loop-blocked": loopBlockedYAML,
	"cross-host":   crossHostYAML,
	"ignored-host": ignoredHostYAML,
}

// BuiltinNames returns the names of the shipped scenarios, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinScenarios))
	for name := range builtinScenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin parses the shipped end-to-end scenarios in name order.
func Builtin() ([]*Scenario, error) {
	var out []*Scenario
	for _, name := range BuiltinNames() {
		s, err := Parse(builtinScenarios[name])
		if err != nil {
			return nil, fmt.Errorf("parse builtin scenario %s: %w", name, err)
		}
		out = append(out, s)
	}
	return out, nil
}
