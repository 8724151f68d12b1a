package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/scenario"
)

var (
	checkScenario string
	checkFormat   string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkScenario, "scenario", "", "Glob pattern for scenario YAML files (default: built-in scenarios)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Replay event scenarios through the guard",
	Long: "Loads scenario YAML files matching a glob pattern, replays each\n" +
		"redirect, request and response step through a fresh guard, and\n" +
		"reports pass/fail. Without --scenario the built-in scenarios run.\n\n" +
		"Exit code 0 if all steps pass, 1 if any fail.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	results, err := checkResults(checkScenario)
	if err != nil {
		return err
	}

	switch checkFormat {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), scenario.FormatText(results))
	}

	// Exit 1 if any scenario has failures
	for _, r := range results {
		if r.Failed > 0 {
			os.Exit(1)
		}
	}

	return nil
}

func checkResults(pattern string) ([]*scenario.RunResult, error) {
	var results []*scenario.RunResult

	if pattern == "" {
		scenarios, err := scenario.Builtin()
		if err != nil {
			return nil, err
		}
		names := scenario.BuiltinNames()
		for i, s := range scenarios {
			r := scenario.Run(s, zerolog.Nop())
			r.File = "builtin:" + names[i]
			results = append(results, r)
		}
		return results, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no scenario files match pattern: %s", pattern)
	}

	for _, path := range matches {
		r, err := scenario.LoadAndRun(path, zerolog.Nop())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, r)
	}
	return results, nil
}
