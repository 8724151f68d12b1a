package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mafredri/cdp/devtool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/config"
	"github.com/ppiankov/hstswatch/internal/ignore"
	"github.com/ppiankov/hstswatch/internal/policy"
	"github.com/ppiankov/hstswatch/internal/prefs"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check readiness and diagnose configuration issues",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	cfg, err := loadConfig()
	if err != nil {
		checks = append(checks, checkResult{label: "config", detail: err.Error(), fix: "hstswatch init --force"})
		return printChecks(checks)
	}

	// 1. Config directory.
	if dir, err := config.Dir(); err != nil {
		checks = append(checks, checkResult{label: "config directory", detail: err.Error()})
	} else if info, err := os.Stat(dir); err == nil && info.IsDir() {
		checks = append(checks, checkResult{label: "config directory", ok: true, detail: dir})
	} else {
		checks = append(checks, checkResult{label: "config directory", detail: "missing", fix: "hstswatch init"})
	}

	// 2. Ignore rules.
	ignorePath := config.ExpandPath(cfg.IgnoreFile)
	list, err := ignore.Load(ignorePath)
	switch {
	case err != nil:
		checks = append(checks, checkResult{label: "ignore rules", detail: err.Error(), fix: "fix " + ignorePath})
	case len(list.Invalid()) > 0:
		checks = append(checks, checkResult{
			label:  "ignore rules",
			detail: fmt.Sprintf("%d of %d patterns invalid", len(list.Invalid()), list.Len()),
			fix:    "fix " + ignorePath,
		})
	default:
		checks = append(checks, checkResult{label: "ignore rules", ok: true, detail: fmt.Sprintf("%d rules", list.Len())})
	}

	// 3. Preference store.
	prefsPath := config.ExpandPath(cfg.PrefsDB)
	if store, err := prefs.Open(prefsPath, zerolog.Nop()); err != nil {
		checks = append(checks, checkResult{label: "preferences", detail: err.Error()})
	} else {
		block, err := store.GetBool(policy.PrefBlockDowngrades, false)
		store.Close()
		if err != nil {
			checks = append(checks, checkResult{label: "preferences", detail: err.Error(), fix: "hstswatch prefs set block-downgrades false"})
		} else {
			checks = append(checks, checkResult{
				label:  "preferences",
				ok:     true,
				detail: fmt.Sprintf("%s (block-downgrades=%t)", filepath.Base(prefsPath), block),
			})
		}
	}

	// 4. DevTools endpoint.
	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()
	if v, err := devtool.New(cfg.DevToolsURL).Version(ctx); err != nil {
		checks = append(checks, checkResult{
			label:  "devtools",
			detail: fmt.Sprintf("%s unreachable", cfg.DevToolsURL),
			fix:    "start the browser with --remote-debugging-port=9222",
		})
	} else {
		checks = append(checks, checkResult{label: "devtools", ok: true, detail: v.Browser})
	}

	return printChecks(checks)
}

func printChecks(checks []checkResult) error {
	hasFailures := false
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Println(line)
	}

	if hasFailures {
		fmt.Println()
		fmt.Println("Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}
