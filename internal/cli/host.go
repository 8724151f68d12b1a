package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/config"
	"github.com/ppiankov/hstswatch/internal/ignore"
)

var (
	hostFormat string
	hostList   bool
)

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.Flags().StringVarP(&hostFormat, "format", "f", "text", "Output format (text|json)")
	hostCmd.Flags().BoolVarP(&hostList, "list", "l", false, "List the ignore rules in evaluation order")
}

var hostCmd = &cobra.Command{
	Use:   "host <hostname|url>...",
	Short: "Show whether HSTS enforcement is skipped for hosts",
	Args: func(cmd *cobra.Command, args []string) error {
		if hostList {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: runHost,
}

type ruleRow struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Rule  string `json:"rule"`
}

type hostVerdict struct {
	Input    string `json:"input"`
	Hostname string `json:"hostname"`
	Ignored  bool   `json:"ignored"`
	Rule     string `json:"rule,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	list, err := ignore.Load(config.ExpandPath(cfg.IgnoreFile))
	if err != nil {
		return err
	}

	if hostList && len(args) == 0 {
		return printRules(cmd, ruleRows(list))
	}

	verdicts := hostVerdicts(list, args)

	if hostFormat == "json" {
		return printJSON(cmd, verdicts)
	}

	w := cmd.OutOrStdout()
	for _, v := range verdicts {
		if v.Ignored {
			fmt.Fprintf(w, "IGNORE   %-30s (%s: %s)\n", v.Hostname, v.Kind, v.Rule)
		} else {
			fmt.Fprintf(w, "ENFORCE  %s\n", v.Hostname)
		}
	}
	return nil
}

func hostVerdicts(list *ignore.List, inputs []string) []hostVerdict {
	out := make([]hostVerdict, 0, len(inputs))
	for _, in := range inputs {
		v := hostVerdict{Input: in, Hostname: in}
		if strings.Contains(in, "://") {
			if u, err := url.Parse(in); err == nil {
				v.Hostname = u.Hostname()
			}
		}
		if rule, ok := list.Match(v.Hostname); ok {
			v.Ignored = true
			v.Rule = rule.String()
			v.Kind = rule.Kind().String()
		}
		out = append(out, v)
	}
	return out
}

func ruleRows(list *ignore.List) []ruleRow {
	rules := list.Rules()
	out := make([]ruleRow, len(rules))
	for i, r := range rules {
		out[i] = ruleRow{Index: i + 1, Kind: r.Kind().String(), Rule: r.String()}
	}
	return out
}

func printRules(cmd *cobra.Command, rows []ruleRow) error {
	if hostFormat == "json" {
		return printJSON(cmd, rows)
	}
	w := cmd.OutOrStdout()
	for _, r := range rows {
		fmt.Fprintf(w, "%3d  %-8s %s\n", r.Index, r.Kind, r.Rule)
	}
	fmt.Fprintf(w, "%d rules\n", len(rows))
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
