package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/audit"
)

var tailLines int

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Decision audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained decision log\nwritten when audit_log is set in the config.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry, that every entry names a known\ndecision and a session, and prints entry counts per session.\nExits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent audit log entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		printVerified(cmd.OutOrStdout(), result)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func printVerified(w io.Writer, result audit.VerifyResult) {
	fmt.Fprintf(w, "OK: %d entries verified across %d sessions\n", result.Lines, len(result.Sessions))
	ids := make([]string, 0, len(result.Sessions))
	for id := range result.Sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %-36s %d\n", id, result.Sessions[id])
	}
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	lines, err := audit.Tail(args[0], tailLines)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, line := range lines {
		var entry audit.AuditEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Fprintln(w, line)
			continue
		}
		fmt.Fprintf(w, "%s  %-18s %-10s %s\n", entry.Timestamp, entry.Decision, entry.RequestID, entry.URL)
	}
	return nil
}
