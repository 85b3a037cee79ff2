package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vem-project/vem/internal/audit"
	"github.com/vem-project/vem/pkg/color"
	"github.com/vem-project/vem/pkg/model"
)

var (
	historyLimit  int
	historyVerify bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the environment lifecycle journal",
	Long: `Show the environment lifecycle journal, newest last.

Examples:
  vem history            # Show every event
  vem history -n 10      # Show the last 10 events
  vem history --verify   # Check the journal's hash chain`,
	Args: argsUsage(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		journal := audit.NewFileAppender(cfg.AuditPath())
		out := cmd.OutOrStdout()

		if historyVerify {
			n, err := journal.Verify()
			if err != nil {
				return storageError(err, "cannot read audit journal")
			}
			if jsonOutput {
				return outputJSON(out, map[string]any{"verified": true, "records": n})
			}
			fmt.Fprintln(out, color.Successf("Audit chain verified (%d records)", n))
			return nil
		}

		records, err := journal.Tail(historyLimit)
		if err != nil {
			return storageError(err, "cannot read audit journal")
		}
		if jsonOutput {
			if records == nil {
				records = []model.AuditRecord{}
			}
			return outputJSON(out, records)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No history recorded")
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s  %-20s  %s%s\n",
				color.Dim(r.Timestamp.Local().Format(time.RFC3339)),
				r.EventType,
				r.Environment,
				formatDetails(r.Details))
		}
		return nil
	},
}

func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return "  " + color.Dim(strings.Join(parts, " "))
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show only the last N events")
	historyCmd.Flags().BoolVar(&historyVerify, "verify", false, "verify the hash chain")
	rootCmd.AddCommand(historyCmd)
}
