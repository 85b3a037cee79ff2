package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vem-project/vem/internal/audit"
	"github.com/vem-project/vem/internal/doctor"
	"github.com/vem-project/vem/pkg/color"
)

var (
	doctorRepair bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment health",
	Long: `Check environment health.

Reports incomplete environments, corrupt metadata, a dangling or damaged
current pointer, leftover temporary files and a broken audit chain.
Use --repair to restore missing files and rewrite damaged metadata.`,
	Args: argsUsage(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := requireManager()
		if err != nil {
			return err
		}

		doc := doctor.NewDoctor(m.Store(), doctor.WithJournal(audit.NewFileAppender(m.Config().AuditPath())))
		out := cmd.OutOrStdout()

		var result *doctor.Result
		if doctorRepair {
			res, err := doc.Repair()
			if err != nil {
				return err
			}
			for _, r := range res.Repaired {
				m.RecordRepair(r)
			}
			if jsonOutput {
				if err := outputJSON(out, res); err != nil {
					return err
				}
			} else {
				for _, r := range res.Repaired {
					fmt.Fprintf(out, "Repaired environment '%s'\n", r.Name)
				}
				for _, p := range res.RemovedTemp {
					fmt.Fprintf(out, "Removed %s\n", p)
				}
			}
			result = res.After
		} else {
			if result, err = doc.Check(); err != nil {
				return err
			}
			if jsonOutput {
				if err := outputJSON(out, result); err != nil {
					return err
				}
			}
		}

		if !jsonOutput {
			printFindings(out, result)
		}
		if !result.Healthy {
			return &ExitError{Code: ExitGeneral, Err: errors.New("environments are not healthy")}
		}
		return nil
	},
}

func printFindings(w io.Writer, result *doctor.Result) {
	if len(result.Findings) == 0 {
		fmt.Fprintln(w, color.Success("All environments are healthy."))
		return
	}

	fmt.Fprintf(w, "Findings (%d):\n", len(result.Findings))
	for _, f := range result.Findings {
		sev := f.Severity
		switch f.Severity {
		case doctor.SeverityError:
			sev = color.Error(sev)
		case doctor.SeverityWarning:
			sev = color.Warning(sev)
		default:
			sev = color.Dim(sev)
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", sev, f.Category, f.Description)
	}
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "repair incomplete environments")
	rootCmd.AddCommand(doctorCmd)
}
