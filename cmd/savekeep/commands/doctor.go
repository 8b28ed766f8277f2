package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/doctor"
	"github.com/thoreinstein/savekeep/internal/errors"
)

var (
	doctorJSON    bool
	doctorQuiet   bool
	doctorVerbose bool
	doctorFix     bool
	doctorDeep    bool
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false,
		"output results as JSON")
	doctorCmd.Flags().BoolVar(&doctorQuiet, "quiet", false,
		"suppress output, exit code only")
	doctorCmd.Flags().BoolVar(&doctorVerbose, "verbose", false,
		"show detailed check-by-check output")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false,
		"remove leftovers of interrupted operations and orphaned entry directories")
	doctorCmd.Flags().BoolVar(&doctorDeep, "deep", false,
		"re-hash every snapshot file against its manifest")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose store issues",
	Long: `Run diagnostic checks on the savekeep store.

Checks that the store is writable, the index is readable, every tracked
directory exists, and that no orphaned entry directories, stale staging or
trash directories, or damaged manifests are left behind. --deep also re-hashes
every snapshot file.

Run --fix only while no other savekeep process is using the store.

Output modes (mutually exclusive):
  (default)   Show errors and warnings
  --verbose   Show all checks including passed ones
  --quiet     No output, exit code only
  --json      Machine-readable JSON output

Exit codes:
  0 - All checks passed (no errors or warnings)
  1 - Warnings present, no errors
  2 - Errors present`,
	Args:    cli.Args(cobra.NoArgs),
	PreRunE: validateDoctorFlags,
	RunE:    runDoctor,
}

// validateDoctorFlags ensures output flags are mutually exclusive.
func validateDoctorFlags(cmd *cobra.Command, _ []string) error {
	count := 0
	if doctorJSON {
		count++
	}
	if doctorQuiet {
		count++
	}
	if doctorVerbose {
		count++
	}

	if count > 1 {
		return cli.UsageError(cmd, errors.New("flags --json, --quiet, and --verbose are mutually exclusive"))
	}

	return nil
}

// doctorOutput is the JSON form of a doctor run.
type doctorOutput struct {
	*doctor.DoctorReport
	Fixes []doctor.FixResult `json:"fixes,omitempty"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	runner := doctor.NewRunner()
	for _, c := range doctor.Checks(svc, doctorDeep) {
		runner.AddCheck(c)
	}

	report := runner.Run(cmd.Context())

	var fixes []doctor.FixResult
	if doctorFix && report.Fixable() {
		fixes = runner.Fix()
		// Report the state after repairs
		report = runner.Run(cmd.Context())
	}

	if err := outputDoctorReport(cmd.OutOrStdout(), report, fixes); err != nil {
		return err
	}

	// Determine exit code based on results
	if report.HasErrors() {
		return errors.NewExitError(nil, errors.ExitSystem)
	}
	if report.HasWarnings() {
		return errors.NewExitError(nil, errors.ExitUser)
	}
	return nil
}

func outputDoctorReport(w io.Writer, report *doctor.DoctorReport, fixes []doctor.FixResult) error {
	if doctorQuiet {
		return nil
	}

	if doctorJSON {
		return cli.WriteJSON(w, doctorOutput{DoctorReport: report, Fixes: fixes})
	}

	outputDoctorText(w, report, fixes)
	return nil
}

func outputDoctorText(w io.Writer, report *doctor.DoctorReport, fixes []doctor.FixResult) {
	for _, f := range fixes {
		if f.Fixed {
			fmt.Fprintf(w, "%s fixed: %s\n", cli.Green("✓"), f.Description)
		} else {
			fmt.Fprintf(w, "%s not fixed: %s\n", cli.Red("✗"), f.Description)
		}
	}
	if len(fixes) > 0 {
		fmt.Fprintln(w)
	}

	// In normal mode, show only errors and warnings
	// In verbose mode, show all checks
	showAll := doctorVerbose

	hasOutput := false
	for _, result := range report.Results {
		problem := result.Status == doctor.SeverityError || result.Status == doctor.SeverityWarning
		if !showAll && !problem {
			continue
		}

		hasOutput = true
		fmt.Fprintf(w, "%s [%s] %s: %s\n", statusIcon(result.Status), result.Category, result.Name, result.Message)
		for _, issue := range result.Issues {
			fmt.Fprintf(w, "    %s: %s\n", issue.Path, issue.Problem)
		}
		if result.FixHint != "" && problem {
			fmt.Fprintf(w, "  hint: %s\n", result.FixHint)
		}
	}

	// Print summary
	if hasOutput || showAll {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Summary: %d passed, %d info, %d warnings, %d errors\n",
		report.Summary.Passed, report.Summary.Info, report.Summary.Warnings, report.Summary.Errors)
	if report.Fixable() && !doctorFix {
		fmt.Fprintln(w, "Some issues can be repaired with: savekeep doctor --fix")
	}
}

func statusIcon(s doctor.Severity) string {
	switch s {
	case doctor.SeverityPass:
		return cli.Green("✓")
	case doctor.SeverityInfo:
		return cli.Cyan("ℹ")
	case doctor.SeverityWarning:
		return cli.Yellow("⚠")
	case doctor.SeverityError:
		return cli.Red("✗")
	default:
		return "?"
	}
}
