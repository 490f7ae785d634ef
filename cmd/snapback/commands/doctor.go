package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/snapback/internal/config"
	"github.com/thoreinstein/snapback/internal/doctor"
	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/mounts"
)

var (
	doctorJSON    bool
	doctorQuiet   bool
	doctorVerbose bool
	doctorFix     bool
)

// newDoctorRunner assembles the checks; tests replace it.
var newDoctorRunner = defaultDoctorRunner

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false,
		"output results as JSON")
	doctorCmd.Flags().BoolVar(&doctorQuiet, "quiet", false,
		"suppress output, exit code only")
	doctorCmd.Flags().BoolVar(&doctorVerbose, "verbose", false,
		"show detailed check-by-check output")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false,
		"tighten config file and directory permissions")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the backup environment",
	Long: `Run diagnostic checks on everything snapback depends on.

Checks the rsync binary, root privilege, the mount table, the config file
and its permissions, and the configured destination's free space.

Output modes (mutually exclusive):
  (default)   Show errors and warnings
  --verbose   Show all checks including passed ones
  --quiet     No output, exit code only
  --json      Machine-readable JSON output

Exit codes:
  0 - All checks passed (no errors or warnings)
  1 - Warnings present, no errors
  2 - Errors present`,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	PreRunE:     validateDoctorFlags,
	RunE:        runDoctor,
}

// validateDoctorFlags ensures output flags are mutually exclusive.
func validateDoctorFlags(_ *cobra.Command, _ []string) error {
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
		return errors.NewUserError(errors.Wrap(errors.ErrInvalidConfig, "conflicting flags"),
			"flags --json, --quiet, and --verbose are mutually exclusive")
	}

	return nil
}

func defaultDoctorRunner() *doctor.Runner {
	c := loadedConfig()
	file := configFileInUse()

	runner := doctor.NewRunner()
	runner.AddCheck(doctor.NewConfigCheck(file))
	runner.AddCheck(doctor.NewConfigPermissionCheck(config.Dir(), file))
	runner.AddCheck(doctor.NewRsyncCheck(c.Rsync.Binary))
	runner.AddCheck(doctor.NewPrivilegeCheck(os.Geteuid()))
	if probe, err := mounts.New(c.Probe.Backend, c.Probe.SkipPrefixes); err == nil {
		runner.AddCheck(doctor.NewMountCheck(probe))
	}
	runner.AddCheck(doctor.NewDestinationCheck(c.Destination))
	return runner
}

// configFileInUse returns the explicit --config path, the file Viper found,
// or "" when the defaults apply.
func configFileInUse() string {
	if configPath != "" {
		return configPath
	}
	return config.FileUsed()
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	return runDoctorWithWriter(cmd.Context(), cmd.OutOrStdout())
}

// runDoctorWithWriter allows injecting a writer for testing.
func runDoctorWithWriter(ctx context.Context, w io.Writer) error {
	runner := newDoctorRunner()
	report := runner.Run(ctx)

	if err := outputDoctorReport(w, report); err != nil {
		return err
	}

	if doctorFix {
		applyFixes(w, runner.Fixers())
	}

	// Determine exit code based on results
	if report.HasErrors() {
		return errors.NewExitError(errDoctorErrors, 2)
	}
	if report.HasWarnings() {
		return errors.NewExitError(errDoctorWarnings, 1)
	}
	return nil
}

func outputDoctorReport(w io.Writer, report *doctor.DoctorReport) error {
	if doctorQuiet {
		return nil
	}

	if doctorJSON {
		return outputDoctorJSON(w, report)
	}

	outputDoctorText(w, report)
	return nil
}

func outputDoctorJSON(w io.Writer, report *doctor.DoctorReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "encoding JSON")
	}
	return nil
}

func outputDoctorText(w io.Writer, report *doctor.DoctorReport) {
	// In normal mode, show only errors and warnings
	// In verbose mode, show all checks
	showAll := doctorVerbose

	hasOutput := false
	for _, result := range report.Results {
		if !showAll && result.Status != doctor.SeverityError && result.Status != doctor.SeverityWarning {
			continue
		}

		hasOutput = true
		fmt.Fprintf(w, "%s [%s] %s: %s\n", statusIcon(result.Status), result.Category, result.Name, result.Message)

		if result.FixHint != "" && result.Status != doctor.SeverityPass {
			fmt.Fprintf(w, "  hint: %s\n", result.FixHint)
		}
	}

	// Print summary
	if hasOutput || showAll {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Summary: %d passed, %d info, %d warnings, %d errors\n",
		report.Summary.Passed, report.Summary.Info, report.Summary.Warnings, report.Summary.Errors)
}

func applyFixes(w io.Writer, fixers []doctor.Fixer) {
	for _, f := range fixers {
		for _, r := range f.Fix() {
			if doctorQuiet {
				continue
			}
			if r.Fixed {
				fmt.Fprintf(w, "fixed %s: %s\n", r.Path, r.Description)
			} else {
				fmt.Fprintf(w, "could not fix %s: %s\n", r.Path, r.Description)
			}
		}
	}
}

func statusIcon(s doctor.Severity) string {
	switch s {
	case doctor.SeverityPass:
		return color.GreenString("✓")
	case doctor.SeverityInfo:
		return color.CyanString("ℹ")
	case doctor.SeverityWarning:
		return color.YellowString("⚠")
	case doctor.SeverityError:
		return color.RedString("✗")
	default:
		return "?"
	}
}

// errDoctorWarnings is a sentinel error for exit code 1.
var errDoctorWarnings = errors.New("doctor found warnings")

// errDoctorErrors is a sentinel error for exit code 2.
var errDoctorErrors = errors.New("doctor found errors")
