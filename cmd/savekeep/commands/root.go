// Package commands implements the CLI commands for savekeep.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd"
	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/files"
	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/snapshot"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/logging"
	snapshotengine "github.com/thoreinstein/savekeep/internal/snapshot"
)

// debugEnv raises verbosity when no -v flag is given.
const debugEnv = "SAVEKEEP_DEBUG"

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// logCloser releases the --log-file handle after the command ran.
var logCloser io.Closer

// storeOpts holds --config and --store.
var storeOpts cli.Options

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")
	rootCmd.PersistentFlags().StringVar(&storeOpts.ConfigFile, "config", "",
		"config file (default: search . and the user config dir)")
	rootCmd.PersistentFlags().StringVar(&storeOpts.StoreDir, "store", "",
		"store directory (overrides store_dir)")

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("savekeep version {{.Version}}\n")

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.SetFlagErrorFunc(cli.UsageError)

	rootCmd.AddCommand(files.Cmd)
	rootCmd.AddCommand(snapshot.Cmd)

	snapshotengine.Version = cmd.Version
}

var rootCmd = &cobra.Command{
	Use:   "savekeep",
	Short: "Snapshot and restore directories you care about",
	Long: `savekeep keeps point-in-time snapshots of tracked directories, such as game
save folders, plus any extra files that belong with them.

Each tracked directory is an entry named after its base name. Snapshots are
full copies kept in the store; the newest ones are protected by the retention
window. Restoring takes a safety snapshot first unless pre_restore_backup is
turned off.`,
	Example: `  # Track a directory
  savekeep add ~/Games/Hollow/saves

  # Take a snapshot
  savekeep snapshot create saves

  # Restore the newest snapshot
  savekeep snapshot restore saves

  # Check the store
  savekeep doctor

  See Also: savekeep config, savekeep serve, savekeep mcp`,
	Args: cli.Args(cobra.NoArgs),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		flags.SetOptions(storeOpts)
		return setupLogging(cmd)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(errors.New("cannot use --quiet and --verbose together"), "")
	}

	var level slog.Level
	if quiet {
		level = slog.LevelError
	} else {
		v := verbosity

		// CLI flags take precedence, but if not set, check env var
		if v == 0 {
			if val, ok := os.LookupEnv(debugEnv); ok {
				switch val {
				case "1", "true":
					v = 2 // Debug
				case "2":
					v = 3 // Trace
				}
			}
		}
		level = logging.LevelFromVerbosity(v)
	}

	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return errors.NewUserError(err, "Use --log-format text or json")
	}

	logger, closer, err := logging.Setup(logging.Options{
		Level:  level,
		Format: format,
		Output: cmd.ErrOrStderr(),
		File:   logFile,
	})
	if err != nil {
		return errors.NewUserError(err, "Check the --log-file path")
	}
	closeLog()
	logCloser = closer

	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

// Execute runs the root command.
func Execute() error {
	defer closeLog()
	return rootCmd.Execute()
}

func closeLog() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// Main runs the CLI, reports a failure on stderr and returns the exit code.
func Main(stderr io.Writer) int {
	err := errors.ForCLI(Execute())
	if err == nil {
		return errors.ExitSuccess
	}

	var exitErr *errors.ExitError
	if !errors.As(err, &exitErr) {
		exitErr = errors.NewSystemError(err, "")
	}
	if exitErr.Err != nil {
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		fmt.Fprintf(stderr, "%s %v\n", red("Error:"), exitErr.Err)
		if exitErr.Suggestion != "" {
			fmt.Fprintf(stderr, "  %s\n", exitErr.Suggestion)
		}
	}
	return exitErr.Code
}
