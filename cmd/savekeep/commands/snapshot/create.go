package snapshot

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/service"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

var createAll bool

func init() {
	createCmd.Flags().BoolVarP(&createAll, "all", "a", false, "Snapshot every tracked entry")
	Cmd.AddCommand(createCmd)
}

var createCmd = &cobra.Command{
	Use:   "create [name]...",
	Short: "Take a snapshot",
	Long: `Take a snapshot of one or more entries.

With --all, every tracked entry is captured; up to the concurrency setting
run at the same time. A failing entry does not stop the others.`,
	Example: `  # Snapshot one entry
  savekeep snapshot create saves

  # Snapshot everything
  savekeep snapshot create --all

  See Also:
    savekeep snapshot list - List snapshots`,
	Args: cli.Args(func(cmd *cobra.Command, args []string) error {
		switch {
		case createAll && len(args) > 0:
			return errors.New("names cannot be combined with --all")
		case !createAll && len(args) == 0:
			return errors.New("requires an entry name or --all")
		}
		return nil
	}),
	RunE: runCreate,
}

// createResult is the outcome for one entry.
type createResult struct {
	name     string
	manifest *snapshot.Manifest
	err      error
}

func runCreate(cmd *cobra.Command, args []string) error {
	svc, cfg, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	names := args
	if createAll {
		if names, err = svc.Names(cmd.Context()); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(w, "No entries tracked")
		return nil
	}

	results := createSnapshots(cmd, svc, names, cfg.Concurrency)
	return reportCreate(w, results)
}

// createSnapshots backs up names with at most limit running at once.
func createSnapshots(cmd *cobra.Command, svc *service.Service, names []string, limit int) []createResult {
	results := make([]createResult, len(names))

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, name := range names {
		g.Go(func() error {
			m, err := svc.Backup(cmd.Context(), name)
			results[i] = createResult{name: name, manifest: m, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func reportCreate(w io.Writer, results []createResult) error {
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", cli.Red("✗"), r.name, r.err)
			continue
		}
		fmt.Fprintf(w, "%s %s: created snapshot %s (%d files, %s)\n",
			cli.Green("✓"), r.name, cli.Bold(r.manifest.ID), len(r.manifest.Files), humanize.IBytes(uint64(r.manifest.Size)))
	}

	switch {
	case failed == 0:
		return nil
	case len(results) == 1:
		return results[0].err
	default:
		return errors.NewExitError(errors.Newf("%d of %d snapshots failed", failed, len(results)), errors.ExitSystem)
	}
}
