package snapshot

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/cli/prompt"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/service"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

var restoreYes bool

func init() {
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "Skip the confirmation prompt")
	Cmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore <name> [id]",
	Short: "Restore an entry from a snapshot",
	Long: `Restore an entry's directory and attached paths from a snapshot.

Without an id, a picker lists the entry's snapshots: a fuzzy finder on a
terminal, a numbered prompt otherwise. Before anything is replaced, a
pre-restore snapshot of the current state is taken unless pre_restore_backup
is off. If any target cannot be replaced, already restored targets are
rolled back.`,
	Example: `  # Pick a snapshot interactively
  savekeep snapshot restore saves

  # Restore a specific snapshot
  savekeep snapshot restore saves 20260301T120000 --yes

  See Also:
    savekeep snapshot list - List snapshots`,
	Args: cli.Args(cobra.RangeArgs(1, 2)),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	svc, cfg, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	w := cmd.OutOrStdout()
	sel := prompt.NewSelectorWithIO(cmd.InOrStdin(), w)

	entry, err := svc.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	var id string
	if len(args) == 2 {
		id = args[1]
	} else {
		m, err := pickSnapshot(cmd, svc, sel, entry.Name)
		switch {
		case errors.Is(err, prompt.ErrSelectionCancelled):
			fmt.Fprintln(w, "Aborted")
			return nil
		case errors.Is(err, prompt.ErrInvalidSelection):
			return errors.NewUserError(err, "Enter a number from the list")
		case err != nil:
			return err
		}
		id = m.ID
	}

	if !restoreYes {
		q := fmt.Sprintf("Replace the current files of %s with snapshot %s?", entry.Name, id)
		if !cfg.PreRestoreBackup {
			q += " No safety snapshot will be taken."
		}
		if !sel.Confirm(q) {
			fmt.Fprintln(w, "Aborted")
			return nil
		}
	}

	res, err := svc.Restore(cmd.Context(), entry.Name, id)
	if err != nil {
		return err
	}

	if res.Safety != nil {
		fmt.Fprintf(w, "%s Saved current state as %s\n", cli.Gray("•"), res.Safety.ID)
	}
	fmt.Fprintf(w, "%s Restored %s from %s (%d path(s))\n",
		cli.Green("✓"), entry.Name, cli.Bold(res.Manifest.ID), len(res.Restored))
	return nil
}

// pickSnapshot asks the user to choose one of an entry's snapshots.
func pickSnapshot(cmd *cobra.Command, svc *service.Service, sel *prompt.Selector, name string) (*snapshot.Manifest, error) {
	list, err := svc.Snapshots(cmd.Context(), name)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, cli.UsageError(cmd, prompt.ErrNoSnapshots)
	}
	if cli.IsInteractive(cmd.OutOrStdout()) {
		return prompt.FindSnapshot(list)
	}
	return sel.SelectSnapshot(name, list)
}
