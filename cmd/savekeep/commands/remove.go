package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/cli/prompt"
)

var removeYes bool

func init() {
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(removeCmd)
}

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking an entry and delete its snapshots",
	Long: `Stop tracking an entry and delete every snapshot of it from the store.

The tracked directory itself is not touched. This cannot be undone, so the
command asks for confirmation unless --yes is given.`,
	Example: `  # Remove an entry
  savekeep remove saves

  # Remove without prompting
  savekeep remove saves --yes`,
	Args: cli.Args(cobra.ExactArgs(1)),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	w := cmd.OutOrStdout()
	entry, err := svc.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !removeYes {
		snaps, err := svc.Snapshots(cmd.Context(), entry.Name)
		if err != nil {
			return err
		}
		q := fmt.Sprintf("Remove %s and delete its %d snapshot(s)?", entry.Name, len(snaps))
		if !prompt.NewSelectorWithIO(cmd.InOrStdin(), w).Confirm(q) {
			fmt.Fprintln(w, "Aborted")
			return nil
		}
	}

	if err := svc.Remove(cmd.Context(), entry.Name); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Removed %s\n", cli.Green("✓"), entry.Name)
	return nil
}
