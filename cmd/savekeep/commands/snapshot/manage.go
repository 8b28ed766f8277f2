package snapshot

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/service"
)

var pruneAll bool

func init() {
	pruneCmd.Flags().BoolVarP(&pruneAll, "all", "a", false, "Prune every tracked entry")
	Cmd.AddCommand(renameCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(pruneCmd)
}

var renameCmd = &cobra.Command{
	Use:   "rename <name> <id> <new-id>",
	Short: "Rename a snapshot",
	Long: `Give a snapshot a memorable id. Ids start with a letter or digit and may
contain letters, digits, '.', '_' and '-'.`,
	Example: `  # Label a snapshot
  savekeep snapshot rename saves 20260301T120000 before-final-boss`,
	Args: cli.Args(cobra.ExactArgs(3)),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
		if err != nil {
			return err
		}
		defer svc.Close()

		m, err := svc.Rename(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %s\n", cli.Green("✓"), args[1], cli.Bold(m.ID))
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <name> <id>",
	Aliases: []string{"rm"},
	Short:   "Remove one snapshot",
	Long: `Remove one snapshot. Snapshots inside the retention window are protected
and cannot be removed.`,
	Args: cli.Args(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.RemoveOne(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed snapshot %s\n", cli.Green("✓"), args[1])
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune [name]",
	Short: "Remove snapshots outside the retention window",
	Long: `Remove every snapshot older than the newest N, where N is the retention
setting. A retention of 0 keeps everything.`,
	Example: `  # Prune one entry
  savekeep snapshot prune saves

  # Prune every entry
  savekeep snapshot prune --all`,
	Args: cli.Args(func(cmd *cobra.Command, args []string) error {
		switch {
		case pruneAll && len(args) > 0:
			return errors.New("a name cannot be combined with --all")
		case !pruneAll && len(args) != 1:
			return errors.New("requires an entry name or --all")
		}
		return nil
	}),
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	names := args
	if pruneAll {
		if names, err = svc.Names(cmd.Context()); err != nil {
			return err
		}
	}
	return prune(cmd, svc, names)
}

func prune(cmd *cobra.Command, svc *service.Service, names []string) error {
	w := cmd.OutOrStdout()
	total := 0
	for _, name := range names {
		removed, err := svc.Prune(cmd.Context(), name)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			fmt.Fprintf(w, "%s %s: removed %d old snapshot(s)\n", cli.Green("✓"), name, len(removed))
		}
		total += len(removed)
	}

	if total == 0 {
		fmt.Fprintln(w, "No snapshots to prune")
	} else if len(names) > 1 {
		fmt.Fprintf(w, "\nTotal: removed %d snapshot(s)\n", total)
	}
	return nil
}
