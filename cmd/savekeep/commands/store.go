package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/opener"
)

var (
	openLive bool
	openPath string
)

func init() {
	openCmd.Flags().BoolVar(&openLive, "live", false, "Open the entry's tracked directory instead of its store directory")
	openCmd.Flags().StringVar(&openPath, "path", "", "Open an arbitrary path")
	rootCmd.AddCommand(rootPathCmd)
	rootCmd.AddCommand(openCmd)
}

var rootPathCmd = &cobra.Command{
	Use:   "root",
	Short: "Print the store directory",
	Long:  `Print the directory holding the index, the journal and all snapshots.`,
	Example: `  # Show where snapshots live
  savekeep root

  # Use a different store for one command
  savekeep --store /mnt/backup/savekeep list`,
	Args: cli.Args(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
		if err != nil {
			return err
		}
		defer svc.Close()
		fmt.Fprintln(cmd.OutOrStdout(), svc.Root())
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open [name]",
	Short: "Open the store or an entry in the file manager",
	Long: `Open a directory in the system file manager (xdg-open, open or explorer).

Without a name, opens the store. With a name, opens the entry's store
directory, or its tracked directory with --live. --path opens any path.`,
	Example: `  # Open the store
  savekeep open

  # Open an entry's snapshots
  savekeep open saves

  # Open the tracked directory
  savekeep open saves --live`,
	Args: cli.Args(cobra.MaximumNArgs(1)),
	RunE: runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	if openPath != "" {
		if len(args) > 0 || openLive {
			return cli.UsageError(cmd, errors.New("--path cannot be combined with a name or --live"))
		}
		return opener.Reveal(cmd.Context(), openPath)
	}

	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	target := svc.Root()
	switch {
	case len(args) == 1 && openLive:
		entry, err := svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		target = entry.Root
	case len(args) == 1:
		target, err = svc.EntryDir(cmd.Context(), args[0])
		if err != nil {
			return err
		}
	case openLive:
		return cli.UsageError(cmd, errors.New("--live needs an entry name"))
	}
	return opener.Reveal(cmd.Context(), target)
}
