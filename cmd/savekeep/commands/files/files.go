// Package files provides CLI commands for an entry's auxiliary paths.
package files

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(removeCmd)
}

// Cmd is the root files command.
var Cmd = &cobra.Command{
	Use:   "files",
	Short: "Manage files attached to an entry",
	Long: `Manage auxiliary paths: files or directories outside an entry's root that
are captured and restored together with it, such as a settings file kept
next to the game.`,
	Example: `  # Attach a settings file
  savekeep files add saves ~/.config/hollow/settings.ini

  # List attached paths
  savekeep files list saves

  See Also:
    savekeep files list   - List attached paths
    savekeep files add    - Attach paths
    savekeep files remove - Detach a path`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var listCmd = &cobra.Command{
	Use:   "list <name>",
	Short: "List an entry's attached paths",
	Args:  cli.Args(cobra.ExactArgs(1)),
	RunE:  runList,
}

var addCmd = &cobra.Command{
	Use:   "add <name> <path>...",
	Short: "Attach paths to an entry",
	Long: `Attach one or more paths to an entry. Either every path is attached or,
when one is invalid, none is. Paths already attached are skipped.`,
	Args: cli.Args(cobra.MinimumNArgs(2)),
	RunE: runAdd,
}

var removeCmd = &cobra.Command{
	Use:     "remove <name> <path>",
	Aliases: []string{"rm"},
	Short:   "Detach a path from an entry",
	Long:    `Detach a path from an entry. Existing snapshots keep their copy of it.`,
	Args:    cli.Args(cobra.ExactArgs(2)),
	RunE:    runRemove,
}

func runList(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	paths, err := svc.Files(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return outputList(cmd.OutOrStdout(), args[0], paths)
}

func outputList(w io.Writer, name string, paths []string) error {
	if listJSON {
		return cli.WriteJSON(w, paths)
	}
	if len(paths) == 0 {
		fmt.Fprintf(w, "%s has no attached paths\n", name)
		return nil
	}
	for _, p := range paths {
		fmt.Fprintln(w, p)
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	added, err := svc.AddFiles(cmd.Context(), args[0], args[1:])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, p := range added {
		fmt.Fprintf(w, "%s Attached %s\n", cli.Green("✓"), p)
	}
	if skipped := len(args[1:]) - len(added); skipped > 0 {
		fmt.Fprintf(w, "%s\n", cli.Gray(fmt.Sprintf("%d path(s) already attached", skipped)))
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.RemoveFile(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Detached %s\n", cli.Green("✓"), args[1])
	return nil
}
