package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
)

var addJSON bool

func init() {
	addCmd.Flags().BoolVar(&addJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Track a directory",
	Long: `Track a directory as a new entry.

The entry is named after the directory's base name; two entries cannot share
a name. The directory must exist.`,
	Example: `  # Track a save folder
  savekeep add ~/Games/Hollow/saves

  See Also:
    savekeep files add       - Attach extra files to an entry
    savekeep snapshot create - Take a snapshot`,
	Args: cli.Args(cobra.ExactArgs(1)),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	entry, err := svc.Add(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if addJSON {
		return cli.WriteJSON(w, entry)
	}
	fmt.Fprintf(w, "%s Tracking %s as %s\n", cli.Green("✓"), entry.Root, cli.Bold(entry.Name))
	return nil
}
