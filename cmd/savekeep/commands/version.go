package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd"
	"github.com/thoreinstein/savekeep/internal/cli"
)

var versionJSON bool

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(versionCmd)
}

type versionOutput struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version, commit, and build date of savekeep.`,
	Args:  cli.Args(cobra.NoArgs),
	RunE: func(c *cobra.Command, _ []string) error {
		w := c.OutOrStdout()
		if versionJSON {
			return cli.WriteJSON(w, versionOutput{Version: cmd.Version, Commit: cmd.Commit, Date: cmd.Date, Go: runtime.Version()})
		}
		fmt.Fprintf(w, "savekeep version %s\n", cmd.Version)
		fmt.Fprintf(w, "  commit: %s\n", cmd.Commit)
		fmt.Fprintf(w, "  built:  %s\n", cmd.Date)
		fmt.Fprintf(w, "  go:     %s\n", runtime.Version())
		return nil
	},
}
