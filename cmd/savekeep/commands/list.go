package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/service"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked entries",
	Long: `List every tracked entry with its root, auxiliary file count, number of
snapshots and the age of the newest one.`,
	Example: `  # List entries
  savekeep list

  # Output as JSON
  savekeep list --json

  See Also:
    savekeep snapshot list - List an entry's snapshots`,
	Args: cli.Args(cobra.NoArgs),
	RunE: runList,
}

// entryOutput represents a single entry in JSON output.
type entryOutput struct {
	Name      string     `json:"name"`
	Root      string     `json:"root"`
	Files     []string   `json:"files"`
	AddedAt   time.Time  `json:"added_at"`
	Snapshots int        `json:"snapshots"`
	Latest    *time.Time `json:"latest,omitempty"`
}

func runList(cmd *cobra.Command, _ []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	out, err := collectEntries(cmd, svc)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if listJSON {
		return cli.WriteJSON(w, out)
	}
	return outputListTabular(w, out)
}

func collectEntries(cmd *cobra.Command, svc *service.Service) ([]entryOutput, error) {
	entries, err := svc.List(cmd.Context())
	if err != nil {
		return nil, err
	}

	out := make([]entryOutput, 0, len(entries))
	for _, e := range entries {
		snaps, err := svc.Snapshots(cmd.Context(), e.Name)
		if err != nil {
			return nil, err
		}
		files := e.Files
		if files == nil {
			files = []string{}
		}
		o := entryOutput{
			Name:      e.Name,
			Root:      e.Root,
			Files:     files,
			AddedAt:   e.AddedAt,
			Snapshots: len(snaps),
		}
		if len(snaps) > 0 {
			latest := snaps[0].CreatedAt
			o.Latest = &latest
		}
		out = append(out, o)
	}
	return out, nil
}

func outputListTabular(w io.Writer, entries []entryOutput) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries tracked")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Track a directory with: savekeep add <path>")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROOT\tFILES\tSNAPSHOTS\tLATEST")
	for _, e := range entries {
		latest := cli.Gray("never")
		if e.Latest != nil {
			latest = humanize.Time(*e.Latest)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", e.Name, e.Root, len(e.Files), e.Snapshots, latest)
	}
	return tw.Flush()
}
