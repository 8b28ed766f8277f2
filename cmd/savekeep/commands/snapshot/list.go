package snapshot

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/cli/prompt"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

var (
	listJSON bool
	showJSON bool
)

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
}

var listCmd = &cobra.Command{
	Use:     "list <name>",
	Aliases: []string{"ls"},
	Short:   "List an entry's snapshots",
	Long: `List an entry's snapshots, newest first. Snapshots inside the retention
window are marked as protected.`,
	Example: `  # List snapshots
  savekeep snapshot list saves

  # Output as JSON
  savekeep snapshot list saves --json`,
	Args: cli.Args(cobra.ExactArgs(1)),
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show <name> <id>",
	Short: "Show one snapshot",
	Args:  cli.Args(cobra.ExactArgs(2)),
	RunE:  runShow,
}

func runList(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	list, err := svc.Snapshots(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if listJSON {
		return cli.WriteJSON(w, outputs(list))
	}
	return outputListTabular(w, args[0], list, svc.Retention())
}

func outputListTabular(w io.Writer, name string, list []snapshot.Manifest, retention int) error {
	if len(list) == 0 {
		fmt.Fprintf(w, "%s has no snapshots\n", name)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Take one with: savekeep snapshot create %s\n", name)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSIZE\tTRIGGER\tPROTECTED")
	for i, m := range list {
		protected := ""
		if retention > 0 && i < retention {
			protected = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s (%s)\t%s\t%s\t%s\n",
			cli.Green(m.ID),
			m.CreatedAt.Local().Format(time.DateTime), humanize.Time(m.CreatedAt),
			humanize.IBytes(uint64(m.Size)),
			m.Trigger,
			protected)
	}
	return tw.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	m, err := svc.Snapshot(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if showJSON {
		return cli.WriteJSON(w, output{ID: m.ID, Manifest: m})
	}
	fmt.Fprint(w, prompt.Preview(m))
	return nil
}
