package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/journal"
)

var (
	historyOp    string
	historyLimit int
	historyJSON  bool
)

func init() {
	historyCmd.Flags().StringVar(&historyOp, "op", "", "Only show this operation (e.g. backup, restore)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", journal.DefaultLimit, "Maximum number of events")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [name]",
	Short: "Show the operation journal",
	Long: `Show recorded operations, newest first.

Every change to the store is journaled with its outcome. The journal can be
turned off with the journal config key, in which case history is empty.`,
	Example: `  # Recent operations
  savekeep history

  # Restores of one entry
  savekeep history saves --op restore`,
	Args: cli.Args(cobra.MaximumNArgs(1)),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, cfg, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	f := journal.Filter{Op: historyOp, Limit: historyLimit}
	if len(args) == 1 {
		entry, err := svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		f.Entry = entry.Name
	}
	events, err := svc.History(cmd.Context(), f)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if historyJSON {
		return cli.WriteJSON(w, events)
	}
	if !cfg.Journal {
		fmt.Fprintln(w, "The journal is disabled (journal: false)")
		return nil
	}
	return outputHistory(w, events)
}

func outputHistory(w io.Writer, events []journal.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(w, "No recorded operations")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tOP\tENTRY\tSNAPSHOT\tOUTCOME\tMESSAGE")
	for _, ev := range events {
		outcome := cli.Green(string(ev.Outcome))
		if ev.Outcome == journal.OutcomeError {
			outcome = cli.Red(string(ev.Outcome))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(ev.Time), ev.Op, ev.Entry, ev.Snapshot, outcome, ev.Message)
	}
	return tw.Flush()
}
