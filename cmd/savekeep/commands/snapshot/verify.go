package snapshot

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

var verifyJSON bool

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Output in JSON format")
	Cmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <name> [id]",
	Short: "Check snapshots against their manifests",
	Long: `Re-hash snapshot files and compare them with the recorded manifest.
Without an id, every snapshot of the entry is checked.`,
	Example: `  # Verify all snapshots of an entry
  savekeep snapshot verify saves`,
	Args: cli.Args(cobra.RangeArgs(1, 2)),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	svc, _, err := cli.OpenService(cmd.Context(), flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	ids := args[1:]
	if len(ids) == 0 {
		if ids, err = svc.Backups(cmd.Context(), args[0]); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	results := make([]*snapshot.VerifyResult, 0, len(ids))
	corrupted := 0
	for _, id := range ids {
		res, err := svc.Verify(cmd.Context(), args[0], id)
		if res == nil {
			return err
		}
		results = append(results, res)
		if !res.OK() {
			corrupted++
		}
		if verifyJSON {
			continue
		}
		if res.OK() {
			fmt.Fprintf(w, "%s %s: %d records ok\n", cli.Green("✓"), id, res.Files)
			continue
		}
		fmt.Fprintf(w, "%s %s:\n", cli.Red("✗"), id)
		for _, p := range res.Problems {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}

	if verifyJSON {
		if err := cli.WriteJSON(w, results); err != nil {
			return err
		}
	} else if len(ids) == 0 {
		fmt.Fprintf(w, "%s has no snapshots\n", args[0])
	}

	if corrupted > 0 {
		return errors.Mark(errors.Newf("%d of %d snapshot(s) are corrupted", corrupted, len(ids)), errors.ErrBackupCorrupted)
	}
	return nil
}
