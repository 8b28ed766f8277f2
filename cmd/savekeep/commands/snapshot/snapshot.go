// Package snapshot provides CLI commands for taking and managing snapshots.
package snapshot

import (
	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/internal/snapshot"
)

// Cmd is the root snapshot command.
var Cmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"snap"},
	Short:   "Take, list, restore and prune snapshots",
	Long: `Take, list, restore and prune snapshots of tracked entries.

A snapshot is a full copy of an entry's directory and attached paths. The
newest snapshots of each entry, as many as the retention setting, are
protected and cannot be removed or pruned.`,
	Example: `  # Snapshot one entry
  savekeep snapshot create saves

  # Snapshot every entry
  savekeep snapshot create --all

  # Pick a snapshot to restore
  savekeep snapshot restore saves

  See Also:
    savekeep snapshot list    - List snapshots
    savekeep snapshot restore - Restore a snapshot
    savekeep snapshot prune   - Remove old snapshots`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// output is a manifest with its id for JSON output.
type output struct {
	ID string `json:"id"`
	*snapshot.Manifest
}

func outputs(list []snapshot.Manifest) []output {
	out := make([]output, 0, len(list))
	for i := range list {
		out = append(out, output{ID: list[i].ID, Manifest: &list[i]})
	}
	return out
}
