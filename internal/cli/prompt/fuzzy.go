package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

// FindSnapshot opens a fuzzy finder over snaps on the terminal.
// An aborted search returns ErrSelectionCancelled.
func FindSnapshot(snaps []snapshot.Manifest) (*snapshot.Manifest, error) {
	if len(snaps) == 0 {
		return nil, ErrNoSnapshots
	}

	idx, err := fuzzyfinder.Find(
		snaps,
		func(i int) string {
			return Label(&snaps[i])
		},
		fuzzyfinder.WithPromptString("snapshot> "),
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return Preview(&snaps[i])
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, ErrSelectionCancelled
		}
		return nil, errors.Wrap(err, "interactive selection failed")
	}
	return &snaps[idx], nil
}

// Label is the one-line description of a snapshot used in pickers.
func Label(m *snapshot.Manifest) string {
	label := fmt.Sprintf("%s  %s  %s", m.ID, m.CreatedAt.Local().Format(time.DateTime), humanize.IBytes(uint64(m.Size)))
	if m.Trigger == snapshot.TriggerPreRestore {
		label += "  (pre-restore)"
	}
	return label
}

// Preview describes a snapshot in the finder's preview pane.
func Preview(m *snapshot.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:      %s\n", m.ID)
	fmt.Fprintf(&b, "Created: %s (%s)\n", m.CreatedAt.Local().Format(time.DateTime), humanize.Time(m.CreatedAt))
	fmt.Fprintf(&b, "Trigger: %s\n", m.Trigger)
	fmt.Fprintf(&b, "Size:    %s in %d records\n", humanize.IBytes(uint64(m.Size)), len(m.Files))
	fmt.Fprintf(&b, "Hash:    %s\n\nItems:\n", m.ContentHash)
	for _, item := range m.Items {
		fmt.Fprintf(&b, "  %-4s %s\n", item.Kind, item.Path)
	}
	return b.String()
}
