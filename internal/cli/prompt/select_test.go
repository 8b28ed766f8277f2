package prompt

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

func snaps(ids ...string) []snapshot.Manifest {
	out := make([]snapshot.Manifest, 0, len(ids))
	for i, id := range ids {
		out = append(out, snapshot.Manifest{
			ID:        id,
			Sequence:  int64(len(ids) - i),
			CreatedAt: time.Date(2026, 3, 1, 12, 0, len(ids)-i, 0, time.UTC),
			Trigger:   snapshot.TriggerManual,
			Size:      2048,
		})
	}
	return out
}

func TestSelectSnapshot_EmptyList(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSelectorWithIO(strings.NewReader(""), &buf)

	_, err := s.SelectSnapshot("project", nil)
	assert.True(t, errors.Is(err, ErrNoSnapshots))
}

func TestSelectSnapshot_SingleItem(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSelectorWithIO(strings.NewReader(""), &buf)

	got, err := s.SelectSnapshot("project", snaps("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Zero(t, buf.Len(), "single item should not prompt")
}

func TestSelectSnapshot_ValidSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		wantID string
	}{
		{"explicit first", "1\n", "new"},
		{"explicit second", "2\n", "mid"},
		{"default on empty", "\n", "new"},
		{"whitespace trimmed", "  3  \n", "old"},
		{"no trailing newline", "2", "mid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			s := NewSelectorWithIO(strings.NewReader(tt.input), &buf)

			got, err := s.SelectSnapshot("project", snaps("new", "mid", "old"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Contains(t, buf.String(), `Snapshots of "project"`)
			assert.Contains(t, buf.String(), "[3] old")
		})
	}
}

func TestSelectSnapshot_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"not a number", "abc\n", ErrInvalidSelection},
		{"zero", "0\n", ErrInvalidSelection},
		{"too large", "4\n", ErrInvalidSelection},
		{"eof", "", ErrSelectionCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			s := NewSelectorWithIO(strings.NewReader(tt.input), &buf)

			_, err := s.SelectSnapshot("project", snaps("new", "mid", "old"))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"Y", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			s := NewSelectorWithIO(strings.NewReader(tt.input), &buf)
			assert.Equal(t, tt.want, s.Confirm("Remove entry?"))
			assert.Contains(t, buf.String(), "Remove entry? [y/N]: ")
		})
	}
}

func TestLabelAndPreview(t *testing.T) {
	m := snapshot.Manifest{
		ID:          "20260301T120000",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Trigger:     snapshot.TriggerPreRestore,
		Size:        2048,
		ContentHash: "abc123",
		Items: []snapshot.Item{
			{Kind: snapshot.ItemRoot, Path: "/data/project"},
			{Kind: snapshot.ItemAux, Path: "/etc/game.ini"},
		},
	}

	label := Label(&m)
	assert.True(t, strings.HasPrefix(label, "20260301T120000  "))
	assert.Contains(t, label, "2.0 KiB")
	assert.Contains(t, label, "(pre-restore)")

	preview := Preview(&m)
	assert.Contains(t, preview, "Hash:    abc123")
	assert.Contains(t, preview, "root /data/project")
	assert.Contains(t, preview, "aux  /etc/game.ini")
}
