package opener

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/savekeep/internal/errors"
)

func TestViewerCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
		{"darwin", "open"},
		{"windows", "explorer"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := viewerCommand(tt.goos, "/srv/store")
			assert.Equal(t, tt.want, name)
			assert.Equal(t, []string{"/srv/store"}, args)
		})
	}
}

func TestReveal_MissingPath(t *testing.T) {
	err := Reveal(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, errors.ErrInvalidPath))
}

func TestDetectEditor(t *testing.T) {
	tests := []struct {
		name   string
		editor string
		visual string
		want   string
	}{
		{"editor wins", "nvim", "code", "nvim"},
		{"visual when editor empty", "", "code", "code"},
		{"blank editor treated as unset", "  ", "vscode", "vscode"},
		{"arguments kept", "code --wait", "", "code --wait"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EDITOR", tt.editor)
			t.Setenv("VISUAL", tt.visual)
			assert.Equal(t, tt.want, detectEditor())
		})
	}
}

func TestDetectEditor_Fallback(t *testing.T) {
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	want := "vi"
	if _, err := exec.LookPath("nano"); err == nil {
		want = "nano"
	}
	assert.Equal(t, want, detectEditor())
}

func TestEdit_Integration(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the editor")
	}

	dir := t.TempDir()
	output := filepath.Join(dir, "output.txt")
	script := filepath.Join(dir, "mock-editor.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$@\" > "+output+"\n"), 0o755))

	t.Setenv("EDITOR", script+" --wait")
	target := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(target, []byte("retention: 3\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, Edit(target, Streams{In: strings.NewReader(""), Out: &out, Err: &out}))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "--wait "+target+"\n", string(got))
	assert.Contains(t, out.String(), "Location: "+target)
}

func TestEdit_EditorFails(t *testing.T) {
	t.Setenv("EDITOR", filepath.Join(t.TempDir(), "no-such-editor"))

	var out bytes.Buffer
	err := Edit("whatever", Streams{In: strings.NewReader(""), Out: &out, Err: &out})
	assert.Error(t, err)
}
