// Package opener hands paths to programs outside savekeep: the desktop
// file manager and the user's text editor.
package opener

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// Streams are the terminal an editor runs on.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process's own streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Reveal opens path in the system file manager and returns without
// waiting for it to close.
func Reveal(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(errors.ErrInvalidPath, "%s", path)
	}
	name, args := viewerCommand(runtime.GOOS, path)
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "starting %s", name)
	}
	// Reap the viewer launcher in the background
	go func() { _ = cmd.Wait() }()
	return nil
}

// viewerCommand returns the launcher for the given OS.
func viewerCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "explorer", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

// Edit launches the user's preferred editor on path and waits for it.
// Uses $EDITOR, falling back to $VISUAL, then nano, then vi. The variable
// may carry arguments, as in "code --wait".
func Edit(path string, s Streams) error {
	fields := strings.Fields(detectEditor())

	fmt.Fprintf(s.Out, "Location: %s\n", path)

	cmd := exec.Command(fields[0], append(fields[1:], path)...)
	cmd.Stdin = s.In
	cmd.Stdout = s.Out
	cmd.Stderr = s.Err

	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "running editor")
	}
	return nil
}

// detectEditor returns the editor command line. Fallback chain:
// $EDITOR, $VISUAL, nano, vi.
func detectEditor() string {
	if editor := strings.TrimSpace(os.Getenv("EDITOR")); editor != "" {
		return editor
	}
	if visual := strings.TrimSpace(os.Getenv("VISUAL")); visual != "" {
		return visual
	}
	if _, err := exec.LookPath("nano"); err == nil {
		return "nano"
	}
	return "vi"
}
