package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// Format specifies the output format for log messages.
type Format string

const (
	// FormatText produces human-readable text output.
	FormatText Format = "text"
	// FormatJSON produces machine-readable JSON output.
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", errors.Newf("unknown log format %q", s)
}

// Options describes the logger the CLI builds at startup.
type Options struct {
	Level  slog.Level
	Format Format

	// Output receives the primary stream. Nil means os.Stderr.
	Output io.Writer

	// File, when set, is appended to in JSON at the same level.
	File string
}

// Setup builds a logger from opts. The returned closer releases the log
// file and is never nil.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	var handlers fanout
	switch opts.Format {
	case FormatJSON:
		handlers = append(handlers, slog.NewJSONHandler(out, hopts))
	case FormatText, "":
		handlers = append(handlers, NewHandler(out, hopts))
	default:
		return nil, nil, errors.Newf("unknown log format %q", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening log file")
		}
		handlers = append(handlers, slog.NewJSONHandler(f, hopts))
		closer = f
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(handlers), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewDiscard creates a logger that discards all output.
// Components default to it when no logger is injected.
func NewDiscard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testWriter adapts testing.T to io.Writer for use with slog handlers.
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	// t.Log adds its own newline
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// ForTest creates a Debug level logger that writes to the test's log output.
// Messages appear only when the test fails or when running with -v.
func ForTest(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(NewHandler(testWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
