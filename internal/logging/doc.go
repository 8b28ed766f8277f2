// Package logging provides structured logging for savekeep using slog.
//
// The package supports both text and JSON output formats, configurable log
// levels, and helpers for testing. All loggers are based on the standard
// library's [log/slog] package.
//
// # Basic Usage
//
//	logger, closer, err := logging.Setup(logging.Options{
//		Level:  slog.LevelInfo,
//		Format: logging.FormatText,
//		File:   "/tmp/savekeep.log",
//	})
//	if err != nil {
//		return err
//	}
//	defer closer.Close()
//	logger.Info("snapshot created", "entry", "hollow")
//
// With File set, records are also appended to it as JSON.
//
// # Testing
//
// For tests, use [ForTest] to capture log output via the testing framework:
//
//	func TestSomething(t *testing.T) {
//		logger := logging.ForTest(t)
//		// logs appear in test output on failure
//	}
//
// # Verbosity
//
// The CLI maps repeated -v flags to a level with [LevelFromVerbosity]; three
// or more select [LevelTrace], which logs every copied file.
//
// # Quiet Mode
//
// Use [NewDiscard] when log output should be suppressed entirely:
//
//	logger := logging.NewDiscard()
package logging
