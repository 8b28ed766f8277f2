// Package errors provides error handling conventions for savekeep.
//
// It defines the backend failure taxonomy as sentinel errors, re-exports the
// github.com/cockroachdb/errors helpers used throughout the code base, and
// carries the ExitError type for CLI exit code handling.
//
// # Sentinel Errors
//
// Callers check for specific conditions with [Is]:
//
//	if errors.Is(err, errors.ErrSnapshotNotFound) {
//	    // handle unknown snapshot
//	}
//
// Filesystem failures are marked with [ErrIOFailure] through [IO] and [IOf],
// so the underlying cause stays in the chain while the kind is preserved.
//
// # Kinds
//
// [KindOf] maps an error chain to a [Kind] string such as "NotFound" or
// "ProtectedSnapshot". The HTTP and MCP surfaces report kinds to callers.
//
// # Exit Codes
//
//   - ExitSuccess (0): Command completed successfully
//   - ExitUser (1): User-related error (invalid input, unknown entry, etc.)
//   - ExitSystem (2): System-related error (I/O, permissions, etc.)
//
// [ForCLI] turns a backend error into an [ExitError] with a suggestion.
package errors
