package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Exit codes for CLI applications.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitUser indicates a user-related error (invalid input, configuration, etc.).
	ExitUser = 1

	// ExitSystem indicates a system-related error (I/O, permissions, etc.).
	ExitSystem = 2
)

// Sentinel errors forming the backend failure taxonomy.
var (
	// ErrMissingName indicates a required name argument is empty.
	ErrMissingName = crdb.New("name is required")

	// ErrNotFound indicates the entry (or a tracked path of it) is unknown.
	ErrNotFound = crdb.New("not found")

	// ErrSnapshotNotFound indicates the snapshot identifier does not exist for the entry.
	ErrSnapshotNotFound = crdb.New("snapshot not found")

	// ErrDuplicateName indicates an entry with the derived name already exists.
	ErrDuplicateName = crdb.New("duplicate entry name")

	// ErrDuplicateSnapshotID indicates the snapshot identifier is already used by the entry.
	ErrDuplicateSnapshotID = crdb.New("duplicate snapshot id")

	// ErrInvalidPath indicates a source path is missing, unreadable, or of the wrong kind.
	ErrInvalidPath = crdb.New("invalid path")

	// ErrInvalidName indicates a malformed entry name or snapshot identifier.
	ErrInvalidName = crdb.New("invalid name")

	// ErrProtectedSnapshot indicates the snapshot lies inside the retention window.
	ErrProtectedSnapshot = crdb.New("snapshot is protected by retention")

	// ErrIOFailure indicates a copy, write, or rename failed during backup or restore.
	ErrIOFailure = crdb.New("i/o failure")

	// ErrBackupCorrupted indicates a snapshot file no longer matches its
	// manifest. It is also an ErrIOFailure.
	ErrBackupCorrupted = crdb.Mark(crdb.New("snapshot is corrupted"), ErrIOFailure)

	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = crdb.New("invalid configuration")
)

// Re-exported helpers so callers need a single errors import.
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
	Mark        = crdb.Mark
	Is          = crdb.Is
	IsAny       = crdb.IsAny
	As          = crdb.As
)

// IO marks err as an I/O failure while keeping its message and chain.
// A nil err yields nil.
func IO(err error, msg string) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.Wrap(err, msg), ErrIOFailure)
}

// IOf is IO with a format string.
func IOf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.Wrapf(err, format, args...), ErrIOFailure)
}

// ExitError wraps an error with an exit code and optional suggestion for CLI applications.
// It implements the error interface and supports unwrapping via errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and exit code.
// If err is nil, the returned ExitError will have a nil Err field.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{
		Err:  err,
		Code: code,
	}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: suggestion,
	}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitSystem,
		Suggestion: suggestion,
	}
}

// NewConfigError creates an ExitError with ExitUser code and a standard suggestion.
func NewConfigError(err error) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: "Run: savekeep doctor",
	}
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ForCLI converts a backend error into an ExitError with a code and hint
// matching its kind. Errors that already are ExitErrors pass through.
func ForCLI(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if As(err, &exitErr) {
		return err
	}

	switch KindOf(err) {
	case KindNotFound:
		return NewUserError(err, "Run 'savekeep list' to see tracked entries")
	case KindSnapshotNotFound:
		return NewUserError(err, "Run 'savekeep snapshot list <name>' to see snapshot ids")
	case KindProtectedSnapshot:
		return NewUserError(err, "Only snapshots older than the retention window can be removed")
	case KindIOFailure, KindInternal:
		return NewSystemError(err, "")
	default:
		return NewUserError(err, "")
	}
}
