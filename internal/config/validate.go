package config

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// Validation errors for configuration fields.
var (
	// ErrUnsupportedVersion indicates the version field is not 1.
	ErrUnsupportedVersion = errors.New("unsupported config version")

	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrOutOfRange indicates a numeric value is outside its allowed range.
	ErrOutOfRange = errors.New("value out of range")

	// ErrInvalidChoice indicates a value is not one of the allowed choices.
	ErrInvalidChoice = errors.New("invalid choice")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version != 1 {
		errs = append(errs, &FieldError{Field: "version", Value: strconv.Itoa(cfg.Version), Err: ErrUnsupportedVersion})
	}

	if err := validatePath(cfg.StoreDir); err != nil {
		errs = append(errs, &FieldError{Field: "store_dir", Value: cfg.StoreDir, Err: err})
	}

	if cfg.Retention < 0 {
		errs = append(errs, &FieldError{Field: "retention", Value: strconv.Itoa(cfg.Retention), Err: ErrOutOfRange})
	}

	switch cfg.PathCase {
	case PathCaseSensitive, PathCaseInsensitive:
	default:
		errs = append(errs, &FieldError{Field: "path_case", Value: cfg.PathCase, Err: ErrInvalidChoice})
	}

	if cfg.OperationTimeout < 0 {
		errs = append(errs, &FieldError{Field: "operation_timeout", Value: cfg.OperationTimeout.String(), Err: ErrOutOfRange})
	}

	if cfg.Concurrency < 1 {
		errs = append(errs, &FieldError{Field: "concurrency", Value: strconv.Itoa(cfg.Concurrency), Err: ErrOutOfRange})
	}

	if strings.TrimSpace(cfg.Serve.Addr) == "" {
		errs = append(errs, &FieldError{Field: "serve.addr", Value: cfg.Serve.Addr, Err: ErrInvalidChoice})
	}

	return errs
}

// validatePath checks that a store path is absolute and well-formed.
// It does not check if the path exists.
func validatePath(path string) error {
	// Check for null bytes which are never valid in paths
	if path == "" || strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	if !filepath.IsAbs(path) {
		return errors.Wrap(ErrInvalidPath, "must be absolute")
	}
	return nil
}

// FieldError represents an error for a specific configuration field.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Value
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
