// Package doctor provides diagnostic checks for a savekeep store.
package doctor

import (
	"time"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// Severity indicates the importance level of a check result.
type Severity int

const (
	// SeverityPass indicates the check passed without issues.
	SeverityPass Severity = iota

	// SeverityInfo indicates informational output, not a problem.
	SeverityInfo

	// SeverityWarning indicates a potential issue that doesn't prevent operation.
	SeverityWarning

	// SeverityError indicates a problem that prevents proper operation.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityPass:
		return "pass"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON reports.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (s *Severity) UnmarshalText(text []byte) error {
	for sev := SeverityPass; sev <= SeverityError; sev++ {
		if sev.String() == string(text) {
			*s = sev
			return nil
		}
	}
	return errors.Newf("unknown severity %q", text)
}

// CheckResult represents the outcome of a single diagnostic check.
type CheckResult struct {
	// Name is the identifier for this check.
	Name string `json:"name"`

	// Category groups related checks ("store", "entries", "snapshots").
	Category string `json:"category"`

	// Status is the highest severity found.
	Status Severity `json:"status"`

	// Message describes the check outcome.
	Message string `json:"message"`

	// Issues lists every problem found, in discovery order.
	Issues []Issue `json:"issues,omitempty"`

	// Fixable indicates whether doctor --fix can repair some of the issues.
	Fixable bool `json:"fixable,omitempty"`

	// FixHint provides guidance on how to resolve the issue.
	FixHint string `json:"fix_hint,omitempty"`

	// Duration is how long the check ran.
	Duration time.Duration `json:"duration_ns"`
}

// Issue is one problem found by a check.
type Issue struct {
	Path     string   `json:"path"`
	Entry    string   `json:"entry,omitempty"`
	Problem  string   `json:"problem"`
	Severity Severity `json:"severity"`
	Fixable  bool     `json:"fixable,omitempty"`
}

// Summary aggregates counts of check results by severity.
type Summary struct {
	Passed   int `json:"passed"`
	Info     int `json:"info"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

func (s *Summary) add(sev Severity) {
	switch sev {
	case SeverityPass:
		s.Passed++
	case SeverityInfo:
		s.Info++
	case SeverityWarning:
		s.Warnings++
	case SeverityError:
		s.Errors++
	}
}
