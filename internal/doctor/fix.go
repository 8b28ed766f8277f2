package doctor

import (
	"os"
)

// Fixer is implemented by checks that can repair what they found.
// Both methods act on the findings of the latest Run.
type Fixer interface {
	CanFix() bool
	Fix() []FixResult
}

// FixResult describes the outcome of one repair.
type FixResult struct {
	Path        string `json:"path"`
	Fixed       bool   `json:"fixed"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

// RemovalFixer deletes the paths of fixable issues. It is embedded in the
// checks whose findings are leftovers of interrupted operations.
type RemovalFixer struct {
	targets []Issue
}

// CanFix reports whether the latest Run found removable paths.
func (f *RemovalFixer) CanFix() bool {
	return len(f.targets) > 0
}

// Fix removes every fixable path and forgets it.
func (f *RemovalFixer) Fix() []FixResult {
	results := make([]FixResult, 0, len(f.targets))
	for _, issue := range f.targets {
		result := FixResult{Path: issue.Path}
		if err := os.RemoveAll(issue.Path); err != nil {
			result.Description = "could not remove " + issue.Path
			result.Error = err.Error()
		} else {
			result.Fixed = true
			result.Description = "removed " + issue.Path + " (" + issue.Problem + ")"
		}
		results = append(results, result)
	}
	f.targets = nil
	return results
}

// setIssues keeps the fixable issues of a Run.
func (f *RemovalFixer) setIssues(issues []Issue) {
	f.targets = f.targets[:0]
	for _, issue := range issues {
		if issue.Fixable {
			f.targets = append(f.targets, issue)
		}
	}
}
