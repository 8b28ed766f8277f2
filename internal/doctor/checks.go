package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thoreinstein/savekeep/internal/paths"
	"github.com/thoreinstein/savekeep/internal/registry"
	"github.com/thoreinstein/savekeep/internal/snapshot"
	"github.com/thoreinstein/savekeep/pkg/fileutil"
)

// Store is what the checks need from the backend.
type Store interface {
	Root() string
	List(ctx context.Context) ([]registry.Entry, error)
	Verify(ctx context.Context, name, id string) (*snapshot.VerifyResult, error)
}

// Restore holder directories are created next to restore targets.
const holderPrefix = ".savekeep-restore-"

// Checks returns the standard set of store checks. With deep set, every
// snapshot is re-hashed.
func Checks(s Store, deep bool) []Check {
	return []Check{
		&StoreCheck{store: s},
		&IndexCheck{store: s},
		&EntryPathsCheck{store: s},
		&OrphanCheck{store: s},
		&StaleCheck{store: s},
		&SnapshotCheck{store: s, deep: deep},
	}
}

// StoreCheck verifies the store directory exists and is writable.
type StoreCheck struct {
	store Store
}

var _ Check = (*StoreCheck)(nil)

func (c *StoreCheck) Name() string     { return "store-writable" }
func (c *StoreCheck) Category() string { return "store" }

func (c *StoreCheck) Run(_ context.Context) *CheckResult {
	root := c.store.Root()
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return c.fail(root, "store directory is missing", "set store_dir or run any savekeep command to create it")
	}

	tmp, err := os.CreateTemp(root, ".savekeep-doctor-*")
	if err != nil {
		return c.fail(root, "store directory is not writable: "+err.Error(), "chmod u+w "+root)
	}
	name := tmp.Name()
	tmp.Close()
	os.Remove(name)

	return &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   SeverityPass,
		Message:  "store directory is writable",
	}
}

func (c *StoreCheck) fail(path, problem, hint string) *CheckResult {
	return &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   SeverityError,
		Message:  problem,
		Issues:   []Issue{{Path: path, Problem: problem, Severity: SeverityError}},
		FixHint:  hint,
	}
}

// IndexCheck verifies index.yaml can be read.
type IndexCheck struct {
	store Store
}

var _ Check = (*IndexCheck)(nil)

func (c *IndexCheck) Name() string     { return "index" }
func (c *IndexCheck) Category() string { return "store" }

func (c *IndexCheck) Run(ctx context.Context) *CheckResult {
	entries, err := c.store.List(ctx)
	if err != nil {
		index := paths.Store(c.store.Root()).Index()
		return &CheckResult{
			Name:     c.Name(),
			Category: c.Category(),
			Status:   SeverityError,
			Message:  "entry index is unreadable",
			Issues:   []Issue{{Path: index, Problem: err.Error(), Severity: SeverityError}},
			FixHint:  "restore " + index + " from a copy or fix its YAML by hand",
		}
	}
	return &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   SeverityPass,
		Message:  fmt.Sprintf("%d entries tracked", len(entries)),
	}
}

// EntryPathsCheck verifies entry roots and auxiliary paths still exist.
type EntryPathsCheck struct {
	store Store
}

var _ Check = (*EntryPathsCheck)(nil)

func (c *EntryPathsCheck) Name() string     { return "entry-paths" }
func (c *EntryPathsCheck) Category() string { return "entries" }

func (c *EntryPathsCheck) Run(ctx context.Context) *CheckResult {
	entries, err := c.store.List(ctx)
	if err != nil {
		return skipped(c)
	}

	var issues []Issue
	checked := 0
	for _, e := range entries {
		checked++
		info, err := os.Stat(e.Root)
		switch {
		case err != nil:
			issues = append(issues, Issue{Path: e.Root, Entry: e.Name, Problem: "root is missing; backups will fail", Severity: SeverityError})
		case !info.IsDir():
			issues = append(issues, Issue{Path: e.Root, Entry: e.Name, Problem: "root is not a directory", Severity: SeverityError})
		}
		for _, f := range e.Files {
			checked++
			if _, err := os.Lstat(f); err != nil {
				issues = append(issues, Issue{Path: f, Entry: e.Name, Problem: "auxiliary path is missing; it is skipped in backups", Severity: SeverityWarning})
			}
		}
	}
	return buildResult(c, issues, fmt.Sprintf("all %d tracked paths exist", checked),
		"remove the entry or restore the missing paths")
}

// OrphanCheck finds entry directories in the store that the index no
// longer knows, and purges that were interrupted.
type OrphanCheck struct {
	RemovalFixer
	store Store
}

var (
	_ Check = (*OrphanCheck)(nil)
	_ Fixer = (*OrphanCheck)(nil)
)

func (c *OrphanCheck) Name() string     { return "orphans" }
func (c *OrphanCheck) Category() string { return "store" }

func (c *OrphanCheck) Run(ctx context.Context) *CheckResult {
	entries, err := c.store.List(ctx)
	if err != nil {
		c.setIssues(nil)
		return skipped(c)
	}
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Name] = true
	}

	dir := paths.Store(c.store.Root()).Entries()
	dirents, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		c.setIssues(nil)
		return buildResult(c, []Issue{{Path: dir, Problem: err.Error(), Severity: SeverityError}}, "", "")
	}

	var issues []Issue
	for _, d := range dirents {
		name := d.Name()
		p := filepath.Join(dir, name)
		switch {
		case known[name]:
		case strings.HasPrefix(name, ".purge-"):
			issues = append(issues, Issue{Path: p, Problem: "interrupted entry removal", Severity: SeverityWarning, Fixable: true})
		case d.IsDir():
			issues = append(issues, Issue{Path: p, Entry: name, Problem: "store directory of an untracked entry", Severity: SeverityWarning, Fixable: true})
		}
	}
	c.setIssues(issues)
	return buildResult(c, issues, "no orphaned entry directories",
		"run 'savekeep doctor --fix' to delete them")
}

// StaleCheck finds leftovers of interrupted operations: staging and
// trash contents, atomic-write temp files and restore holders.
//
// Restore holders may hold the only copy of data that was being replaced,
// so they are reported but never removed.
type StaleCheck struct {
	RemovalFixer
	store Store
}

var (
	_ Check = (*StaleCheck)(nil)
	_ Fixer = (*StaleCheck)(nil)
)

func (c *StaleCheck) Name() string     { return "stale-files" }
func (c *StaleCheck) Category() string { return "store" }

func (c *StaleCheck) Run(ctx context.Context) *CheckResult {
	entries, err := c.store.List(ctx)
	if err != nil {
		c.setIssues(nil)
		return skipped(c)
	}
	store := paths.Store(c.store.Root())

	issues := tempFiles(string(store))

	holderDirs := map[string]bool{}
	for _, e := range entries {
		areas := []struct{ dir, problem string }{
			{store.Staging(e.Name), "unpublished snapshot left by an interrupted backup"},
			{store.Trash(e.Name), "deleted snapshot left in the trash"},
		}
		for _, area := range areas {
			dirents, _ := os.ReadDir(area.dir)
			for _, d := range dirents {
				issues = append(issues, Issue{
					Path:     filepath.Join(area.dir, d.Name()),
					Entry:    e.Name,
					Problem:  area.problem,
					Severity: SeverityWarning,
					Fixable:  true,
				})
			}
		}

		holderDirs[filepath.Dir(e.Root)] = true
		for _, f := range e.Files {
			holderDirs[filepath.Dir(f)] = true
		}
	}

	for dir := range holderDirs {
		matches, _ := filepath.Glob(filepath.Join(dir, holderPrefix+"*"))
		for _, m := range matches {
			issues = append(issues, Issue{
				Path:     m,
				Problem:  "restore holder left by an interrupted restore; it may contain previous content",
				Severity: SeverityWarning,
			})
		}
	}

	c.setIssues(issues)
	hint := "run 'savekeep doctor --fix' with no other savekeep process running"
	if len(c.targets) < len(issues) {
		hint += "; inspect restore holders and delete them by hand"
	}
	return buildResult(c, issues, "no leftovers of interrupted operations", hint)
}

// tempFiles reports atomic-write temp files directly inside dir.
func tempFiles(dir string) []Issue {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var issues []Issue
	for _, d := range dirents {
		if fileutil.IsTempFile(d.Name()) {
			issues = append(issues, Issue{
				Path:     filepath.Join(dir, d.Name()),
				Problem:  "temporary file from an interrupted write",
				Severity: SeverityWarning,
				Fixable:  true,
			})
		}
	}
	return issues
}

// SnapshotCheck verifies every snapshot directory has a readable
// manifest and, in deep mode, that its files match the manifest.
type SnapshotCheck struct {
	store Store
	deep  bool
}

var _ Check = (*SnapshotCheck)(nil)

func (c *SnapshotCheck) Name() string     { return "snapshots" }
func (c *SnapshotCheck) Category() string { return "snapshots" }

func (c *SnapshotCheck) Run(ctx context.Context) *CheckResult {
	entries, err := c.store.List(ctx)
	if err != nil {
		return skipped(c)
	}
	store := paths.Store(c.store.Root())

	var issues []Issue
	checked := 0
	for _, e := range entries {
		dirents, err := os.ReadDir(store.Snapshots(e.Name))
		if err != nil {
			if !os.IsNotExist(err) {
				issues = append(issues, Issue{Path: store.Snapshots(e.Name), Entry: e.Name, Problem: err.Error(), Severity: SeverityError})
			}
			continue
		}
		for _, d := range dirents {
			if !d.IsDir() {
				continue
			}
			checked++
			dir := filepath.Join(store.Snapshots(e.Name), d.Name())

			var m snapshot.Manifest
			if err := fileutil.ReadJSON(filepath.Join(dir, paths.ManifestFile), &m); err != nil {
				issues = append(issues, Issue{Path: dir, Entry: e.Name, Problem: "manifest is unreadable; the snapshot is hidden from listings", Severity: SeverityError})
				continue
			}
			if m.Version < 1 || m.Version > snapshot.ManifestVersion {
				issues = append(issues, Issue{Path: dir, Entry: e.Name, Problem: fmt.Sprintf("unsupported manifest version %d", m.Version), Severity: SeverityError})
				continue
			}
			if !c.deep {
				continue
			}
			res, err := c.store.Verify(ctx, e.Name, d.Name())
			if err != nil && res == nil {
				issues = append(issues, Issue{Path: dir, Entry: e.Name, Problem: err.Error(), Severity: SeverityError})
				continue
			}
			for _, p := range res.Problems {
				issues = append(issues, Issue{Path: dir, Entry: e.Name, Problem: p, Severity: SeverityError})
			}
		}
	}

	mode := "manifests"
	if c.deep {
		mode = "manifests and contents"
	}
	return buildResult(c, issues, fmt.Sprintf("%s of %d snapshots are intact", mode, checked),
		"remove damaged snapshots by hand; they cannot be restored")
}

// skipped is the result of a check that needs the index when it cannot
// be read. The index check reports the cause.
func skipped(c Check) *CheckResult {
	return &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   SeverityInfo,
		Message:  "skipped: entry index is unreadable",
	}
}

// buildResult constructs the final CheckResult from accumulated issues.
func buildResult(c Check, issues []Issue, okMessage, hint string) *CheckResult {
	if len(issues) == 0 {
		return &CheckResult{
			Name:     c.Name(),
			Category: c.Category(),
			Status:   SeverityPass,
			Message:  okMessage,
		}
	}

	highest := SeverityPass
	fixable := false
	for _, issue := range issues {
		if issue.Severity > highest {
			highest = issue.Severity
		}
		fixable = fixable || issue.Fixable
	}

	return &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   highest,
		Message:  fmt.Sprintf("%d issue(s) found", len(issues)),
		Issues:   issues,
		Fixable:  fixable,
		FixHint:  hint,
	}
}
