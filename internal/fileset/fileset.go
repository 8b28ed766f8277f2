// Package fileset manages the auxiliary paths attached to registry entries.
//
// Auxiliary paths are files or directories outside an entry's root that are
// captured alongside it. They are kept in insertion order and de-duplicated
// by normalized absolute path. No path may lie inside another one, nor
// overlap the store directory.
package fileset

import (
	"os"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/registry"
)

// Manager reads and edits entry file sets.
type Manager struct {
	reg *registry.Registry
}

// NewManager creates a file-set manager over reg.
func NewManager(reg *registry.Registry) *Manager {
	return &Manager{reg: reg}
}

// Files returns the auxiliary paths of an entry in insertion order.
func (m *Manager) Files(name string) ([]string, error) {
	entry, err := m.reg.Get(name)
	if err != nil {
		return nil, err
	}
	if entry.Files == nil {
		return []string{}, nil
	}
	return entry.Files, nil
}

// AddFiles validates every path and appends the new ones in one index
// write. Any invalid path fails the whole call and nothing is recorded.
// It returns the paths actually added, cleaned.
func (m *Manager) AddFiles(name string, paths []string) ([]string, error) {
	norm := m.reg.Normalizer()

	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		c, err := norm.Clean(p)
		if err != nil {
			return nil, err
		}
		if _, err := os.Lstat(c); err != nil {
			return nil, errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s", c), "%v", err)
		}
		if err := m.reg.CheckOutsideStore(c); err != nil {
			return nil, err
		}
		cleaned = append(cleaned, c)
	}

	var added []string
	_, err := m.reg.Update(name, func(e *registry.Entry) error {
		seen := make(map[string]bool, len(e.Files)+len(cleaned))
		for _, f := range e.Files {
			seen[norm.Key(f)] = true
		}
		for _, c := range cleaned {
			if norm.Within(e.Root, c) {
				return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s", c),
					"already captured by the entry root %s", e.Root)
			}
			if norm.Within(c, e.Root) {
				return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s", c),
					"contains the entry root %s", e.Root)
			}
			key := norm.Key(c)
			if seen[key] {
				continue
			}
			for _, f := range e.Files {
				if norm.Within(f, c) {
					return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s", c),
						"already captured by %s", f)
				}
				if norm.Within(c, f) {
					return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s", c),
						"contains the tracked path %s", f)
				}
			}
			seen[key] = true
			e.Files = append(e.Files, c)
			added = append(added, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if added == nil {
		added = []string{}
	}
	return added, nil
}

// RemoveFile removes the record matching path. Existing snapshots are
// not touched.
func (m *Manager) RemoveFile(name, path string) error {
	norm := m.reg.Normalizer()
	target, err := norm.Clean(path)
	if err != nil {
		return errors.Wrapf(errors.ErrNotFound, "path %q", path)
	}

	_, err = m.reg.Update(name, func(e *registry.Entry) error {
		for i, f := range e.Files {
			if norm.Equal(f, target) {
				e.Files = append(e.Files[:i], e.Files[i+1:]...)
				return nil
			}
		}
		return errors.Wrapf(errors.ErrNotFound, "path %s is not tracked by %q", target, e.Name)
	})
	return err
}
