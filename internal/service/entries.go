package service

import (
	"context"

	"github.com/thoreinstein/savekeep/internal/registry"
)

// Add starts tracking the directory at path under its derived name and
// creates the entry's store directory.
func (s *Service) Add(ctx context.Context, path string) (*registry.Entry, error) {
	var entry *registry.Entry
	err := s.call(OpAdd, path, func() error {
		e, err := s.registry.Add(path)
		if err != nil {
			return err
		}
		if err := s.engine.Init(e.Name); err != nil {
			if _, rbErr := s.registry.Remove(e.Name); rbErr != nil {
				s.logger.Error("rolling back entry failed", "entry", e.Name, "error", rbErr)
			}
			return err
		}
		entry = e
		return nil
	})
	name := ""
	if entry != nil {
		name = entry.Name
	}
	s.record(ctx, OpAdd, name, "", err, "tracking %s", path)
	if err != nil {
		return nil, err
	}
	s.logger.Info("added entry", "entry", entry.Name, "root", entry.Root)
	return entry, nil
}

// List returns every tracked entry in insertion order.
func (s *Service) List(_ context.Context) ([]registry.Entry, error) {
	var entries []registry.Entry
	err := s.call(OpList, "", func() error {
		var err error
		entries, err = s.registry.List()
		return err
	})
	return entries, err
}

// Names returns the names of every tracked entry in insertion order.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// Get returns one entry.
func (s *Service) Get(_ context.Context, name string) (*registry.Entry, error) {
	var entry *registry.Entry
	err := s.call(OpGet, name, func() error {
		var err error
		entry, err = s.registry.Get(name)
		return err
	})
	return entry, err
}

// Remove stops tracking an entry and deletes all of its snapshots. The
// index is updated first; if deleting the data fails afterwards, the
// leftover directory is reported by doctor as an orphan.
func (s *Service) Remove(ctx context.Context, name string) error {
	var removed *registry.Entry
	err := s.call(OpRemove, name, func() error {
		e, err := s.registry.Remove(name)
		if err != nil {
			return err
		}
		removed = e
		return s.engine.Purge(e.Name)
	})
	if removed != nil {
		name = removed.Name
	}
	s.record(ctx, OpRemove, name, "", err, "")
	if err == nil {
		s.logger.Info("removed entry", "entry", name)
	}
	return err
}

// EntryDir returns the store directory of an entry.
func (s *Service) EntryDir(ctx context.Context, name string) (string, error) {
	e, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return s.store.Entry(e.Name), nil
}

// Files returns an entry's auxiliary paths in insertion order.
func (s *Service) Files(_ context.Context, name string) ([]string, error) {
	var files []string
	err := s.call(OpFiles, name, func() error {
		var err error
		files, err = s.files.Files(name)
		return err
	})
	return files, err
}

// AddFiles attaches paths to an entry. Either every path is recorded or
// none is. It returns the paths that were not tracked before.
func (s *Service) AddFiles(ctx context.Context, name string, paths []string) ([]string, error) {
	var added []string
	err := s.call(OpAddFiles, name, func() error {
		var err error
		added, err = s.files.AddFiles(name, paths)
		return err
	})
	s.record(ctx, OpAddFiles, name, "", err, "added %d of %d paths", len(added), len(paths))
	return added, err
}

// RemoveFile detaches one auxiliary path. Existing snapshots keep it.
func (s *Service) RemoveFile(ctx context.Context, name, path string) error {
	err := s.call(OpRemoveFile, name, func() error {
		return s.files.RemoveFile(name, path)
	})
	s.record(ctx, OpRemoveFile, name, "", err, "%s", path)
	return err
}
