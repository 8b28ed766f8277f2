package service

import (
	"context"

	"github.com/thoreinstein/savekeep/internal/journal"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

// Backup takes a new snapshot of an entry's root and auxiliary paths.
func (s *Service) Backup(ctx context.Context, name string) (*snapshot.Manifest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var m *snapshot.Manifest
	err := s.call(OpBackup, name, func() error {
		e, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		name = e.Name
		m, err = s.engine.Backup(ctx, source(e), snapshot.BackupOptions{Trigger: snapshot.TriggerManual})
		return err
	})
	id := ""
	if m != nil {
		id = m.ID
	}
	s.record(ctx, OpBackup, name, id, err, "%d files", fileCount(m))
	return m, err
}

// Backups returns the snapshot ids of an entry, newest first.
func (s *Service) Backups(ctx context.Context, name string) ([]string, error) {
	list, err := s.snapshots(ctx, OpBackups, name)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Snapshots returns the manifests of an entry's snapshots, newest first.
func (s *Service) Snapshots(ctx context.Context, name string) ([]snapshot.Manifest, error) {
	return s.snapshots(ctx, OpBackups, name)
}

func (s *Service) snapshots(_ context.Context, op, name string) ([]snapshot.Manifest, error) {
	var list []snapshot.Manifest
	err := s.call(op, name, func() error {
		e, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		list, err = s.engine.List(e.Name)
		return err
	})
	return list, err
}

// Snapshot returns one snapshot's manifest.
func (s *Service) Snapshot(_ context.Context, name, id string) (*snapshot.Manifest, error) {
	var m *snapshot.Manifest
	err := s.call(OpSnapshot, name, func() error {
		e, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		m, err = s.engine.Get(e.Name, id)
		return err
	})
	return m, err
}

// Restore overwrites an entry's paths with a snapshot. When
// pre_restore_backup is on, the current state is captured first.
func (s *Service) Restore(ctx context.Context, name, id string) (*snapshot.RestoreResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var res *snapshot.RestoreResult
	err := s.call(OpRestore, name, func() error {
		e, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		name = e.Name
		opts := snapshot.RestoreOptions{}
		if s.safety {
			src := source(e)
			opts.Safety = &src
		}
		res, err = s.engine.Restore(ctx, e.Name, id, opts)
		return err
	})
	msg := ""
	if res != nil && res.Safety != nil {
		msg = "safety snapshot " + res.Safety.ID
	}
	s.record(ctx, OpRestore, name, id, err, "%s", msg)
	return res, err
}

// Rename changes a snapshot's id.
func (s *Service) Rename(ctx context.Context, name, oldID, newID string) (*snapshot.Manifest, error) {
	var m *snapshot.Manifest
	err := s.call(OpRename, name, func() error {
		e, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		name = e.Name
		m, err = s.engine.Rename(e.Name, oldID, newID)
		return err
	})
	s.record(ctx, OpRename, name, oldID, err, "renamed to %s", newID)
	return m, err
}

// RemoveOne deletes a snapshot outside the retention window.
func (s *Service) RemoveOne(ctx context.Context, name, id string) error {
	err := s.call(OpRemoveSnapshot, name, func() error {
		e, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		name = e.Name
		return s.engine.RemoveOne(e.Name, id)
	})
	s.record(ctx, OpRemoveSnapshot, name, id, err, "")
	return err
}

// Prune deletes every snapshot outside the retention window and returns
// the removed ids.
func (s *Service) Prune(ctx context.Context, name string) ([]string, error) {
	var removed []string
	err := s.call(OpPrune, name, func() error {
		e, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		name = e.Name
		removed, err = s.engine.Prune(e.Name)
		return err
	})
	if err != nil || len(removed) > 0 {
		s.record(ctx, OpPrune, name, "", err, "removed %d snapshots", len(removed))
	}
	return removed, err
}

// Verify re-hashes a snapshot against its manifest.
func (s *Service) Verify(ctx context.Context, name, id string) (*snapshot.VerifyResult, error) {
	var res *snapshot.VerifyResult
	err := s.call(OpVerify, name, func() error {
		e, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		res, err = s.engine.Verify(ctx, e.Name, id)
		return err
	})
	return res, err
}

// History returns journal events, newest first. It is empty when the
// journal is disabled.
func (s *Service) History(ctx context.Context, f journal.Filter) ([]journal.Event, error) {
	if s.journal == nil {
		return []journal.Event{}, nil
	}
	var events []journal.Event
	err := s.call(OpHistory, f.Entry, func() error {
		var err error
		events, err = s.journal.List(ctx, f)
		return err
	})
	return events, err
}

func fileCount(m *snapshot.Manifest) int {
	if m == nil {
		return 0
	}
	return len(m.Files)
}
