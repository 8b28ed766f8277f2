package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/naming"
	"github.com/thoreinstein/savekeep/internal/paths"
	"github.com/thoreinstein/savekeep/pkg/fileutil"
)

// Backup captures the source's root and auxiliary paths as a new snapshot.
//
// Content is assembled in the entry's staging area and published with a
// single rename, so a failed or cancelled backup never shows up in
// listings. Missing auxiliary paths are skipped with a warning; a missing
// root fails with ErrIOFailure.
func (e *Engine) Backup(ctx context.Context, src Source, opts BackupOptions) (*Manifest, error) {
	defer e.lock(src.Name)()

	if err := e.checkEntry(src.Name); err != nil {
		return nil, err
	}
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}
	return e.backup(ctx, src, opts.Trigger)
}

// backup runs with the entry lock held.
func (e *Engine) backup(ctx context.Context, src Source, trigger Trigger) (*Manifest, error) {
	staging := e.store.Staging(src.Name)
	if err := os.MkdirAll(staging, paths.DefaultDirPerm); err != nil {
		return nil, errors.IOf(err, "creating staging area for %q", src.Name)
	}
	tmp, err := os.MkdirTemp(staging, "snap-*")
	if err != nil {
		return nil, errors.IOf(err, "creating staging directory for %q", src.Name)
	}
	published := false
	defer func() {
		if !published {
			if err := os.RemoveAll(tmp); err != nil {
				e.logger.Warn("staging cleanup failed", "entry", src.Name, "path", tmp, "error", err)
			}
		}
	}()

	c := &capture{ctx: ctx, logger: e.logger, norm: e.norm, dst: tmp, exclude: e.storeDirs()}
	var items []Item

	if _, err := os.Lstat(src.Root); err != nil {
		if trigger != TriggerPreRestore || !os.IsNotExist(err) {
			return nil, errors.IOf(err, "entry root of %q", src.Name)
		}
		e.logger.Warn("entry root missing, not captured", "entry", src.Name, "path", src.Root)
	} else {
		isDir, err := c.item(src.Root, string(ItemRoot))
		if err != nil {
			return nil, e.captureErr(ctx, err, src.Root)
		}
		items = append(items, Item{Kind: ItemRoot, Path: src.Root, Store: string(ItemRoot), IsDir: isDir})
	}

	// Paths that will be captured; missing ones stay empty so they
	// cover nothing.
	captured := make([]string, len(src.Files)+1)
	if len(items) > 0 {
		captured[0] = src.Root
	}
	for i, p := range src.Files {
		if _, err := os.Lstat(p); !os.IsNotExist(err) {
			captured[i+1] = p
		}
	}

	for i, p := range src.Files {
		if captured[i+1] == "" {
			e.logger.Warn("auxiliary path missing, skipped", "entry", src.Name, "path", p)
			continue
		}
		if outer, ok := e.covering(captured, i+1); ok {
			e.logger.Warn("auxiliary path already captured, skipped", "entry", src.Name, "path", p, "by", outer)
			continue
		}
		store := fmt.Sprintf("%s/%03d-%s", ItemAux, i, filepath.Base(p))
		isDir, err := c.item(p, store)
		if err != nil {
			return nil, e.captureErr(ctx, err, p)
		}
		items = append(items, Item{Kind: ItemAux, Path: p, Store: store, IsDir: isDir})
	}

	if len(items) == 0 {
		// Only a pre-restore capture can find nothing to capture
		return nil, nil
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	existing, err := e.list(src.Name)
	if err != nil {
		return nil, err
	}
	ids, err := e.ids(src.Name)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(ids))
	for _, id := range ids {
		taken[e.norm.NameKey(id)] = true
	}

	now := e.clock.Now().UTC()
	id := naming.SnapshotID(now, func(id string) bool { return taken[e.norm.NameKey(id)] })

	m := &Manifest{
		Version:         ManifestVersion,
		Entry:           src.Name,
		Sequence:        nextSequence(existing),
		CreatedAt:       now,
		Trigger:         trigger,
		Items:           items,
		Files:           c.files,
		ContentHash:     contentHash(c.files),
		Size:            c.size,
		SavekeepVersion: Version,
	}
	if err := fileutil.AtomicWriteJSON(filepath.Join(tmp, paths.ManifestFile), m); err != nil {
		return nil, errors.Wrap(err, "writing manifest")
	}

	snapshots := e.store.Snapshots(src.Name)
	if err := os.MkdirAll(snapshots, paths.DefaultDirPerm); err != nil {
		return nil, errors.IOf(err, "creating snapshots directory for %q", src.Name)
	}
	if err := os.Rename(tmp, e.store.Snapshot(src.Name, id)); err != nil {
		return nil, errors.IOf(err, "publishing snapshot %q", id)
	}
	published = true
	e.syncDir(snapshots)

	m.ID = id
	e.logger.Info("created snapshot", "entry", src.Name, "id", id, "trigger", string(trigger),
		"files", len(m.Files), "bytes", m.Size)
	return m, nil
}

// covering returns the path of ps that already contains ps[i]: an
// enclosing directory, or an earlier duplicate.
func (e *Engine) covering(ps []string, i int) (string, bool) {
	for j, other := range ps {
		if j == i || other == "" {
			continue
		}
		if e.norm.Equal(other, ps[i]) {
			if j < i {
				return other, true
			}
			continue
		}
		if e.norm.Within(other, ps[i]) {
			return other, true
		}
	}
	return "", false
}

// storeDirs returns the store directory as configured and, when it
// differs, with symlinks resolved.
func (e *Engine) storeDirs() []string {
	dir, err := filepath.Abs(string(e.store))
	if err != nil {
		dir = string(e.store)
	}
	dirs := []string{dir}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil && resolved != dir {
		dirs = append(dirs, resolved)
	}
	return dirs
}

// captureErr reports a cancelled context as such, whatever the walk
// returned.
func (e *Engine) captureErr(ctx context.Context, err error, p string) error {
	if cerr := ctxErr(ctx); cerr != nil {
		return cerr
	}
	if errors.IsAny(err, errors.ErrIOFailure, errors.ErrInvalidPath) {
		return err
	}
	return errors.IOf(err, "capturing %s", p)
}
