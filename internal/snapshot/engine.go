package snapshot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/logging"
	"github.com/thoreinstein/savekeep/internal/naming"
	"github.com/thoreinstein/savekeep/internal/paths"
	"github.com/thoreinstein/savekeep/pkg/fileutil"
)

// fsyncDir is replaced in tests.
var fsyncDir = fileutil.SyncDir

// Engine creates, lists, restores, renames and deletes snapshots.
//
// Every operation on one entry holds that entry's key in a keyed mutex, so
// operations on the same entry are serialized while different entries
// proceed concurrently.
type Engine struct {
	store     paths.Store
	retention int
	clock     clock.Clock
	norm      naming.Normalizer
	logger    *slog.Logger
	locks     *kmutex.Kmutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetention sets how many of the newest snapshots are protected from
// RemoveOne and kept by Prune. Zero disables both.
func WithRetention(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retention = n
		}
	}
}

// WithClock sets the clock used for snapshot ids and timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithNormalizer sets the snapshot id comparison policy.
func WithNormalizer(n naming.Normalizer) Option {
	return func(e *Engine) {
		e.norm = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an Engine over the store directory.
func NewEngine(storeDir string, opts ...Option) *Engine {
	e := &Engine{
		store:     paths.Store(storeDir),
		retention: DefaultRetention,
		clock:     clock.WallClock,
		logger:    logging.NewDiscard(),
		locks:     kmutex.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retention returns the protected window size.
func (e *Engine) Retention() int {
	return e.retention
}

func (e *Engine) lock(name string) func() {
	key := e.norm.NameKey(name)
	e.locks.Lock(key)
	return func() { e.locks.Unlock(key) }
}

// Init creates the store directory of an entry.
func (e *Engine) Init(name string) error {
	defer e.lock(name)()

	if err := os.MkdirAll(e.store.Snapshots(name), paths.DefaultDirPerm); err != nil {
		return errors.IOf(err, "creating store for %q", name)
	}
	return nil
}

// Purge deletes an entry's store directory with every snapshot in it.
// The directory is first renamed aside so it disappears atomically.
func (e *Engine) Purge(name string) error {
	defer e.lock(name)()

	dir := e.store.Entry(name)
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		return nil
	}
	aside := filepath.Join(e.store.Entries(), ".purge-"+name+"-"+strconv.FormatInt(e.clock.Now().UnixNano(), 10))
	if err := os.Rename(dir, aside); err != nil {
		return errors.IOf(err, "purging %q", name)
	}
	if err := os.RemoveAll(aside); err != nil {
		return errors.IOf(err, "deleting %s", aside)
	}
	e.logger.Info("purged entry store", "entry", name)
	return nil
}

// List returns the committed snapshots of an entry, newest first.
func (e *Engine) List(name string) ([]Manifest, error) {
	defer e.lock(name)()
	return e.list(name)
}

// Get returns the manifest of one snapshot.
func (e *Engine) Get(name, id string) (*Manifest, error) {
	defer e.lock(name)()

	if err := e.checkEntry(name); err != nil {
		return nil, err
	}
	return e.get(name, id)
}

// Rename changes a snapshot's id with one directory rename.
func (e *Engine) Rename(name, oldID, newID string) (*Manifest, error) {
	defer e.lock(name)()

	if err := e.checkEntry(name); err != nil {
		return nil, err
	}
	m, err := e.get(name, oldID)
	if err != nil {
		return nil, err
	}
	if err := naming.ValidateSnapshotID(newID); err != nil {
		return nil, err
	}

	ids, err := e.ids(name)
	if err != nil {
		return nil, err
	}
	newKey := e.norm.NameKey(newID)
	for _, id := range ids {
		if e.norm.NameKey(id) == newKey {
			return nil, errors.Wrapf(errors.ErrDuplicateSnapshotID, "snapshot %q of %q", newID, name)
		}
	}

	if err := os.Rename(e.store.Snapshot(name, m.ID), e.store.Snapshot(name, newID)); err != nil {
		return nil, errors.IOf(err, "renaming snapshot %q", m.ID)
	}
	e.syncDir(e.store.Snapshots(name))

	e.logger.Info("renamed snapshot", "entry", name, "from", m.ID, "to", newID)
	m.ID = newID
	return m, nil
}

// RemoveOne deletes one snapshot. The newest Retention snapshots are
// protected; ranking is computed here from the stored sequence numbers.
func (e *Engine) RemoveOne(name, id string) error {
	defer e.lock(name)()

	list, err := e.list(name)
	if err != nil {
		return err
	}
	rank := slices.IndexFunc(list, func(m Manifest) bool {
		return e.norm.NameKey(m.ID) == e.norm.NameKey(id)
	})
	if rank < 0 {
		return errors.Wrapf(errors.ErrSnapshotNotFound, "snapshot %q of %q", id, name)
	}
	if e.retention > 0 && rank < e.retention {
		return errors.WithDetailf(
			errors.Wrapf(errors.ErrProtectedSnapshot, "snapshot %q of %q", list[rank].ID, name),
			"it is #%d of the %d newest snapshots", rank+1, e.retention)
	}
	return e.remove(name, list[rank].ID)
}

// Prune removes every snapshot outside the retention window and returns
// the removed ids. A zero retention prunes nothing.
func (e *Engine) Prune(name string) ([]string, error) {
	defer e.lock(name)()

	list, err := e.list(name)
	if err != nil {
		return nil, err
	}
	removed := []string{}
	if e.retention == 0 || len(list) <= e.retention {
		return removed, nil
	}
	for _, m := range list[e.retention:] {
		if err := e.remove(name, m.ID); err != nil {
			return removed, err
		}
		removed = append(removed, m.ID)
	}
	return removed, nil
}

// remove moves a snapshot into the trash, which hides it from listings,
// then deletes it. A failed delete leaves it in the trash for doctor.
func (e *Engine) remove(name, id string) error {
	trash := e.store.Trash(name)
	if err := os.MkdirAll(trash, paths.DefaultDirPerm); err != nil {
		return errors.IOf(err, "creating trash for %q", name)
	}
	aside := filepath.Join(trash, id+"."+strconv.FormatInt(e.clock.Now().UnixNano(), 10))
	if err := os.Rename(e.store.Snapshot(name, id), aside); err != nil {
		return errors.IOf(err, "removing snapshot %q", id)
	}
	if err := os.RemoveAll(aside); err != nil {
		e.logger.Warn("snapshot left in trash", "entry", name, "id", id, "error", err)
	}
	e.logger.Info("removed snapshot", "entry", name, "id", id)
	return nil
}

// checkEntry fails with ErrNotFound unless the entry's store directory
// exists. It never creates it, so an entry purged while a caller waited on
// the lock stays gone.
func (e *Engine) checkEntry(name string) error {
	info, err := os.Stat(e.store.Entry(name))
	if err != nil || !info.IsDir() {
		return errors.Wrapf(errors.ErrNotFound, "entry %q", name)
	}
	return nil
}

// ids lists the directory names under snapshots/.
func (e *Engine) ids(name string) ([]string, error) {
	dirents, err := os.ReadDir(e.store.Snapshots(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IOf(err, "reading snapshots of %q", name)
	}
	ids := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() {
			ids = append(ids, d.Name())
		}
	}
	return ids, nil
}

func (e *Engine) list(name string) ([]Manifest, error) {
	if err := e.checkEntry(name); err != nil {
		return nil, err
	}
	ids, err := e.ids(name)
	if err != nil {
		return nil, err
	}

	manifests := make([]Manifest, 0, len(ids))
	for _, id := range ids {
		m, err := e.load(name, id)
		if err != nil {
			// Skip invalid snapshot directories
			e.logger.Warn("skipping unreadable snapshot", "entry", name, "id", id, "error", err)
			continue
		}
		manifests = append(manifests, *m)
	}

	slices.SortFunc(manifests, newestFirst)
	return manifests, nil
}

// newestFirst orders by sequence, then creation time, then id, descending.
func newestFirst(a, b Manifest) int {
	switch {
	case a.Sequence != b.Sequence:
		if a.Sequence > b.Sequence {
			return -1
		}
		return 1
	case !a.CreatedAt.Equal(b.CreatedAt):
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// get resolves id through the comparison policy and loads its manifest.
func (e *Engine) get(name, id string) (*Manifest, error) {
	if naming.ValidateSnapshotID(id) != nil {
		return nil, errors.Wrapf(errors.ErrSnapshotNotFound, "snapshot %q of %q", id, name)
	}
	actual := id
	if e.norm.Fold {
		ids, err := e.ids(name)
		if err != nil {
			return nil, err
		}
		for _, candidate := range ids {
			if e.norm.NameKey(candidate) == e.norm.NameKey(id) {
				actual = candidate
				break
			}
		}
	}
	m, err := e.load(name, actual)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(errors.ErrSnapshotNotFound, "snapshot %q of %q", id, name)
		}
		return nil, err
	}
	return m, nil
}

func (e *Engine) load(name, id string) (*Manifest, error) {
	var m Manifest
	if err := fileutil.ReadJSON(filepath.Join(e.store.Snapshot(name, id), paths.ManifestFile), &m); err != nil {
		return nil, err
	}
	if m.Version > ManifestVersion {
		return nil, errors.Newf("manifest version %d is newer than supported version %d", m.Version, ManifestVersion)
	}
	m.ID = id
	return &m, nil
}

// nextSequence returns one past the highest sequence of the listed snapshots.
func nextSequence(list []Manifest) int64 {
	var highest int64
	for _, m := range list {
		if m.Sequence > highest {
			highest = m.Sequence
		}
	}
	return highest + 1
}

// ctxErr converts a context error into a savekeep error kind.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.IO(err, "operation cancelled")
	}
	return nil
}

// syncDir flushes a directory after a rename. The rename has already
// happened, so a failure is only logged.
func (e *Engine) syncDir(dir string) {
	if err := fsyncDir(dir); err != nil {
		e.logger.Warn("directory sync failed", "path", dir, "error", err)
	}
}
