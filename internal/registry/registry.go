// Package registry persists the set of tracked entries in the store index.
package registry

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/naming"
	"github.com/thoreinstein/savekeep/pkg/fileutil"
)

// IndexVersion is the current index.yaml format version.
const IndexVersion = 1

// Entry is a named, tracked root directory plus its auxiliary paths.
type Entry struct {
	Name    string    `yaml:"name" json:"name"`
	Root    string    `yaml:"root" json:"root"`
	Files   []string  `yaml:"files,omitempty" json:"files"`
	AddedAt time.Time `yaml:"added_at" json:"added_at"`
}

// index is the on-disk form of the registry.
type index struct {
	Version int     `yaml:"version"`
	Entries []Entry `yaml:"entries"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithNormalizer sets the path and name comparison policy.
func WithNormalizer(n naming.Normalizer) Option {
	return func(r *Registry) {
		r.norm = n
	}
}

// WithClock sets the clock used for AddedAt timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// Registry manages entries stored in an index file.
// Each call reads the index, and mutations write it back atomically while
// holding the registry mutex.
type Registry struct {
	path  string
	norm  naming.Normalizer
	clock clock.Clock
	mu    sync.Mutex
}

// New creates a registry persisted at indexPath.
func New(indexPath string, opts ...Option) *Registry {
	r := &Registry{
		path:  indexPath,
		clock: clock.WallClock,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalizer returns the comparison policy in use.
func (r *Registry) Normalizer() naming.Normalizer {
	return r.norm
}

// StoreDir returns the store directory holding the index.
func (r *Registry) StoreDir() string {
	return filepath.Dir(r.path)
}

// CheckOutsideStore rejects a cleaned path that lies inside the store
// directory or contains it. Both the given and the symlink-resolved forms
// are compared.
func (r *Registry) CheckOutsideStore(path string) error {
	store, err := r.norm.Clean(r.StoreDir())
	if err != nil {
		return err
	}
	if err := r.checkOverlap(store, path); err != nil {
		return err
	}
	rs, err := filepath.EvalSymlinks(store)
	if err != nil {
		return nil
	}
	rp, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil
	}
	return r.checkOverlap(rs, rp)
}

func (r *Registry) checkOverlap(store, path string) error {
	switch {
	case r.norm.Within(store, path):
		return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s", path),
			"lies inside the store %s", store)
	case r.norm.Within(path, store):
		return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s", path),
			"contains the store %s", store)
	}
	return nil
}

// Add registers a new entry rooted at path. The name is the base component
// of the cleaned absolute path.
func (r *Registry) Add(path string) (*Entry, error) {
	root, err := r.norm.Clean(path)
	if err != nil {
		return nil, err
	}
	if err := checkDir(root); err != nil {
		return nil, err
	}
	if err := r.CheckOutsideStore(root); err != nil {
		return nil, err
	}
	name, err := naming.DeriveName(root)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	if i := r.find(idx, name); i >= 0 {
		return nil, errors.WithDetailf(errors.Wrapf(errors.ErrDuplicateName, "entry %q", name),
			"%q is already tracked from %s", idx.Entries[i].Name, idx.Entries[i].Root)
	}

	entry := Entry{
		Name:    name,
		Root:    root,
		AddedAt: r.clock.Now().UTC(),
	}
	idx.Entries = append(idx.Entries, entry)

	if err := r.save(idx); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns all entries in insertion order.
// Returns an empty slice if nothing is registered.
func (r *Registry) List() ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	return idx.Entries, nil
}

// Get retrieves an entry by name.
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	i := r.find(idx, name)
	if i < 0 {
		return nil, notFound(name)
	}
	entry := idx.Entries[i]
	return &entry, nil
}

// Remove unregisters an entry and returns it. Only the index changes; the
// caller purges the entry's snapshots afterwards.
func (r *Registry) Remove(name string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	i := r.find(idx, name)
	if i < 0 {
		return nil, notFound(name)
	}
	entry := idx.Entries[i]
	idx.Entries = slices.Delete(idx.Entries, i, i+1)

	if err := r.save(idx); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Update loads one entry, applies fn and persists the result. When fn
// returns an error nothing is written.
func (r *Registry) Update(name string, fn func(*Entry) error) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	i := r.find(idx, name)
	if i < 0 {
		return nil, notFound(name)
	}

	entry := idx.Entries[i]
	entry.Files = slices.Clone(entry.Files)
	if err := fn(&entry); err != nil {
		return nil, err
	}
	idx.Entries[i] = entry

	if err := r.save(idx); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Registry) find(idx *index, name string) int {
	key := r.norm.NameKey(name)
	for i := range idx.Entries {
		if r.norm.NameKey(idx.Entries[i].Name) == key {
			return i
		}
	}
	return -1
}

// load reads the index. A missing index is an empty registry.
func (r *Registry) load() (*index, error) {
	idx := &index{Version: IndexVersion}
	err := fileutil.ReadYAML(r.path, idx)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return &index{Version: IndexVersion, Entries: []Entry{}}, nil
	default:
		return nil, errors.IO(err, "loading index")
	}
	if idx.Version > IndexVersion {
		return nil, errors.Newf("index version %d is newer than supported version %d", idx.Version, IndexVersion)
	}
	if idx.Entries == nil {
		idx.Entries = []Entry{}
	}
	return idx, nil
}

func (r *Registry) save(idx *index) error {
	idx.Version = IndexVersion
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return errors.IO(err, "creating store directory")
	}
	if err := fileutil.AtomicWriteYAML(r.path, idx); err != nil {
		return errors.Wrap(err, "saving index")
	}
	return nil
}

func notFound(name string) error {
	return errors.Wrapf(errors.ErrNotFound, "entry %q", name)
}

// checkDir verifies path is a readable directory.
func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s", path), "%v", err)
	}
	if !info.IsDir() {
		return errors.Wrapf(errors.ErrInvalidPath, "%s is not a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s is not readable", path), "%v", err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && err != io.EOF {
		return errors.WithDetailf(errors.Wrapf(errors.ErrInvalidPath, "%s is not readable", path), "%v", err)
	}
	return nil
}
