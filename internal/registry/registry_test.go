package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/naming"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "store", "index.yaml"), opts...), dir
}

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

func TestRegistry_AddList(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r, dir := newTestRegistry(t, WithClock(testclock.NewClock(start)))
	project := mkdir(t, dir, "data", "project")

	entry, err := r.Add(project)
	require.NoError(t, err)
	assert.Equal(t, "project", entry.Name)
	assert.Equal(t, project, entry.Root)
	assert.Equal(t, start, entry.AddedAt)

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "project", entries[0].Name)
}

func TestRegistry_AddDuplicate(t *testing.T) {
	r, dir := newTestRegistry(t)
	first := mkdir(t, dir, "a", "project")
	second := mkdir(t, dir, "b", "project")

	_, err := r.Add(first)
	require.NoError(t, err)

	_, err = r.Add(second)
	assert.True(t, errors.Is(err, errors.ErrDuplicateName), "got %v", err)

	_, err = r.Add(first)
	assert.True(t, errors.Is(err, errors.ErrDuplicateName), "got %v", err)

	entries, err := r.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRegistry_AddDuplicateFolded(t *testing.T) {
	r, dir := newTestRegistry(t, WithNormalizer(naming.Normalizer{Fold: true}))
	_, err := r.Add(mkdir(t, dir, "a", "Project"))
	require.NoError(t, err)

	_, err = r.Add(mkdir(t, dir, "b", "project"))
	assert.True(t, errors.Is(err, errors.ErrDuplicateName), "got %v", err)

	got, err := r.Get("PROJECT")
	require.NoError(t, err)
	assert.Equal(t, "Project", got.Name)
}

func TestRegistry_AddInvalidPath(t *testing.T) {
	r, dir := newTestRegistry(t)
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing")},
		{"file", file},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Add(tt.path)
			assert.True(t, errors.Is(err, errors.ErrInvalidPath), "got %v", err)
		})
	}
}

func TestRegistry_AddOverlappingStore(t *testing.T) {
	r, dir := newTestRegistry(t)
	store := mkdir(t, r.StoreDir())
	mkdir(t, store, "entries", "other")

	tests := []struct {
		name string
		path string
	}{
		{"contains store", dir},
		{"is store", store},
		{"inside store", filepath.Join(store, "entries", "other")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Add(tt.path)
			assert.True(t, errors.Is(err, errors.ErrInvalidPath), "got %v", err)
		})
	}

	link := filepath.Join(t.TempDir(), "home")
	require.NoError(t, os.Symlink(dir, link))
	_, err := r.Add(link)
	assert.True(t, errors.Is(err, errors.ErrInvalidPath), "symlinked root: got %v", err)

	entries, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = r.Add(mkdir(t, dir, "storehouse"))
	assert.NoError(t, err, "a sibling sharing a name prefix is not inside the store")
}

func TestRegistry_ListInsertionOrder(t *testing.T) {
	r, dir := newTestRegistry(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := r.Add(mkdir(t, dir, name))
		require.NoError(t, err)
	}

	for range 2 {
		entries, err := r.List()
		require.NoError(t, err)
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	}
}

func TestRegistry_Persistence(t *testing.T) {
	r, dir := newTestRegistry(t)
	_, err := r.Add(mkdir(t, dir, "project"))
	require.NoError(t, err)

	reopened := New(r.path)
	got, err := reopened.Get("project")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "project"), got.Root)
}

func TestRegistry_Remove(t *testing.T) {
	r, dir := newTestRegistry(t)
	_, err := r.Add(mkdir(t, dir, "project"))
	require.NoError(t, err)

	removed, err := r.Remove("project")
	require.NoError(t, err)
	assert.Equal(t, "project", removed.Name)

	_, err = r.Get("project")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = r.Remove("project")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// Root data is never touched by the registry
	assert.DirExists(t, filepath.Join(dir, "project"))
}

func TestRegistry_Update(t *testing.T) {
	r, dir := newTestRegistry(t)
	_, err := r.Add(mkdir(t, dir, "project"))
	require.NoError(t, err)

	updated, err := r.Update("project", func(e *Entry) error {
		e.Files = append(e.Files, "/extra/save.dat")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/extra/save.dat"}, updated.Files)

	_, err = r.Update("project", func(e *Entry) error {
		e.Files = append(e.Files, "/other")
		return errors.ErrInvalidPath
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidPath))

	got, err := r.Get("project")
	require.NoError(t, err)
	assert.Equal(t, []string{"/extra/save.dat"}, got.Files, "failed update must not persist")

	_, err = r.Update("missing", func(*Entry) error { return nil })
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRegistry_ConcurrentAdds(t *testing.T) {
	r, dir := newTestRegistry(t)
	const n = 8
	roots := make([]string, n)
	for i := range n {
		roots[i] = mkdir(t, dir, "e", string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	for _, root := range roots {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Add(root)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := r.List()
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestRegistry_CorruptIndex(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(r.path), 0o700))
	require.NoError(t, os.WriteFile(r.path, []byte("entries: [unterminated"), 0o600))

	_, err := r.List()
	assert.True(t, errors.Is(err, errors.ErrIOFailure), "got %v", err)
}
