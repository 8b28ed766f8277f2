package snapshot

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/logging"
	"github.com/thoreinstein/savekeep/internal/naming"
	"github.com/thoreinstein/savekeep/internal/paths"
)

var epoch = time.Date(2026, 1, 23, 10, 7, 12, 0, time.UTC)

type fixture struct {
	eng   *Engine
	store paths.Store
	clk   *testclock.Clock
	src   Source
	dir   string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "data", "project")
	writeFile(t, filepath.Join(root, "save1.dat"), "level 1")
	writeFile(t, filepath.Join(root, "slots", "slot2.dat"), "level 2")

	clk := testclock.NewClock(epoch)
	storeDir := filepath.Join(dir, "store")
	all := append([]Option{WithClock(clk), WithLogger(logging.ForTest(t))}, opts...)
	eng := NewEngine(storeDir, all...)
	require.NoError(t, eng.Init("project"))

	return &fixture{
		eng:   eng,
		store: paths.Store(storeDir),
		clk:   clk,
		src:   Source{Name: "project", Root: root},
		dir:   dir,
	}
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) backup(t *testing.T) *Manifest {
	t.Helper()
	m, err := f.eng.Backup(t.Context(), f.src, BackupOptions{})
	require.NoError(t, err)
	f.clk.Advance(time.Second)
	return m
}

func ids(list []Manifest) []string {
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.ID
	}
	return out
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "%s should be empty", dir)
}

func TestBackup_ListNewestFirst(t *testing.T) {
	f := newFixture(t)

	first := f.backup(t)
	second := f.backup(t)
	third := f.backup(t)

	assert.Equal(t, "20260123T100712", first.ID)
	assert.Equal(t, TriggerManual, first.Trigger)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(3), third.Sequence)

	list, err := f.eng.List("project")
	require.NoError(t, err)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, ids(list))
	assertDirEmpty(t, f.store.Staging("project"))
}

func TestBackup_SameSecondGetsCounter(t *testing.T) {
	f := newFixture(t)

	a, err := f.eng.Backup(t.Context(), f.src, BackupOptions{})
	require.NoError(t, err)
	b, err := f.eng.Backup(t.Context(), f.src, BackupOptions{})
	require.NoError(t, err)

	assert.Equal(t, "20260123T100712", a.ID)
	assert.Equal(t, "20260123T100712-1", b.ID)
	assert.Equal(t, a.ContentHash, b.ContentHash, "unchanged tree keeps its content hash")

	list, err := f.eng.List("project")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, ids(list))
}

func TestBackup_Manifest(t *testing.T) {
	f := newFixture(t)
	aux := filepath.Join(f.dir, "config", "settings.ini")
	writeFile(t, aux, "volume=3")
	f.src.Files = []string{aux}

	m := f.backup(t)

	require.Len(t, m.Items, 2)
	assert.Equal(t, Item{Kind: ItemRoot, Path: f.src.Root, Store: "root", IsDir: true}, m.Items[0])
	assert.Equal(t, Item{Kind: ItemAux, Path: aux, Store: "aux/000-settings.ini", IsDir: false}, m.Items[1])
	assert.Equal(t, int64(len("level 1")+len("level 2")+len("volume=3")), m.Size)
	assert.Equal(t, Version, m.SavekeepVersion)

	snap := f.store.Snapshot("project", m.ID)
	assert.Equal(t, "level 2", readFile(t, filepath.Join(snap, "root", "slots", "slot2.dat")))
	assert.Equal(t, "volume=3", readFile(t, filepath.Join(snap, "aux", "000-settings.ini")))

	got, err := f.eng.Get("project", m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ContentHash, got.ContentHash)
	assert.Equal(t, m.ID, got.ID)
}

func TestBackup_MissingAuxSkipped(t *testing.T) {
	f := newFixture(t)
	f.src.Files = []string{filepath.Join(f.dir, "gone.cfg")}

	m := f.backup(t)
	require.Len(t, m.Items, 1)
	assert.Equal(t, ItemRoot, m.Items[0].Kind)
}

func TestBackup_NestedAuxCapturedOnce(t *testing.T) {
	f := newFixture(t)
	outer := filepath.Join(f.dir, "cfg")
	writeFile(t, filepath.Join(outer, "main.ini"), "a")
	writeFile(t, filepath.Join(outer, "sub", "opts.ini"), "b")
	f.src.Files = []string{filepath.Join(outer, "sub"), outer, outer}

	m := f.backup(t)
	require.Len(t, m.Items, 2)
	assert.Equal(t, outer, m.Items[1].Path)
	assert.Equal(t, "aux/001-cfg", m.Items[1].Store)
	assert.Equal(t, int64(len("level 1")+len("level 2")+len("a")+len("b")), m.Size)

	writeFile(t, filepath.Join(outer, "sub", "opts.ini"), "changed")
	res, err := f.eng.Restore(t.Context(), "project", m.ID, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{f.src.Root, outer}, res.Restored)
	assert.Equal(t, "b", readFile(t, filepath.Join(outer, "sub", "opts.ini")))
}

func TestBackup_SkipsStoreDirectory(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "home")
	writeFile(t, filepath.Join(root, "save.dat"), "v1")
	storeDir := filepath.Join(root, "store")

	eng := NewEngine(storeDir, WithLogger(logging.ForTest(t)))
	require.NoError(t, eng.Init("home"))
	src := Source{Name: "home", Root: root}

	m, err := eng.Backup(t.Context(), src, BackupOptions{})
	require.NoError(t, err)
	for _, file := range m.Files {
		assert.False(t, strings.HasPrefix(file.RelPath, "root/store"), "captured %s", file.RelPath)
	}
	assert.Equal(t, int64(len("v1")), m.Size)

	other := filepath.Join(dir, "other")
	writeFile(t, filepath.Join(other, "save.dat"), "v1")
	src = Source{Name: "home", Root: other, Files: []string{paths.Store(storeDir).Entry("home")}}
	_, err = eng.Backup(t.Context(), src, BackupOptions{})
	assert.True(t, errors.Is(err, errors.ErrInvalidPath), "got %v", err)
}

func TestEngine_LogsFailedDirectorySync(t *testing.T) {
	orig := fsyncDir
	t.Cleanup(func() { fsyncDir = orig })
	fsyncDir = func(string) error { return os.ErrPermission }

	var buf bytes.Buffer
	f := newFixture(t, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	m := f.backup(t)
	assert.Contains(t, buf.String(), "directory sync failed")

	buf.Reset()
	_, err := f.eng.Rename("project", m.ID, "renamed")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "directory sync failed")
}

func TestBackup_MissingRoot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.src.Root))

	_, err := f.eng.Backup(t.Context(), f.src, BackupOptions{})
	assert.True(t, errors.Is(err, errors.ErrIOFailure), "got %v", err)

	list, err := f.eng.List("project")
	require.NoError(t, err)
	assert.Empty(t, list)
	assertDirEmpty(t, f.store.Staging("project"))
}

func TestBackup_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := f.eng.Backup(ctx, f.src, BackupOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	list, err := f.eng.List("project")
	require.NoError(t, err)
	assert.Empty(t, list)
	assertDirEmpty(t, f.store.Staging("project"))
}

func TestBackup_UnknownEntry(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.Backup(t.Context(), Source{Name: "other", Root: f.src.Root}, BackupOptions{})
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
	assert.NoDirExists(t, f.store.Entry("other"), "backup must not create entry stores")

	_, err = f.eng.List("other")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBackup_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	f := newFixture(t)
	require.NoError(t, os.Symlink("save1.dat", filepath.Join(f.src.Root, "latest")))

	m := f.backup(t)
	link, err := os.Readlink(filepath.Join(f.store.Snapshot("project", m.ID), "root", "latest"))
	require.NoError(t, err)
	assert.Equal(t, "save1.dat", link)

	require.NoError(t, os.Remove(filepath.Join(f.src.Root, "latest")))
	_, err = f.eng.Restore(t.Context(), "project", m.ID, RestoreOptions{})
	require.NoError(t, err)

	link, err = os.Readlink(filepath.Join(f.src.Root, "latest"))
	require.NoError(t, err)
	assert.Equal(t, "save1.dat", link)
}

func TestList_IgnoresStagingAndBadManifests(t *testing.T) {
	f := newFixture(t)
	good := f.backup(t)

	require.NoError(t, os.MkdirAll(filepath.Join(f.store.Staging("project"), "snap-123", "root"), 0o700))
	require.NoError(t, os.MkdirAll(f.store.Snapshot("project", "broken"), 0o700))
	writeFile(t, filepath.Join(f.store.Snapshot("project", "broken"), "manifest.json"), "{")

	list, err := f.eng.List("project")
	require.NoError(t, err)
	assert.Equal(t, []string{good.ID}, ids(list))
}

func TestGet_SnapshotNotFound(t *testing.T) {
	f := newFixture(t)
	f.backup(t)

	for _, id := range []string{"20990101T000000", "../escape", ""} {
		_, err := f.eng.Get("project", id)
		assert.True(t, errors.Is(err, errors.ErrSnapshotNotFound), "%q: got %v", id, err)
	}
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	a := f.backup(t)
	b := f.backup(t)

	renamed, err := f.eng.Rename("project", a.ID, "before-boss")
	require.NoError(t, err)
	assert.Equal(t, "before-boss", renamed.ID)

	list, err := f.eng.List("project")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, "before-boss"}, ids(list), "rename keeps ordering")

	tests := []struct {
		name   string
		oldID  string
		newID  string
		target error
	}{
		{"existing target", "before-boss", b.ID, errors.ErrDuplicateSnapshotID},
		{"same id", b.ID, b.ID, errors.ErrDuplicateSnapshotID},
		{"missing source", a.ID, "x", errors.ErrSnapshotNotFound},
		{"malformed target", b.ID, "../x", errors.ErrInvalidName},
		{"missing source and malformed target", "missing", "bad id", errors.ErrSnapshotNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.Rename("project", tt.oldID, tt.newID)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}

	list, err = f.eng.List("project")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, "before-boss"}, ids(list), "failed renames change nothing")
}

func TestRename_FoldedCollision(t *testing.T) {
	f := newFixture(t, WithNormalizer(naming.Normalizer{Fold: true}))
	a := f.backup(t)
	f.backup(t)

	_, err := f.eng.Rename("project", a.ID, "Boss")
	require.NoError(t, err)

	b, err := f.eng.List("project")
	require.NoError(t, err)
	_, err = f.eng.Rename("project", b[0].ID, "boss")
	assert.True(t, errors.Is(err, errors.ErrDuplicateSnapshotID), "got %v", err)

	got, err := f.eng.Get("project", "BOSS")
	require.NoError(t, err)
	assert.Equal(t, "Boss", got.ID)
}

func TestRemoveOne_Retention(t *testing.T) {
	f := newFixture(t)
	var created []string
	for range 12 {
		created = append(created, f.backup(t).ID)
	}

	list, err := f.eng.List("project")
	require.NoError(t, err)
	require.Len(t, list, 12)

	for rank := range 10 {
		err := f.eng.RemoveOne("project", list[rank].ID)
		assert.True(t, errors.Is(err, errors.ErrProtectedSnapshot), "rank %d: got %v", rank, err)
	}

	require.NoError(t, f.eng.RemoveOne("project", list[10].ID))

	list, err = f.eng.List("project")
	require.NoError(t, err)
	assert.Len(t, list, 11)
	assert.NotContains(t, ids(list), created[1])
	assertDirEmpty(t, f.store.Trash("project"))

	err = f.eng.RemoveOne("project", created[1])
	assert.True(t, errors.Is(err, errors.ErrSnapshotNotFound), "got %v", err)
}

func TestRemoveOne_RetentionDisabled(t *testing.T) {
	f := newFixture(t, WithRetention(0))
	m := f.backup(t)

	require.NoError(t, f.eng.RemoveOne("project", m.ID))
}

func TestPrune(t *testing.T) {
	f := newFixture(t, WithRetention(3))
	var created []string
	for range 5 {
		created = append(created, f.backup(t).ID)
	}

	removed, err := f.eng.Prune("project")
	require.NoError(t, err)
	assert.Equal(t, []string{created[1], created[0]}, removed)

	list, err := f.eng.List("project")
	require.NoError(t, err)
	assert.Equal(t, []string{created[4], created[3], created[2]}, ids(list))

	removed, err = f.eng.Prune("project")
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPrune_RetentionDisabled(t *testing.T) {
	f := newFixture(t, WithRetention(0))
	f.backup(t)
	f.backup(t)

	removed, err := f.eng.Prune("project")
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	m := f.backup(t)

	res, err := f.eng.Verify(t.Context(), "project", m.ID)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, len(m.Files), res.Files)

	writeFile(t, filepath.Join(f.store.Snapshot("project", m.ID), "root", "save1.dat"), "tampered")

	res, err = f.eng.Verify(t.Context(), "project", m.ID)
	assert.True(t, errors.Is(err, errors.ErrBackupCorrupted), "got %v", err)
	assert.True(t, errors.Is(err, errors.ErrIOFailure))
	require.NotNil(t, res)
	assert.Equal(t, []string{"root/save1.dat: hash mismatch"}, res.Problems)
}

func TestConcurrentBackups(t *testing.T) {
	f := newFixture(t)
	other := filepath.Join(f.dir, "data", "other")
	writeFile(t, filepath.Join(other, "a.dat"), "a")
	require.NoError(t, f.eng.Init("other"))

	const n = 6
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := f.src
			if i%2 == 1 {
				src = Source{Name: "other", Root: other}
			}
			_, err := f.eng.Backup(t.Context(), src, BackupOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, name := range []string{"project", "other"} {
		list, err := f.eng.List(name)
		require.NoError(t, err)
		assert.Len(t, list, n/2, name)
		seen := map[string]bool{}
		seqs := map[int64]bool{}
		for _, m := range list {
			seen[m.ID] = true
			seqs[m.Sequence] = true
		}
		assert.Len(t, seen, n/2, "ids are distinct")
		assert.Len(t, seqs, n/2, "sequences are distinct")
	}
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	f.backup(t)

	require.NoError(t, f.eng.Purge("project"))
	assert.NoDirExists(t, f.store.Entry("project"))
	assertDirEmpty(t, f.store.Entries())

	_, err := f.eng.Backup(t.Context(), f.src, BackupOptions{})
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	// Purging twice is fine
	require.NoError(t, f.eng.Purge("project"))
}
