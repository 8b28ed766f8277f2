package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/savekeep/internal/config"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/journal"
)

type cliEnv struct {
	store string
	dir   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.ConfigDirEnv, filepath.Join(dir, "config"))
	t.Setenv("NO_COLOR", "1")
	return &cliEnv{store: filepath.Join(dir, "store"), dir: dir}
}

// resetFlags restores every flag in the tree to its default, since cobra
// keeps parsed values between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the CLI with stdin and returns stdout.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--store", e.store, "-q"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func (e *cliEnv) project(t *testing.T, name string) string {
	t.Helper()
	root := filepath.Join(e.dir, "games", name)
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "save.dat"), []byte("v1"), 0o644))
	return root
}

func snapshotIDs(t *testing.T, e *cliEnv, name string) []string {
	t.Helper()
	var list []struct {
		ID      string `json:"id"`
		Trigger string `json:"trigger"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "snapshot", "list", name, "--json")), &list))
	ids := make([]string, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	return ids
}

func exitCode(err error) int {
	var exitErr *errors.ExitError
	if errors.As(errors.ForCLI(err), &exitErr) {
		return exitErr.Code
	}
	return errors.ExitSuccess
}

func TestCLI_BackupRestoreFlow(t *testing.T) {
	e := newCLIEnv(t)
	root := e.project(t, "hollow")

	out := e.mustRun(t, "add", root)
	assert.Contains(t, out, "Tracking")

	var entries []entryOutput
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "list", "--json")), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "hollow", entries[0].Name)
	assert.Equal(t, 0, entries[0].Snapshots)

	aux := filepath.Join(e.dir, "settings.ini")
	require.NoError(t, os.WriteFile(aux, []byte("vsync=1"), 0o644))
	e.mustRun(t, "files", "add", "hollow", aux)
	assert.Equal(t, aux+"\n", e.mustRun(t, "files", "list", "hollow"))

	out = e.mustRun(t, "snapshot", "create", "hollow")
	assert.Contains(t, out, "created snapshot")
	ids := snapshotIDs(t, e, "hollow")
	require.Len(t, ids, 1)

	require.NoError(t, os.WriteFile(filepath.Join(root, "save.dat"), []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(aux, []byte("vsync=0"), 0o644))

	// One snapshot is picked without asking; "y" answers the confirmation.
	out, err := e.run(t, "y\n", "snapshot", "restore", "hollow")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Restored hollow from "+ids[0])

	data, err := os.ReadFile(filepath.Join(root, "save.dat"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
	data, err = os.ReadFile(aux)
	require.NoError(t, err)
	assert.Equal(t, "vsync=1", string(data))

	assert.Len(t, snapshotIDs(t, e, "hollow"), 2, "restore adds a pre-restore snapshot")

	var events []journal.Event
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "history", "hollow", "--op", "restore", "--json")), &events))
	require.Len(t, events, 1)
	assert.Equal(t, ids[0], events[0].Snapshot)

	out = e.mustRun(t, "snapshot", "verify", "hollow")
	assert.Contains(t, out, ids[0]+": ")
	assert.NotContains(t, out, "✗")
}

func TestCLI_RestoreDeclined(t *testing.T) {
	e := newCLIEnv(t)
	root := e.project(t, "hollow")
	e.mustRun(t, "add", root)
	e.mustRun(t, "snapshot", "create", "hollow")
	id := snapshotIDs(t, e, "hollow")[0]

	require.NoError(t, os.WriteFile(filepath.Join(root, "save.dat"), []byte("v2"), 0o644))
	out, err := e.run(t, "n\n", "snapshot", "restore", "hollow", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")

	data, err := os.ReadFile(filepath.Join(root, "save.dat"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestCLI_RenameRemoveProtected(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "add", e.project(t, "hollow"))
	e.mustRun(t, "snapshot", "create", "hollow")
	id := snapshotIDs(t, e, "hollow")[0]

	e.mustRun(t, "snapshot", "rename", "hollow", id, "pre-boss")
	assert.Equal(t, []string{"pre-boss"}, snapshotIDs(t, e, "hollow"))

	_, err := e.run(t, "", "snapshot", "remove", "hollow", "pre-boss")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProtectedSnapshot))
	assert.Equal(t, errors.ExitUser, exitCode(err))

	_, err = e.run(t, "", "snapshot", "rename", "hollow", "pre-boss", "../escape")
	assert.True(t, errors.Is(err, errors.ErrInvalidName))
}

func TestCLI_CreateAll(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "add", e.project(t, "hollow"))
	e.mustRun(t, "add", e.project(t, "celeste"))

	out := e.mustRun(t, "snapshot", "create", "--all")
	assert.Contains(t, out, "hollow: created snapshot")
	assert.Contains(t, out, "celeste: created snapshot")

	_, err := e.run(t, "", "snapshot", "create", "--all", "hollow")
	assert.Equal(t, errors.ExitUser, exitCode(err))
	_, err = e.run(t, "", "snapshot", "create")
	assert.Equal(t, errors.ExitUser, exitCode(err))
}

func TestCLI_Remove(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "add", e.project(t, "hollow"))

	out, err := e.run(t, "n\n", "remove", "hollow")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")
	assert.Contains(t, e.mustRun(t, "list"), "hollow")

	e.mustRun(t, "remove", "hollow", "--yes")
	assert.Contains(t, e.mustRun(t, "list"), "No entries tracked")

	_, err = e.run(t, "", "remove", "hollow", "--yes")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCLI_Root(t *testing.T) {
	e := newCLIEnv(t)
	assert.Equal(t, e.store+"\n", e.mustRun(t, "root"))
}

func TestCLI_Doctor(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "add", e.project(t, "hollow"))
	e.mustRun(t, "doctor")

	orphan := filepath.Join(e.store, "entries", "forgotten")
	require.NoError(t, os.MkdirAll(orphan, 0o700))

	out, err := e.run(t, "", "doctor", "--json")
	assert.Equal(t, errors.ExitUser, exitCode(err), "warnings exit with 1")
	var report doctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Summary.Warnings)

	out = e.mustRun(t, "doctor", "--fix")
	assert.Contains(t, out, "fixed:")
	assert.NoDirExists(t, orphan)

	_, err = e.run(t, "", "doctor", "--json", "--verbose")
	assert.Equal(t, errors.ExitUser, exitCode(err))
}

func TestCLI_Config(t *testing.T) {
	e := newCLIEnv(t)

	assert.Equal(t, "10\n", e.mustRun(t, "config", "get", "retention"))
	assert.Equal(t, config.DefaultServeAddr+"\n", e.mustRun(t, "config", "get", "serve.addr"))

	_, err := e.run(t, "", "config", "get", "serve")
	assert.Equal(t, errors.ExitUser, exitCode(err))

	e.mustRun(t, "config", "set", "retention", "3")
	assert.Equal(t, "3\n", e.mustRun(t, "config", "get", "retention"))
	assert.FileExists(t, config.FilePath())

	_, err = e.run(t, "", "config", "set", "--", "retention", "-1")
	assert.Equal(t, errors.ExitUser, exitCode(err))

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "config", "list", "--format", "json")), &m))
	assert.EqualValues(t, 3, m["retention"])

	assert.Contains(t, e.mustRun(t, "config", "list", "--format", "toml"), "[serve]")
	assert.Contains(t, e.mustRun(t, "config", "list"), "path_case: sensitive")
}

func TestLookup(t *testing.T) {
	m := map[string]any{
		"retention": 10,
		"serve":     map[string]any{"addr": "127.0.0.1:7474"},
	}
	tests := []struct {
		key    string
		want   any
		wantOK bool
	}{
		{"retention", 10, true},
		{"serve.addr", "127.0.0.1:7474", true},
		{"serve", nil, false},
		{"serve.port", nil, false},
		{"retention.x", nil, false},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := lookup(m, tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMain_ReportsErrors(t *testing.T) {
	e := newCLIEnv(t)
	resetFlags(rootCmd)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--store", e.store, "snapshot", "create", "ghost"})

	var stderr bytes.Buffer
	code := Main(&stderr)
	assert.Equal(t, errors.ExitUser, code)
	assert.Contains(t, stderr.String(), "Error:")
	assert.Contains(t, stderr.String(), "savekeep list")
}

func TestMain_UnknownCommand(t *testing.T) {
	newCLIEnv(t)
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"frobnicate"})

	var stderr bytes.Buffer
	assert.Equal(t, errors.ExitUser, Main(&stderr))
	assert.Contains(t, stderr.String(), "--help")
}

func TestVersion(t *testing.T) {
	e := newCLIEnv(t)
	assert.True(t, strings.HasPrefix(e.mustRun(t, "version"), "savekeep version "))

	var v versionOutput
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "version", "--json")), &v))
	assert.NotEmpty(t, v.Version)
	assert.True(t, strings.HasPrefix(v.Go, "go"))
}

func TestGenDoc(t *testing.T) {
	e := newCLIEnv(t)
	dir := filepath.Join(e.dir, "docs")

	out := e.mustRun(t, "gen-doc", "--dir", dir)
	assert.Contains(t, out, dir)

	data, err := os.ReadFile(filepath.Join(dir, "savekeep_snapshot_restore.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\ntitle: \"savekeep snapshot restore\""))

	e.mustRun(t, "gen-doc", "--dir", dir, "--format", "man")
	assert.FileExists(t, filepath.Join(dir, "savekeep-snapshot-restore.1"))
}

func TestLinkHandler(t *testing.T) {
	assert.Equal(t, "/docs/reference/savekeep_files_add/", linkHandler("savekeep_files_add.md"))
}
