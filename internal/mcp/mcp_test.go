package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/savekeep/internal/config"
	"github.com/thoreinstein/savekeep/internal/logging"
	"github.com/thoreinstein/savekeep/internal/service"
)

type testEnv struct {
	h    *Handlers
	svc  *service.Service
	clk  *testclock.Clock
	dir  string
	root string
}

func testSetup(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(filepath.Join(dir, "store"))
	clk := testclock.NewClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	svc, err := service.New(cfg, service.WithClock(clk), service.WithLogger(logging.ForTest(t)))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	root := filepath.Join(dir, "games", "hollow")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "user1.dat"), []byte("charms"), 0o644))

	return &testEnv{h: NewHandlers(svc), svc: svc, clk: clk, dir: dir, root: root}
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

type handlerFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, fn handlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return tc.Text
}

func success[T any](t *testing.T, fn handlerFunc, args map[string]any) T {
	t.Helper()
	result := call(t, fn, args)
	require.False(t, result.IsError, text(t, result))
	var out T
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &out))
	return out
}

func failure(t *testing.T, fn handlerFunc, args map[string]any) string {
	t.Helper()
	result := call(t, fn, args)
	require.True(t, result.IsError, "expected tool error, got %s", text(t, result))
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &body))
	assert.NotEmpty(t, body.Error.Message)
	return body.Error.Code
}

func TestToolRegistry(t *testing.T) {
	names := AllToolNames()
	assert.Len(t, names, len(toolRegistry))
	assert.IsIncreasing(t, names)
	for name, entry := range toolRegistry {
		assert.Equal(t, name, entry.def.Name, "registry key must match tool name")
		assert.NotEmpty(t, entry.def.Description, name)
	}
}

func TestNewServer(t *testing.T) {
	env := testSetup(t)
	assert.NotNil(t, NewServer(env.svc, "test"))
}

func TestEntryTools(t *testing.T) {
	env := testSetup(t)

	type entryOut struct {
		Name  string   `json:"name"`
		Root  string   `json:"root"`
		Files []string `json:"files"`
	}
	added := success[entryOut](t, env.h.HandleEntryAdd, map[string]any{"path": env.root})
	assert.Equal(t, "hollow", added.Name)
	assert.Equal(t, env.root, added.Root)

	assert.Equal(t, "DuplicateName", failure(t, env.h.HandleEntryAdd, map[string]any{"path": env.root}))
	assert.Equal(t, "InvalidPath", failure(t, env.h.HandleEntryAdd, map[string]any{"path": filepath.Join(env.dir, "nope")}))

	list := success[struct {
		Entries []entryOut `json:"entries"`
	}](t, env.h.HandleEntryList, nil)
	require.Len(t, list.Entries, 1)

	got := success[entryOut](t, env.h.HandleEntryGet, map[string]any{"name": "hollow"})
	assert.Equal(t, "hollow", got.Name)

	aux := filepath.Join(env.dir, "settings.ini")
	require.NoError(t, os.WriteFile(aux, []byte("vsync=1"), 0o644))
	addedFiles := success[struct {
		Added []string `json:"added"`
	}](t, env.h.HandleFilesAdd, map[string]any{"name": "hollow", "paths": []any{aux}})
	assert.Equal(t, []string{aux}, addedFiles.Added)

	files := success[struct {
		Files []string `json:"files"`
	}](t, env.h.HandleFilesList, map[string]any{"name": "hollow"})
	assert.Equal(t, []string{aux}, files.Files)

	success[map[string]any](t, env.h.HandleFilesRemove, map[string]any{"name": "hollow", "path": aux})
	assert.Equal(t, "NotFound", failure(t, env.h.HandleFilesRemove, map[string]any{"name": "hollow", "path": aux}))

	success[map[string]any](t, env.h.HandleEntryRemove, map[string]any{"name": "hollow"})
	assert.Equal(t, "NotFound", failure(t, env.h.HandleEntryGet, map[string]any{"name": "hollow"}))
}

func TestSnapshotTools(t *testing.T) {
	env := testSetup(t)
	success[map[string]any](t, env.h.HandleEntryAdd, map[string]any{"path": env.root})

	first := success[SnapshotOutput](t, env.h.HandleSnapshotCreate, map[string]any{"name": "hollow"})
	require.NotEmpty(t, first.ID)
	require.NotNil(t, first.Manifest)
	env.clk.Advance(time.Minute)

	renamed := success[SnapshotOutput](t, env.h.HandleSnapshotRename,
		map[string]any{"name": "hollow", "id": first.ID, "new_id": "pre-radiance"})
	assert.Equal(t, "pre-radiance", renamed.ID)

	list := success[struct {
		Snapshots []SnapshotOutput `json:"snapshots"`
	}](t, env.h.HandleSnapshotList, map[string]any{"name": "hollow"})
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, "pre-radiance", list.Snapshots[0].ID)

	got := success[SnapshotOutput](t, env.h.HandleSnapshotGet, map[string]any{"name": "hollow", "id": "pre-radiance"})
	assert.Equal(t, "pre-radiance", got.ID)

	verified := success[VerifyOutput](t, env.h.HandleSnapshotVerify, map[string]any{"name": "hollow", "id": "pre-radiance"})
	assert.True(t, verified.OK)

	require.NoError(t, os.WriteFile(filepath.Join(env.root, "user1.dat"), []byte("lost"), 0o644))
	restored := success[RestoreOutput](t, env.h.HandleSnapshotRestore, map[string]any{"name": "hollow", "id": "pre-radiance"})
	assert.Equal(t, "pre-radiance", restored.Snapshot.ID)
	require.NotNil(t, restored.Safety)
	data, err := os.ReadFile(filepath.Join(env.root, "user1.dat"))
	require.NoError(t, err)
	assert.Equal(t, "charms", string(data))

	assert.Equal(t, "ProtectedSnapshot", failure(t, env.h.HandleSnapshotRemove, map[string]any{"name": "hollow", "id": "pre-radiance"}))

	pruned := success[struct {
		Removed []string `json:"removed"`
	}](t, env.h.HandleSnapshotPrune, map[string]any{"name": "hollow"})
	assert.Empty(t, pruned.Removed)

	history := success[struct {
		Events []map[string]any `json:"events"`
	}](t, env.h.HandleHistory, map[string]any{"entry": "hollow", "op": service.OpRestore})
	assert.Len(t, history.Events, 1)
}

func TestSnapshotTools_Errors(t *testing.T) {
	env := testSetup(t)
	success[map[string]any](t, env.h.HandleEntryAdd, map[string]any{"path": env.root})
	m := success[SnapshotOutput](t, env.h.HandleSnapshotCreate, map[string]any{"name": "hollow"})

	tests := []struct {
		name     string
		fn       handlerFunc
		args     map[string]any
		wantCode string
	}{
		{"unknown entry", env.h.HandleSnapshotCreate, map[string]any{"name": "silksong"}, "NotFound"},
		{"unknown snapshot", env.h.HandleSnapshotGet, map[string]any{"name": "hollow", "id": "missing"}, "SnapshotNotFound"},
		{"bad new id", env.h.HandleSnapshotRename, map[string]any{"name": "hollow", "id": m.ID, "new_id": "a/b"}, "InvalidName"},
		{"wrong argument type", env.h.HandleFilesAdd, map[string]any{"name": "hollow", "paths": "not-a-list"}, codeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, failure(t, tt.fn, tt.args))
		})
	}
}

func TestSnapshotVerify_Corrupted(t *testing.T) {
	env := testSetup(t)
	success[map[string]any](t, env.h.HandleEntryAdd, map[string]any{"path": env.root})
	m := success[SnapshotOutput](t, env.h.HandleSnapshotCreate, map[string]any{"name": "hollow"})

	dir, err := env.svc.EntryDir(context.Background(), "hollow")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshots", m.ID, "root", "user1.dat"), []byte("bitrot"), 0o644))

	res := success[VerifyOutput](t, env.h.HandleSnapshotVerify, map[string]any{"name": "hollow", "id": m.ID})
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Problems)
}

func TestStoreRoot(t *testing.T) {
	env := testSetup(t)
	info := success[struct {
		Root      string `json:"root"`
		Retention int    `json:"retention"`
	}](t, env.h.HandleStoreRoot, nil)
	assert.Equal(t, env.svc.Root(), info.Root)
	assert.Equal(t, config.DefaultRetention, info.Retention)
}
