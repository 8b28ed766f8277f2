package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/journal"
	"github.com/thoreinstein/savekeep/internal/service"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

// codeInvalidRequest reports arguments that could not be decoded.
const codeInvalidRequest = "InvalidRequest"

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc *service.Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// HistoryRequest represents the arguments for history_list.
type HistoryRequest struct {
	Entry string `json:"entry,omitempty"`
	Op    string `json:"op,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// PathRequest carries a single filesystem path.
type PathRequest struct {
	Path string `json:"path"`
}

// EntryRequest names an entry.
type EntryRequest struct {
	Name string `json:"name"`
}

// FilesAddRequest represents the arguments for files_add.
type FilesAddRequest struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}

// FilesRemoveRequest represents the arguments for files_remove.
type FilesRemoveRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// SnapshotRequest names a snapshot of an entry.
type SnapshotRequest struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// RenameRequest represents the arguments for snapshot_rename.
type RenameRequest struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	NewID string `json:"new_id"`
}

// SnapshotOutput is a manifest with its identifier.
type SnapshotOutput struct {
	ID string `json:"id"`
	*snapshot.Manifest
}

func output(m *snapshot.Manifest) SnapshotOutput {
	return SnapshotOutput{ID: m.ID, Manifest: m}
}

// RestoreOutput is the result of snapshot_restore.
type RestoreOutput struct {
	Snapshot SnapshotOutput  `json:"snapshot"`
	Restored []string        `json:"restored"`
	Safety   *SnapshotOutput `json:"safety,omitempty"`
}

// VerifyOutput is the result of snapshot_verify.
type VerifyOutput struct {
	*snapshot.VerifyResult
	OK bool `json:"ok"`
}

// HandleStoreRoot handles the store_root tool call.
func (h *Handlers) HandleStoreRoot(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{
		"root":      h.svc.Root(),
		"retention": h.svc.Retention(),
	})
}

// HandleHistory handles the history_list tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	events, err := h.svc.History(ctx, journal.Filter{Entry: input.Entry, Op: input.Op, Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"events": events})
}

// HandleEntryAdd handles the entry_add tool call.
func (h *Handlers) HandleEntryAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	entry, err := h.svc.Add(ctx, input.Path)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(entry)
}

// HandleEntryList handles the entry_list tool call.
func (h *Handlers) HandleEntryList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.svc.List(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"entries": entries})
}

// HandleEntryGet handles the entry_get tool call.
func (h *Handlers) HandleEntryGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntryRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	entry, err := h.svc.Get(ctx, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(entry)
}

// HandleEntryRemove handles the entry_remove tool call.
func (h *Handlers) HandleEntryRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntryRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if err := h.svc.Remove(ctx, input.Name); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"removed": input.Name})
}

// HandleFilesList handles the files_list tool call.
func (h *Handlers) HandleFilesList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntryRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	files, err := h.svc.Files(ctx, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"files": files})
}

// HandleFilesAdd handles the files_add tool call.
func (h *Handlers) HandleFilesAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FilesAddRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	added, err := h.svc.AddFiles(ctx, input.Name, input.Paths)
	if err != nil {
		return errorResult(err), nil
	}
	if added == nil {
		added = []string{}
	}
	return successResult(map[string]any{"added": added})
}

// HandleFilesRemove handles the files_remove tool call.
func (h *Handlers) HandleFilesRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FilesRemoveRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if err := h.svc.RemoveFile(ctx, input.Name, input.Path); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"removed": input.Path})
}

// HandleSnapshotCreate handles the snapshot_create tool call.
func (h *Handlers) HandleSnapshotCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntryRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	m, err := h.svc.Backup(ctx, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output(m))
}

// HandleSnapshotList handles the snapshot_list tool call.
func (h *Handlers) HandleSnapshotList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntryRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	list, err := h.svc.Snapshots(ctx, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	out := make([]SnapshotOutput, 0, len(list))
	for i := range list {
		out = append(out, output(&list[i]))
	}
	return successResult(map[string]any{"snapshots": out})
}

// HandleSnapshotGet handles the snapshot_get tool call.
func (h *Handlers) HandleSnapshotGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	m, err := h.svc.Snapshot(ctx, input.Name, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output(m))
}

// HandleSnapshotRestore handles the snapshot_restore tool call.
func (h *Handlers) HandleSnapshotRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	res, err := h.svc.Restore(ctx, input.Name, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	out := RestoreOutput{Snapshot: output(res.Manifest), Restored: res.Restored}
	if res.Safety != nil {
		s := output(res.Safety)
		out.Safety = &s
	}
	return successResult(out)
}

// HandleSnapshotRename handles the snapshot_rename tool call.
func (h *Handlers) HandleSnapshotRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RenameRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	m, err := h.svc.Rename(ctx, input.Name, input.ID, input.NewID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output(m))
}

// HandleSnapshotRemove handles the snapshot_remove tool call.
func (h *Handlers) HandleSnapshotRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if err := h.svc.RemoveOne(ctx, input.Name, input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"removed": input.ID})
}

// HandleSnapshotPrune handles the snapshot_prune tool call.
func (h *Handlers) HandleSnapshotPrune(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntryRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	removed, err := h.svc.Prune(ctx, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	if removed == nil {
		removed = []string{}
	}
	return successResult(map[string]any{"removed": removed})
}

// HandleSnapshotVerify handles the snapshot_verify tool call.
// A corrupted snapshot is reported with ok=false, not as a tool error.
func (h *Handlers) HandleSnapshotVerify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	res, err := h.svc.Verify(ctx, input.Name, input.ID)
	if res == nil {
		return errorResult(err), nil
	}
	return successResult(VerifyOutput{VerifyResult: res, OK: res.OK()})
}

// Result helpers

func invalidRequest(err error) *mcp.CallToolResult {
	return errorPayload(codeInvalidRequest, err.Error())
}

// errorResult creates an MCP error result carrying the error's kind.
func errorResult(err error) *mcp.CallToolResult {
	return errorPayload(string(errors.KindOf(err)), err.Error())
}

func errorPayload(code, message string) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
