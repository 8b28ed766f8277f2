package mcp

import (
	"context"
	"io"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/thoreinstein/savekeep/internal/service"
)

// serverName is reported to clients during initialization.
const serverName = "savekeep"

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"store_root": {
		def:     storeRootToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStoreRoot },
	},
	"history_list": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"entry_add": {
		def:     entryAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntryAdd },
	},
	"entry_list": {
		def:     entryListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntryList },
	},
	"entry_get": {
		def:     entryGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntryGet },
	},
	"entry_remove": {
		def:     entryRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntryRemove },
	},
	"files_list": {
		def:     filesListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFilesList },
	},
	"files_add": {
		def:     filesAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFilesAdd },
	},
	"files_remove": {
		def:     filesRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFilesRemove },
	},
	"snapshot_create": {
		def:     snapshotCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotCreate },
	},
	"snapshot_list": {
		def:     snapshotListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotList },
	},
	"snapshot_get": {
		def:     snapshotGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotGet },
	},
	"snapshot_restore": {
		def:     snapshotRestoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotRestore },
	},
	"snapshot_rename": {
		def:     snapshotRenameToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotRename },
	},
	"snapshot_remove": {
		def:     snapshotRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotRemove },
	},
	"snapshot_prune": {
		def:     snapshotPruneToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotPrune },
	},
	"snapshot_verify": {
		def:     snapshotVerifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotVerify },
	},
}

// AllToolNames returns the registered tool names in sorted order.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer creates an MCP server with every savekeep tool registered.
func NewServer(svc *service.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(svc)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Serve runs s over the given streams until ctx is cancelled or in closes.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}
