package mcp

import "github.com/mark3labs/mcp-go/mcp"

func entryName() mcp.ToolOption {
	return mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Entry name (matched case-insensitively when path_case is insensitive)"),
	)
}

func snapshotID() mcp.ToolOption {
	return mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Snapshot identifier"),
	)
}

var storeRootToolDef = mcp.NewTool("store_root",
	mcp.WithDescription("Report the store directory and the retention window."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var historyToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List journaled operations, newest first."),
	mcp.WithString("entry", mcp.Description("Only events for this entry")),
	mcp.WithString("op", mcp.Description("Only events of this operation, e.g. backup or restore")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of events (default 50)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var entryAddToolDef = mcp.NewTool("entry_add",
	mcp.WithDescription("Track a directory. The entry name is derived from the directory's base name."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Directory to track")),
)

var entryListToolDef = mcp.NewTool("entry_list",
	mcp.WithDescription("List tracked entries."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var entryGetToolDef = mcp.NewTool("entry_get",
	mcp.WithDescription("Show one tracked entry."),
	entryName(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var entryRemoveToolDef = mcp.NewTool("entry_remove",
	mcp.WithDescription("Stop tracking an entry and delete all of its snapshots."),
	entryName(),
	mcp.WithDestructiveHintAnnotation(true),
)

var filesListToolDef = mcp.NewTool("files_list",
	mcp.WithDescription("List an entry's auxiliary paths."),
	entryName(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var filesAddToolDef = mcp.NewTool("files_add",
	mcp.WithDescription("Attach files or directories outside the entry root. All paths are added or none are."),
	entryName(),
	mcp.WithArray("paths",
		mcp.Required(),
		mcp.Description("Paths to attach"),
		mcp.WithStringItems(),
	),
)

var filesRemoveToolDef = mcp.NewTool("files_remove",
	mcp.WithDescription("Detach an auxiliary path from an entry."),
	entryName(),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to detach")),
)

var snapshotCreateToolDef = mcp.NewTool("snapshot_create",
	mcp.WithDescription("Take a snapshot of an entry's root and auxiliary paths."),
	entryName(),
)

var snapshotListToolDef = mcp.NewTool("snapshot_list",
	mcp.WithDescription("List an entry's snapshots, newest first."),
	entryName(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var snapshotGetToolDef = mcp.NewTool("snapshot_get",
	mcp.WithDescription("Show one snapshot's manifest."),
	entryName(),
	snapshotID(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var snapshotRestoreToolDef = mcp.NewTool("snapshot_restore",
	mcp.WithDescription("Restore an entry from a snapshot, replacing the live files."),
	entryName(),
	snapshotID(),
	mcp.WithDestructiveHintAnnotation(true),
)

var snapshotRenameToolDef = mcp.NewTool("snapshot_rename",
	mcp.WithDescription("Give a snapshot a new identifier."),
	entryName(),
	snapshotID(),
	mcp.WithString("new_id", mcp.Required(), mcp.Description("New snapshot identifier")),
)

var snapshotRemoveToolDef = mcp.NewTool("snapshot_remove",
	mcp.WithDescription("Delete one snapshot outside the retention window."),
	entryName(),
	snapshotID(),
	mcp.WithDestructiveHintAnnotation(true),
)

var snapshotPruneToolDef = mcp.NewTool("snapshot_prune",
	mcp.WithDescription("Delete every snapshot outside the retention window."),
	entryName(),
	mcp.WithDestructiveHintAnnotation(true),
)

var snapshotVerifyToolDef = mcp.NewTool("snapshot_verify",
	mcp.WithDescription("Re-hash a snapshot and compare it with its manifest."),
	entryName(),
	snapshotID(),
	mcp.WithReadOnlyHintAnnotation(true),
)
