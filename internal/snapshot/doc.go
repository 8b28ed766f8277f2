// Package snapshot implements savekeep's snapshot engine.
//
// Each entry owns a directory in the store:
//
//	entries/<name>/
//	├── snapshots/
//	│   └── 20260123T100712/
//	│       ├── manifest.json
//	│       ├── root/            copy of the entry's root tree
//	│       └── aux/000-<base>   one item per auxiliary path
//	├── .staging/                in-flight backups, never listed
//	└── .trash/                  snapshots being deleted, never listed
//
// # Creating Snapshots
//
// [Engine.Backup] copies everything into .staging while hashing each file,
// writes manifest.json, and publishes the result with one rename. Ids are
// UTC timestamps; a collision appends -1, -2 and so on.
//
// # Restoring
//
// [Engine.Restore] stages every captured item next to its target and checks
// it against the manifest before touching anything. Targets are then
// swapped by rename and rolled back if any swap fails. With
// [RestoreOptions.Safety] set, the current state is captured first as a
// pre-restore snapshot.
//
// # Retention
//
// The newest N snapshots of an entry (by sequence number) are protected:
// [Engine.RemoveOne] refuses them with errors.ErrProtectedSnapshot and
// [Engine.Prune] removes everything older. N defaults to [DefaultRetention];
// zero disables both.
//
// # Integrity
//
// Every regular file carries a SHA-256 in the manifest and the manifest a
// content hash over all records. Restore fails with errors.ErrBackupCorrupted
// before changing any target if a file no longer matches; [Engine.Verify]
// reports every mismatch.
package snapshot
