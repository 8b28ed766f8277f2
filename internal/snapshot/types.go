package snapshot

import (
	"io/fs"
	"time"
)

// ManifestVersion is the manifest format version for forward compatibility.
const ManifestVersion = 1

// DefaultRetention is the number of newest snapshots protected per entry.
const DefaultRetention = 10

// Version is the savekeep version written into new manifests.
// The CLI sets it from the build version.
var Version = "dev"

// Trigger records why a snapshot was taken.
type Trigger string

const (
	// TriggerManual is an explicit Backup call.
	TriggerManual Trigger = "manual"
	// TriggerPreRestore is the safety snapshot taken before Restore.
	TriggerPreRestore Trigger = "pre-restore"
)

// ItemKind distinguishes the entry root from auxiliary paths.
type ItemKind string

const (
	ItemRoot ItemKind = "root"
	ItemAux  ItemKind = "aux"
)

// Manifest contains metadata about a snapshot.
// It is stored as manifest.json in each snapshot directory.
type Manifest struct {
	// Version is the manifest format version.
	Version int `json:"version"`

	// Entry is the owning entry name.
	Entry string `json:"entry"`

	// Sequence orders snapshots of one entry by creation.
	Sequence int64 `json:"sequence"`

	// CreatedAt is when the snapshot was taken, UTC.
	CreatedAt time.Time `json:"created_at"`

	// Trigger is manual or pre-restore.
	Trigger Trigger `json:"trigger"`

	// Items are the captured top-level paths.
	Items []Item `json:"items"`

	// Files has one record per captured directory, file and symlink.
	Files []File `json:"files"`

	// ContentHash is a SHA-256 over every file record.
	ContentHash string `json:"content_hash"`

	// Size is the total size of regular files in bytes.
	Size int64 `json:"size"`

	// SavekeepVersion is the version of savekeep that wrote the snapshot.
	SavekeepVersion string `json:"savekeep_version"`

	// ID is the snapshot identifier, which is its directory name.
	// This field is populated when loading from disk but not stored in JSON.
	ID string `json:"-"`
}

// Item is one captured top-level path.
type Item struct {
	Kind ItemKind `json:"kind"`

	// Path is the absolute path the item was captured from.
	Path string `json:"path"`

	// Store is the slash-separated location inside the snapshot,
	// "root" or "aux/NNN-<base>".
	Store string `json:"store"`

	IsDir bool `json:"is_dir"`
}

// File contains metadata for a single captured filesystem object.
type File struct {
	// RelPath is the slash-separated path inside the snapshot directory.
	RelPath string `json:"rel_path"`

	// SHA256 is the hex-encoded hash of a regular file's contents.
	SHA256 string `json:"sha256,omitempty"`

	// Mode holds the type and permission bits.
	Mode fs.FileMode `json:"mode"`

	Size int64 `json:"size,omitempty"`

	// Link is the target of a symlink.
	Link string `json:"link,omitempty"`
}

// Source describes what to capture for an entry.
type Source struct {
	Name  string
	Root  string
	Files []string
}

// BackupOptions tunes a Backup call.
type BackupOptions struct {
	Trigger Trigger
}

// RestoreOptions tunes a Restore call.
type RestoreOptions struct {
	// Safety, when set, is captured as a pre-restore snapshot before
	// anything is overwritten.
	Safety *Source
}

// RestoreResult describes a completed restore.
type RestoreResult struct {
	Manifest *Manifest `json:"manifest"`
	Restored []string  `json:"restored"`
	Safety   *Manifest `json:"safety,omitempty"`
}

// VerifyResult reports a re-hash of a snapshot.
type VerifyResult struct {
	ID       string   `json:"id"`
	Files    int      `json:"files"`
	Problems []string `json:"problems"`
}

// OK reports whether no problems were found.
func (r *VerifyResult) OK() bool {
	return len(r.Problems) == 0
}
