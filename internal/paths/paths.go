package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// AppName is the directory name used under the XDG homes.
const AppName = "savekeep"

// Store layout names, relative to the store directory.
const (
	IndexFile   = "index.yaml"
	JournalFile = "journal.db"
	EntriesDir  = "entries"
)

// Per-entry layout names, relative to an entry's store directory.
const (
	SnapshotsDir = "snapshots"
	StagingDir   = ".staging"
	TrashDir     = ".trash"
	ManifestFile = "manifest.json"
)

// ErrHomeDirNotFound indicates the user's home directory could not be determined.
var ErrHomeDirNotFound = errors.New("home directory not found")

// DefaultDirPerm is the default permission for newly created directories (private).
const DefaultDirPerm = 0o700

// EnsureDir creates the directory and any necessary parents with specified permissions.
// If perm is 0, DefaultDirPerm (0700) is used.
// This function is idempotent; it returns nil if the directory already exists.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// ResolveHome returns the user's home directory.
// Returns ErrHomeDirNotFound if the directory cannot be determined.
func ResolveHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(ErrHomeDirNotFound, err.Error())
	}
	return home, nil
}

// ConfigHome returns the XDG config home directory.
// On Linux: ~/.config
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func ConfigHome() string {
	return xdg.ConfigHome
}

// DataHome returns the XDG data home directory.
// On Linux: ~/.local/share
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func DataHome() string {
	return xdg.DataHome
}

// ConfigDir returns <ConfigHome>/savekeep.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), AppName)
}

// DefaultStoreDir returns <DataHome>/savekeep.
func DefaultStoreDir() string {
	return filepath.Join(DataHome(), AppName)
}

// Store resolves locations inside a store directory.
type Store string

// Index returns the registry index path.
func (s Store) Index() string { return filepath.Join(string(s), IndexFile) }

// Journal returns the operation journal database path.
func (s Store) Journal() string { return filepath.Join(string(s), JournalFile) }

// Entries returns the directory holding all entry directories.
func (s Store) Entries() string { return filepath.Join(string(s), EntriesDir) }

// Entry returns the store directory of one entry.
func (s Store) Entry(name string) string { return filepath.Join(s.Entries(), name) }

// Snapshots returns the committed snapshots directory of an entry.
func (s Store) Snapshots(name string) string {
	return filepath.Join(s.Entry(name), SnapshotsDir)
}

// Snapshot returns the directory of one committed snapshot.
func (s Store) Snapshot(name, id string) string {
	return filepath.Join(s.Snapshots(name), id)
}

// Staging returns the staging area of an entry.
func (s Store) Staging(name string) string { return filepath.Join(s.Entry(name), StagingDir) }

// Trash returns the trash area of an entry.
func (s Store) Trash(name string) string { return filepath.Join(s.Entry(name), TrashDir) }
