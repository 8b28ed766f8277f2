package naming

import (
	"path/filepath"
	"strings"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/paths"
)

// homeDir is replaced in tests.
var homeDir = paths.ResolveHome

// Normalizer cleans paths and builds comparison keys.
type Normalizer struct {
	// Fold compares paths and names case-insensitively.
	Fold bool
}

// Clean returns path as an absolute, cleaned path with native separators.
// A leading "~" is expanded to the user's home directory.
func (n Normalizer) Clean(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.Wrap(errors.ErrInvalidPath, "path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", errors.Wrap(errors.ErrInvalidPath, "path contains a NUL byte")
	}
	path = filepath.FromSlash(path)
	if path == "~" || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		home, err := homeDir()
		if err != nil {
			return "", errors.Wrap(errors.ErrInvalidPath, err.Error())
		}
		path = filepath.Join(home, path[1:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInvalidPath, "resolving %q: %v", path, err)
	}
	return abs, nil
}

// Key returns the comparison key of an already cleaned path.
func (n Normalizer) Key(path string) string {
	path = filepath.Clean(path)
	if n.Fold {
		return strings.ToLower(path)
	}
	return path
}

// NameKey returns the comparison key of an entry name or snapshot id.
func (n Normalizer) NameKey(name string) string {
	if n.Fold {
		return strings.ToLower(name)
	}
	return name
}

// Equal reports whether two cleaned paths refer to the same location
// under the comparison policy.
func (n Normalizer) Equal(a, b string) bool {
	return n.Key(a) == n.Key(b)
}

// Within reports whether path equals root or lies below it.
func (n Normalizer) Within(root, path string) bool {
	r, p := n.Key(root), n.Key(path)
	if r == p {
		return true
	}
	if !strings.HasSuffix(r, string(filepath.Separator)) {
		r += string(filepath.Separator)
	}
	return strings.HasPrefix(p, r)
}
