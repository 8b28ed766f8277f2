package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// IDLayout is the time layout of generated snapshot ids.
const IDLayout = "20060102T150405"

// MaxNameLength bounds entry names to a portable directory name length.
const MaxNameLength = 255

var snapshotIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// DeriveName returns the entry name for a root path: the base component of
// the cleaned absolute path, case preserved.
func DeriveName(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.Wrap(errors.ErrInvalidPath, "path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInvalidPath, "resolving %q: %v", path, err)
	}
	if abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return "", errors.WithDetailf(errors.Wrap(errors.ErrInvalidName, "a filesystem root has no name"), "path: %s", abs)
	}
	name := filepath.Base(abs)
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateName checks that name can be used as an entry name and as a
// single directory component in the store.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.ErrMissingName
	case name == "." || name == "..":
		return errors.Wrapf(errors.ErrInvalidName, "%q is reserved", name)
	case len(name) > MaxNameLength:
		return errors.Wrapf(errors.ErrInvalidName, "name longer than %d bytes", MaxNameLength)
	case strings.ContainsAny(name, `/\`):
		return errors.Wrapf(errors.ErrInvalidName, "%q contains a path separator", name)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return errors.Wrapf(errors.ErrInvalidName, "%q contains control characters", name)
	}
	return nil
}

// ValidateSnapshotID checks that id is a well-formed snapshot identifier:
// it starts with a letter or digit and continues with letters, digits, '.',
// '_' or '-', at most 128 characters in total.
func ValidateSnapshotID(id string) error {
	if id == "" {
		return errors.Wrap(errors.ErrInvalidName, "snapshot id is empty")
	}
	if !snapshotIDPattern.MatchString(id) {
		return errors.Wrapf(errors.ErrInvalidName, "malformed snapshot id %q", id)
	}
	return nil
}

// SnapshotID returns the timestamp id for t. When taken reports the id as
// used, -1, -2, ... are appended until a free id is found.
func SnapshotID(t time.Time, taken func(string) bool) string {
	base := t.UTC().Format(IDLayout)
	if taken == nil || !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		id := fmt.Sprintf("%s-%d", base, i)
		if !taken(id) {
			return id
		}
	}
}
