// Package fileutil provides file system utilities including atomic write operations.
package fileutil

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// tempPattern names in-flight temp files; doctor treats leftovers as stale.
const tempPattern = ".savekeep-atomic-*.tmp"

// AtomicWriteFile replaces path with data. The parent directory must exist.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return writeAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return errors.IO(err, "writing temp file")
	})
}

// AtomicWriteJSON writes v as two-space indented JSON with a trailing
// newline. The file is created with 0600 permissions.
func AtomicWriteJSON(path string, v any) error {
	return writeAtomic(path, 0o600, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "marshaling JSON")
	})
}

// AtomicWriteYAML writes v as YAML with 0600 permissions.
func AtomicWriteYAML(path string, v any) error {
	return writeAtomic(path, 0o600, func(w io.Writer) (err error) {
		// yaml.v3 panics on types it cannot encode
		defer func() {
			if r := recover(); r != nil {
				err = errors.Newf("marshaling YAML: %v", r)
			}
		}()
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "marshaling YAML")
		}
		return errors.Wrap(enc.Close(), "marshaling YAML")
	})
}

// writeAtomic streams content into a temp file next to path, fsyncs it and
// renames it over path, then fsyncs the directory. A crash leaves either
// the old or the new content on disk, plus at worst a temp file.
func writeAtomic(path string, perm os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return errors.IO(err, "creating temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.IO(err, "writing temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.IO(err, "setting file permissions")
	}
	if err := tmp.Sync(); err != nil {
		return errors.IO(err, "syncing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.IO(err, "closing temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.IO(err, "renaming temp file")
	}
	committed = true

	return SyncDir(dir)
}

// SyncDir fsyncs a directory so renames inside it are durable.
// Windows cannot sync directory handles, so it is a no-op there.
func SyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return errors.IO(err, "opening directory")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.IO(err, "syncing directory")
	}
	return nil
}

// IsTempFile reports whether name looks like an AtomicWriteFile leftover.
func IsTempFile(name string) bool {
	ok, _ := filepath.Match(tempPattern, name)
	return ok
}
