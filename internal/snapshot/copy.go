package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/logging"
	"github.com/thoreinstein/savekeep/internal/naming"
)

// capture copies filesystem trees into a staging directory, recording
// a File for every object it writes.
type capture struct {
	ctx    context.Context
	logger *slog.Logger
	norm   naming.Normalizer
	dst    string
	files  []File
	size   int64

	// exclude lists directories never walked into, in every spelling
	// known for them.
	exclude []string
}

func (c *capture) excluded(p string) bool {
	for _, dir := range c.exclude {
		if c.norm.Within(dir, p) {
			return true
		}
	}
	return false
}

// item copies src into the staging directory under store and returns
// whether src was a directory. A symlinked src is followed once so the
// snapshot holds content, not a dangling link.
func (c *capture) item(src, store string) (bool, error) {
	resolved, err := resolveTop(src)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return false, errors.IOf(err, "stat %s", src)
	}
	if c.excluded(resolved) {
		return false, errors.WithDetail(errors.Wrapf(errors.ErrInvalidPath, "%s", src), "lies inside the store")
	}

	err = filepath.WalkDir(resolved, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errors.IOf(walkErr, "walking %s", p)
		}
		if err := c.ctx.Err(); err != nil {
			return err
		}
		if c.excluded(p) {
			c.logger.Warn("skipping store directory", "path", p)
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(resolved, p)
		if err != nil {
			return errors.IOf(err, "relative path of %s", p)
		}
		relPath := path.Join(store, filepath.ToSlash(rel))
		dst := filepath.Join(c.dst, filepath.FromSlash(relPath))

		info, err := d.Info()
		if err != nil {
			return errors.IOf(err, "stat %s", p)
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(dst, 0o700); err != nil {
				return errors.IOf(err, "creating %s", dst)
			}
			c.files = append(c.files, File{RelPath: relPath, Mode: info.Mode()})

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return errors.IOf(err, "reading link %s", p)
			}
			if err := os.Symlink(link, dst); err != nil {
				return errors.IOf(err, "copying link %s", p)
			}
			c.files = append(c.files, File{RelPath: relPath, Mode: info.Mode(), Link: link})

		case d.Type().IsRegular():
			hash, n, err := copyFile(p, dst, 0o600)
			if err != nil {
				return err
			}
			c.files = append(c.files, File{RelPath: relPath, Mode: info.Mode(), Size: n, SHA256: hash})
			c.size += n
			c.logger.Log(c.ctx, logging.LevelTrace, "captured file", "path", p, "size", n)

		default:
			c.logger.Warn("skipping special file", "path", p, "mode", info.Mode().String())
		}
		return nil
	})
	return info.IsDir(), err
}

// resolveTop follows a symlink at p itself, leaving p unchanged otherwise.
func resolveTop(p string) (string, error) {
	info, err := os.Lstat(p)
	if err != nil {
		return "", errors.IOf(err, "stat %s", p)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return p, nil
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", errors.IOf(err, "resolving %s", p)
	}
	return resolved, nil
}

// copyFile copies src to dst (which must not exist), returning the
// SHA-256 of the copied bytes and the byte count.
func copyFile(src, dst string, perm fs.FileMode) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, errors.IOf(err, "opening %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return "", 0, errors.IOf(err, "creating %s", dst)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		out.Close()
		return "", 0, errors.IOf(err, "copying %s", src)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return "", 0, errors.IOf(err, "syncing %s", dst)
	}
	if err := out.Close(); err != nil {
		return "", 0, errors.IOf(err, "closing %s", dst)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// hashFile returns the hex-encoded SHA-256 of a file's contents.
func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// contentHash digests file records in path order. Two snapshots with the
// same tree, permissions, contents and link targets share a hash.
func contentHash(files []File) string {
	sorted := slices.Clone(files)
	slices.SortFunc(sorted, func(a, b File) int {
		switch {
		case a.RelPath < b.RelPath:
			return -1
		case a.RelPath > b.RelPath:
			return 1
		}
		return 0
	})

	h := sha256.New()
	for _, f := range sorted {
		mode := f.Mode.Type() | f.Mode.Perm()
		fmt.Fprintf(h, "%s\x00%o\x00%s\x00%s\n", f.RelPath, uint32(mode), f.SHA256, f.Link)
	}
	return hex.EncodeToString(h.Sum(nil))
}
