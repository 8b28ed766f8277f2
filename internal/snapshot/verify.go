package snapshot

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// Verify re-hashes a snapshot's files against its manifest. The result
// lists every problem found; a non-empty list also returns an error marked
// ErrBackupCorrupted.
func (e *Engine) Verify(ctx context.Context, name, id string) (*VerifyResult, error) {
	defer e.lock(name)()

	if err := e.checkEntry(name); err != nil {
		return nil, err
	}
	m, err := e.get(name, id)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{ID: m.ID, Files: len(m.Files), Problems: []string{}}
	dir := e.store.Snapshot(name, m.ID)

	for _, f := range m.Files {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		if problem := checkFile(dir, f); problem != "" {
			res.Problems = append(res.Problems, problem)
		}
	}
	if got := contentHash(m.Files); got != m.ContentHash {
		res.Problems = append(res.Problems, "manifest content hash does not match its file records")
	}

	if !res.OK() {
		return res, errors.Wrapf(errors.ErrBackupCorrupted, "snapshot %q of %q: %d problem(s)", m.ID, name, len(res.Problems))
	}
	return res, nil
}

// checkFile returns a description of what is wrong with one record, or "".
func checkFile(dir string, f File) string {
	p := filepath.Join(dir, filepath.FromSlash(f.RelPath))
	info, err := os.Lstat(p)
	if err != nil {
		return fmt.Sprintf("%s: %v", f.RelPath, err)
	}

	switch {
	case f.Mode.IsDir():
		if !info.IsDir() {
			return f.RelPath + ": expected a directory"
		}
	case f.Mode&fs.ModeSymlink != 0:
		link, err := os.Readlink(p)
		if err != nil {
			return fmt.Sprintf("%s: %v", f.RelPath, err)
		}
		if link != f.Link {
			return fmt.Sprintf("%s: link target %q, want %q", f.RelPath, link, f.Link)
		}
	default:
		hash, err := hashFile(p)
		if err != nil {
			return fmt.Sprintf("%s: %v", f.RelPath, err)
		}
		if hash != f.SHA256 {
			return f.RelPath + ": hash mismatch"
		}
	}
	return ""
}
