package snapshot

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/logging"
)

// holderPattern names the per-target work directories created next to
// restore targets.
const holderPattern = ".savekeep-restore-*"

// swap tracks one item through staging and the rename swap.
type swap struct {
	target  string
	holder  string
	staged  string
	aside   string
	hadOld  bool
	swapped bool

	// keep is set when a rollback failed and the holder still has the
	// only copy of the old content.
	keep bool
}

// rename is replaced in tests to inject swap failures.
var rename = os.Rename

type dirMode struct {
	path string
	mode fs.FileMode
}

// Restore overwrites the captured paths with the snapshot's contents.
//
// Every item is first staged next to its target and verified against the
// manifest hashes. Only when all items are staged are targets swapped by
// rename. A failed swap rolls back the items already swapped, and the old
// contents are deleted only after every swap succeeded.
func (e *Engine) Restore(ctx context.Context, name, id string, opts RestoreOptions) (*RestoreResult, error) {
	defer e.lock(name)()

	if err := e.checkEntry(name); err != nil {
		return nil, err
	}
	m, err := e.get(name, id)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Manifest: m, Restored: []string{}}
	if opts.Safety != nil {
		safety, err := e.backup(ctx, *opts.Safety, TriggerPreRestore)
		if err != nil {
			return nil, errors.Wrap(err, "pre-restore snapshot")
		}
		result.Safety = safety
	}

	snapDir := e.store.Snapshot(name, m.ID)
	swaps := make([]*swap, 0, len(m.Items))
	defer func() {
		for _, s := range swaps {
			if s.keep {
				e.logger.Error("previous content kept for manual recovery", "target", s.target, "path", s.aside)
				continue
			}
			if err := os.RemoveAll(s.holder); err != nil {
				e.logger.Warn("restore cleanup failed", "path", s.holder, "error", err)
			}
		}
	}()

	targets := make([]string, len(m.Items))
	for i, item := range m.Items {
		targets[i] = item.Path
	}
	for i, item := range m.Items {
		if outer, ok := e.covering(targets, i); ok {
			e.logger.Warn("item restored with an enclosing path, skipped", "path", item.Path, "by", outer)
			continue
		}
		s, err := e.stage(ctx, snapDir, m, item)
		if s != nil {
			swaps = append(swaps, s)
		}
		if err != nil {
			return nil, err
		}
	}

	for i, s := range swaps {
		if err := s.apply(); err != nil {
			for j := i; j >= 0; j-- {
				if rbErr := swaps[j].rollback(); rbErr != nil {
					swaps[j].keep = true
					e.logger.Error("rollback failed", "path", swaps[j].target, "error", rbErr)
				}
			}
			return nil, errors.IOf(err, "swapping %s", s.target)
		}
	}

	for _, s := range swaps {
		result.Restored = append(result.Restored, s.target)
	}
	e.logger.Info("restored snapshot", "entry", name, "id", m.ID, "items", len(swaps))
	return result, nil
}

// stage copies one item out of the snapshot into a holder directory next
// to its target, checking every file against the manifest.
func (e *Engine) stage(ctx context.Context, snapDir string, m *Manifest, item Item) (*swap, error) {
	target := restoreTarget(item.Path)
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, errors.IOf(err, "creating %s", parent)
	}
	holder, err := os.MkdirTemp(parent, holderPattern)
	if err != nil {
		return nil, errors.IOf(err, "staging next to %s", target)
	}
	s := &swap{
		target: target,
		holder: holder,
		staged: filepath.Join(holder, "new"),
		aside:  filepath.Join(holder, "old"),
	}

	var dirs []dirMode
	prefix := item.Store + "/"
	for _, f := range m.Files {
		if f.RelPath != item.Store && !strings.HasPrefix(f.RelPath, prefix) {
			continue
		}
		if err := ctxErr(ctx); err != nil {
			return s, err
		}
		src := filepath.Join(snapDir, filepath.FromSlash(f.RelPath))
		dst := filepath.Join(s.staged, filepath.FromSlash(strings.TrimPrefix(f.RelPath, item.Store)))

		switch {
		case f.Mode.IsDir():
			if err := os.MkdirAll(dst, 0o700); err != nil {
				return s, errors.IOf(err, "creating %s", dst)
			}
			dirs = append(dirs, dirMode{path: dst, mode: f.Mode})

		case f.Mode&fs.ModeSymlink != 0:
			if err := os.Symlink(f.Link, dst); err != nil {
				return s, errors.IOf(err, "creating link %s", dst)
			}

		default:
			hash, _, err := copyFile(src, dst, f.Mode.Perm())
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return s, errors.Wrapf(errors.ErrBackupCorrupted, "file %s is missing", f.RelPath)
				}
				return s, err
			}
			if hash != f.SHA256 {
				return s, errors.Wrapf(errors.ErrBackupCorrupted, "file %s hash mismatch", f.RelPath)
			}
			// Restore original permissions
			if err := os.Chmod(dst, f.Mode.Perm()); err != nil {
				return s, errors.IOf(err, "setting permissions for %s", dst)
			}
			e.logger.Log(ctx, logging.LevelTrace, "staged file", "path", dst)
		}
	}

	if _, err := os.Lstat(s.staged); err != nil {
		return s, errors.Wrapf(errors.ErrBackupCorrupted, "item %s has no content", item.Store)
	}

	// Directory permissions last, deepest first, so read-only dirs can be filled
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].mode.Perm()); err != nil {
			return s, errors.IOf(err, "setting permissions for %s", dirs[i].path)
		}
	}
	return s, nil
}

// apply moves the current target aside and the staged content in.
func (s *swap) apply() error {
	if _, err := os.Lstat(s.target); err == nil {
		if err := rename(s.target, s.aside); err != nil {
			return err
		}
		s.hadOld = true
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := rename(s.staged, s.target); err != nil {
		if s.hadOld && rename(s.aside, s.target) == nil {
			s.hadOld = false
		}
		return err
	}
	s.swapped = true
	return nil
}

// rollback undoes apply.
func (s *swap) rollback() error {
	if s.swapped {
		if err := rename(s.target, s.staged); err != nil {
			return err
		}
		s.swapped = false
	}
	if s.hadOld {
		if err := rename(s.aside, s.target); err != nil {
			return err
		}
		s.hadOld = false
	}
	return nil
}

// restoreTarget resolves a symlink at the captured path so content is
// swapped where the link points, keeping the link itself.
func restoreTarget(p string) string {
	info, err := os.Lstat(p)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return p
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// Dangling link: replace the link itself
		return p
	}
	return resolved
}
