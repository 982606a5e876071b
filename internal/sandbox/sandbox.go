// Package sandbox confines every file operation agpm performs to the workspace root.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bianoble/agpm/internal/apperr"
)

// Resolve maps a workspace-relative path to an absolute path, following
// symlinks in whatever prefix already exists, and fails with PathEscape if
// the result is outside root. Absolute inputs are rejected.
func Resolve(root, rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(filepath.ToSlash(rel), "/") {
		return "", apperr.WithPath(apperr.KindPathEscape, "absolute paths are not allowed", rel, nil)
	}

	realRoot, err := realPath(root)
	if err != nil {
		return "", fmt.Errorf("resolving workspace root: %w", err)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, filepath.FromSlash(rel)))
	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", rel, err)
	}

	if !within(realRoot, resolved) {
		return "", apperr.WithPath(apperr.KindPathEscape,
			fmt.Sprintf("path resolves to %s, outside the workspace %s", resolved, realRoot), rel, nil)
	}
	return resolved, nil
}

// ReadFile returns the content at rel. A missing file is not an error:
// exists is false and content is nil.
func ReadFile(root, rel string) (content []byte, exists bool, err error) {
	abs, err := Resolve(root, rel)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.FS("reading file", rel, err)
	}
	return data, true, nil
}

// WriteFile atomically replaces rel with content, creating parent directories.
func WriteFile(root, rel string, content []byte, perm os.FileMode) error {
	abs, err := Resolve(root, rel)
	if err != nil {
		return err
	}
	if _, err := Resolve(root, filepath.Dir(rel)); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return apperr.FS("creating directory", filepath.Dir(rel), err)
	}
	if err := AtomicWrite(abs, content, perm); err != nil {
		return apperr.FS("writing file", rel, err)
	}
	return nil
}

// AtomicWrite replaces path with data via a temp file in the same directory
// and a rename, so readers never observe a partial file. It does no
// containment check; the workspace stores use it for their own files.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".agpm-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	ok = true
	return nil
}

// Remove deletes rel if present, then removes any parent directories the
// deletion left empty, stopping at the workspace root.
// It reports whether a file was actually deleted.
func Remove(root, rel string) (bool, error) {
	abs, err := Resolve(root, rel)
	if err != nil {
		return false, err
	}
	err = os.Remove(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperr.FS("removing file", rel, err)
	}

	realRoot, err := realPath(root)
	if err != nil {
		return true, nil
	}
	PruneEmptyDirs(realRoot, filepath.Dir(abs))
	return true, nil
}

// PruneEmptyDirs removes dir and its ancestors while they are empty,
// never touching root itself or anything outside it.
func PruneEmptyDirs(root, dir string) {
	for within(root, dir) && dir != root {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func realPath(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// resolveExisting resolves symlinks for the longest existing prefix of path
// and appends the part that does not exist yet.
func resolveExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	dir, base := filepath.Dir(path), filepath.Base(path)
	if dir == path {
		return path, nil
	}

	resolvedDir, err := resolveExisting(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}
