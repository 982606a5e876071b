// Package workspace loads and saves the three state files that live at a
// workspace root: the manifest, the lockfile and the installed-file index.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/bianoble/agpm/internal/index"
	"github.com/bianoble/agpm/internal/lock"
	"github.com/bianoble/agpm/internal/manifest"
)

// Paths overrides the default state file locations. Relative paths are
// taken from the workspace root.
type Paths struct {
	Manifest string
	Lock     string
	Index    string
}

// Workspace is a workspace root with its state loaded.
type Workspace struct {
	Root         string
	Name         string
	ManifestPath string
	LockPath     string
	IndexPath    string

	Manifest *manifest.Manifest // never nil; empty when the file is absent
	Lock     *lock.Lockfile     // nil when agpm.lock does not exist
	Index    *index.Index       // never nil
}

// Open loads the workspace at root. Missing state files are not an error;
// malformed ones are.
func Open(root string, paths Paths) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %s: %w", root, err)
	}

	ws := &Workspace{
		Root:         abs,
		ManifestPath: resolve(abs, paths.Manifest, manifest.FileName),
		LockPath:     resolve(abs, paths.Lock, lock.FileName),
		IndexPath:    resolve(abs, paths.Index, index.FileName),
	}

	m, err := manifest.Load(ws.ManifestPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		m = &manifest.Manifest{}
	case err != nil:
		return nil, err
	}
	ws.Manifest = m

	ws.Name = m.Name
	if ws.Name == "" {
		ws.Name = filepath.Base(abs)
	}

	lf, err := lock.Load(ws.LockPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		ws.Lock = lf
	}

	ix, err := index.Load(ws.IndexPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ix = index.New(ws.Name)
	case err != nil:
		return nil, err
	}
	ws.Index = ix

	return ws, nil
}

// HasLock reports whether a lockfile was present.
func (ws *Workspace) HasLock() bool {
	return ws.Lock != nil
}

// LockOrEmpty returns the loaded lockfile, or an empty one.
func (ws *Workspace) LockOrEmpty() *lock.Lockfile {
	if ws.Lock == nil {
		return &lock.Lockfile{Name: ws.Name}
	}
	return ws.Lock
}

// Save writes manifest, lockfile and index, each atomically.
func (ws *Workspace) Save() error {
	if ws.Manifest.Name == "" {
		ws.Manifest.Name = ws.Name
	}
	if err := manifest.Save(ws.ManifestPath, ws.Manifest); err != nil {
		return err
	}
	lf := ws.LockOrEmpty()
	lf.Name = ws.Name
	if err := lock.Save(ws.LockPath, lf); err != nil {
		return err
	}
	ws.Lock = lf
	ws.Index.Name = ws.Name
	return index.Save(ws.IndexPath, ws.Index)
}

// SaveIndex writes only the index, leaving manifest and lockfile bytes as
// they are on disk.
func (ws *Workspace) SaveIndex() error {
	ws.Index.Name = ws.Name
	return index.Save(ws.IndexPath, ws.Index)
}

func resolve(root, override, def string) string {
	switch {
	case override == "":
		return filepath.Join(root, def)
	case filepath.IsAbs(override):
		return override
	default:
		return filepath.Join(root, override)
	}
}
