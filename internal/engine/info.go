package engine

import (
	"github.com/bianoble/agpm/internal/cache"
	"github.com/bianoble/agpm/internal/config"
	"github.com/bianoble/agpm/internal/target"
	"github.com/bianoble/agpm/internal/workspace"
)

// InfoResult holds tool and workspace information for the info command.
type InfoResult struct {
	Version      string
	Workspace    string
	ManifestPath string
	LockPath     string
	IndexPath    string
	CacheDir     string
	CacheSize    int64
	Bundles      int
	Platforms    []PlatformInfo
	ConfigChain  []config.LayerInfo
}

// PlatformInfo describes a platform definition.
type PlatformInfo struct {
	Name      string
	Directory string
	MCPPath   string
	IsCustom  bool
	Detected  bool
}

// Info gathers tool information. Any argument may be nil.
func Info(version string, ws *workspace.Workspace, c *cache.Cache, pm *target.PlatformMap, layers []config.LayerInfo) (*InfoResult, error) {
	r := &InfoResult{
		Version:     version,
		ConfigChain: layers,
	}

	if ws != nil {
		r.Workspace = ws.Root
		r.ManifestPath = ws.ManifestPath
		r.LockPath = ws.LockPath
		r.IndexPath = ws.IndexPath
		r.Bundles = len(ws.LockOrEmpty().Bundles)
	}

	if c != nil {
		r.CacheDir = c.Path()
		size, err := c.Size()
		if err == nil {
			r.CacheSize = size
		}
	}

	if pm != nil {
		detected := make(map[string]bool)
		if ws != nil {
			for _, name := range pm.Detect(ws.Root) {
				detected[name] = true
			}
		}
		for _, name := range pm.Names() {
			p, _ := pm.Get(name)
			r.Platforms = append(r.Platforms, PlatformInfo{
				Name:      name,
				Directory: p.Directory,
				MCPPath:   p.MCPPath,
				IsCustom:  pm.IsCustom(name),
				Detected:  detected[name],
			})
		}
	}

	return r, nil
}
