// Package target maps bundle resources to their installed locations for each
// supported assistant platform.
package target

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bianoble/agpm/internal/config"
	"github.com/bianoble/agpm/internal/resource"
)

// Transformer computes where a resource is installed for a platform. It is
// pure: no filesystem access, same answer for the same input.
type Transformer interface {
	TargetPath(platform, resourcePath string, typ resource.Type) (string, error)
}

// Platform describes one assistant's layout inside the workspace.
type Platform struct {
	Name      string
	Directory string // e.g. ".cursor"
	MCPPath   string // workspace-relative MCP config location

	// Dirs renames the type directory (commands/, rules/, ...) when the
	// platform uses a different one.
	Dirs map[resource.Type]string
	// Exts replaces a resource's ".md" extension for a type.
	Exts map[resource.Type]string
	// Markers are workspace paths whose presence means the platform is in
	// use. Directory is the marker when empty.
	Markers []string
}

var builtinPlatforms = []Platform{
	{
		Name:      "claude",
		Directory: ".claude",
		MCPPath:   ".mcp.json",
	},
	{
		Name:      "cursor",
		Directory: ".cursor",
		MCPPath:   ".cursor/mcp.json",
		Exts:      map[resource.Type]string{resource.Rule: ".mdc"},
	},
	{
		Name:      "windsurf",
		Directory: ".windsurf",
		MCPPath:   ".windsurf/mcp_config.json",
		Dirs:      map[resource.Type]string{resource.Command: "workflows"},
	},
	{
		Name:      "copilot",
		Directory: ".github",
		MCPPath:   ".vscode/mcp.json",
		Dirs:      map[resource.Type]string{resource.Command: "prompts", resource.Rule: "instructions"},
		Exts:      map[resource.Type]string{resource.Command: ".prompt.md", resource.Rule: ".instructions.md"},
		Markers:   []string{".github/copilot-instructions.md", ".github/instructions", ".github/prompts"},
	},
	{
		Name:      "codex",
		Directory: ".codex",
		MCPPath:   ".codex/mcp.json",
	},
	{
		Name:      "cline",
		Directory: ".cline",
		MCPPath:   ".cline/mcp.json",
		Dirs:      map[resource.Type]string{resource.Rule: "clinerules"},
	},
}

// PlatformMap is the built-in platform table plus custom definitions.
type PlatformMap struct {
	platforms map[string]Platform
	custom    map[string]bool
}

// NewPlatformMap creates a PlatformMap with built-in platforms and optional
// custom definitions. A custom definition with a built-in name replaces the
// built-in layout entirely.
func NewPlatformMap(defs []config.PlatformDefinition) *PlatformMap {
	pm := &PlatformMap{
		platforms: make(map[string]Platform, len(builtinPlatforms)+len(defs)),
		custom:    make(map[string]bool),
	}
	for _, p := range builtinPlatforms {
		pm.platforms[p.Name] = p
	}
	for _, d := range defs {
		dir := strings.TrimSuffix(path.Clean(filepath.ToSlash(d.Directory)), "/")
		mcp := d.MCPPath
		if mcp == "" {
			mcp = path.Join(dir, "mcp.json")
		}
		pm.platforms[d.Name] = Platform{Name: d.Name, Directory: dir, MCPPath: path.Clean(filepath.ToSlash(mcp))}
		pm.custom[d.Name] = true
	}
	return pm
}

// Get returns the platform definition for name.
func (pm *PlatformMap) Get(name string) (Platform, error) {
	p, ok := pm.platforms[name]
	if !ok {
		return Platform{}, fmt.Errorf("unknown platform '%s'; define it in platform_definitions: [{name: %s, directory: .%s}]", name, name, name)
	}
	return p, nil
}

// TargetPath implements Transformer. The result is workspace-relative and
// slash-separated.
func (pm *PlatformMap) TargetPath(platform, resourcePath string, typ resource.Type) (string, error) {
	p, err := pm.Get(platform)
	if err != nil {
		return "", err
	}

	var out string
	switch {
	case typ.IsRootFile():
		out = resourcePath
	case typ == resource.McpConfig:
		out = p.MCPPath
	case typ == resource.AgentDoc && !strings.Contains(resourcePath, "/"):
		// AGENTS.md and CLAUDE.md are read from the workspace root.
		out = resourcePath
	default:
		out = path.Join(p.Directory, p.rewrite(resourcePath, typ))
	}

	out = path.Clean(out)
	if out == "." || out == ".." || strings.HasPrefix(out, "../") || path.IsAbs(out) {
		return "", fmt.Errorf("resource %s maps outside the workspace for platform %s", resourcePath, platform)
	}
	return out, nil
}

// rewrite renames the type directory and remaps the extension.
func (p Platform) rewrite(resourcePath string, typ resource.Type) string {
	first, rest, nested := strings.Cut(resourcePath, "/")
	if !nested {
		return resourcePath
	}
	if dir, ok := p.Dirs[typ]; ok {
		first = dir
	}
	if ext, ok := p.Exts[typ]; ok && strings.HasSuffix(rest, ".md") {
		rest = strings.TrimSuffix(rest, ".md") + ext
	}
	return first + "/" + rest
}

// Names returns all known platform names, sorted.
func (pm *PlatformMap) Names() []string {
	names := make([]string, 0, len(pm.platforms))
	for name := range pm.platforms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsCustom reports whether a platform comes from platform_definitions.
func (pm *PlatformMap) IsCustom(name string) bool {
	return pm.custom[name]
}

// Detect returns the platforms whose markers already exist in the
// workspace, sorted by name.
func (pm *PlatformMap) Detect(workspaceRoot string) []string {
	var found []string
	for _, name := range pm.Names() {
		p := pm.platforms[name]
		markers := p.Markers
		if len(markers) == 0 {
			markers = []string{p.Directory}
		}
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(workspaceRoot, filepath.FromSlash(m))); err == nil {
				found = append(found, name)
				break
			}
		}
	}
	return found
}

// Installed returns the platforms that own at least one of the given
// installed locations, sorted by name.
func (pm *PlatformMap) Installed(locations []string) []string {
	var found []string
	for _, name := range pm.Names() {
		p := pm.platforms[name]
		for _, loc := range locations {
			if loc == p.MCPPath || strings.HasPrefix(loc, p.Directory+"/") {
				found = append(found, name)
				break
			}
		}
	}
	return found
}
