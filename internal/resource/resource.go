// Package resource walks a bundle directory into typed resources and
// detects resources that several bundles provide at the same path.
package resource

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/bianoble/agpm/internal/digest"
)

// Type is the closed set of resource kinds, derived from the path alone.
type Type string

const (
	Command   Type = "command"
	Rule      Type = "rule"
	Agent     Type = "agent"
	Skill     Type = "skill"
	McpConfig Type = "mcp-config"
	RootFile  Type = "root-file"
	AgentDoc  Type = "agent-doc"
	Other     Type = "other"
)

// IsMergeable reports whether an existing file of this type is merged with
// incoming content instead of being replaced.
func (t Type) IsMergeable() bool {
	return t == McpConfig || t == AgentDoc
}

// IsRootFile reports whether the resource goes to the workspace root once,
// regardless of platform.
func (t Type) IsRootFile() bool {
	return t == RootFile
}

var dirTypes = map[string]Type{
	"commands": Command,
	"rules":    Rule,
	"agents":   Agent,
	"skills":   Skill,
	"docs":     AgentDoc,
}

var rootFiles = map[string]bool{
	".gitignore":    true,
	".editorconfig": true,
	".cursorignore": true,
	".aiignore":     true,
}

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".pdf": true,
	".zip": true, ".ico": true, ".woff": true, ".woff2": true, ".ttf": true,
	".gz": true, ".tar": true,
}

// Classify derives the type of a bundle-relative, slash-separated path:
// directory prefix first, then file name, then Other.
func Classify(rel string) Type {
	first, _, nested := strings.Cut(rel, "/")
	if nested {
		if t, ok := dirTypes[first]; ok {
			return t
		}
	}

	switch base := path.Base(rel); {
	case base == "mcp.json":
		return McpConfig
	case base == "AGENTS.md" || base == "CLAUDE.md":
		return AgentDoc
	case !nested && rootFiles[base]:
		return RootFile
	}
	return Other
}

// IsBinary reports whether the path looks like binary content by extension.
// Binary resources are always copied, never merged.
func IsBinary(rel string) bool {
	return binaryExts[strings.ToLower(path.Ext(rel))]
}

// Resource is one file of a bundle.
type Resource struct {
	Path   string // bundle-relative, slash-separated, NFC
	Hash   string
	Type   Type
	Binary bool
}

// Mergeable reports whether the resource is merged into existing files.
func (r Resource) Mergeable() bool {
	return r.Type.IsMergeable() && !r.Binary
}

// Enumerate walks root and returns its resources sorted by path. Hashing is
// spread over a bounded number of goroutines; the result does not depend on
// scheduling.
func Enumerate(ctx context.Context, root string) ([]Resource, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !excluded(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking bundle %s: %w", root, err)
	}

	out := make([]Resource, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, rel := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := digest.File(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("hashing %s: %w", rel, err)
			}
			p := norm.NFC.String(rel)
			out[i] = Resource{Path: p, Hash: h, Type: Classify(p), Binary: IsBinary(p)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b Resource) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

// TreeHash is the content hash of a whole resource set.
func TreeHash(resources []Resource) string {
	files := make(map[string]string, len(resources))
	for _, r := range resources {
		files[r.Path] = r.Hash
	}
	return digest.Tree(files)
}

// Paths returns the resource paths in order.
func Paths(resources []Resource) []string {
	out := make([]string, len(resources))
	for i, r := range resources {
		out[i] = r.Path
	}
	return out
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func excluded(rel string) bool {
	base := path.Base(rel)
	if strings.HasPrefix(base, "_") {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return strings.Contains(rel, "/") || !rootFiles[base]
	}
	if !strings.Contains(rel, "/") {
		return base == "agpm.yaml" || base == "README.md" || strings.HasPrefix(base, "LICENSE")
	}
	return false
}

// Set is the resources one bundle provides.
type Set struct {
	Bundle    string
	Resources []Resource
}

// Conflict is a path provided by two bundles.
type Conflict struct {
	Path   string
	First  string
	Second string
}

// DetectConflicts reports every path that appears in more than one set,
// pairing each later provider with the first. Sets are taken in the given
// order, resources in path order.
func DetectConflicts(sets []Set) []Conflict {
	first := make(map[string]string)
	var out []Conflict
	for _, s := range sets {
		for _, r := range s.Resources {
			owner, seen := first[r.Path]
			if !seen {
				first[r.Path] = s.Bundle
				continue
			}
			if owner != s.Bundle {
				out = append(out, Conflict{Path: r.Path, First: owner, Second: s.Bundle})
			}
		}
	}
	return out
}
