package lock

import "github.com/bianoble/agpm/internal/source"

// FileName is the lockfile name at the workspace root.
const FileName = "agpm.lock"

// Lockfile represents agpm.lock: the fully resolved bundle graph, ordered
// dependencies first.
type Lockfile struct {
	Name    string  `yaml:"name"`
	Bundles []Entry `yaml:"bundles"`
}

// Entry records the resolved, pinned state of one bundle.
type Entry struct {
	Name         string   `yaml:"name"`
	Source       Source   `yaml:"source"`
	Files        []string `yaml:"files"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// Source is the identity and pin of a locked bundle.
type Source struct {
	Type    string `yaml:"type"` // "dir" or "git"
	Path    string `yaml:"path,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subpath string `yaml:"subpath,omitempty"`
	Ref     string `yaml:"ref,omitempty"`
	SHA     string `yaml:"sha,omitempty"`
	Hash    string `yaml:"hash"`
}

// Identity returns the bundle identity the source describes.
func (s Source) Identity() source.Identity {
	return source.Identity{
		Kind:    source.Kind(s.Type),
		Path:    s.Path,
		URL:     s.URL,
		Subpath: s.Subpath,
	}
}

// Reference returns a reference that re-fetches this entry at its ref.
func (e Entry) Reference() source.Reference {
	return source.Reference{
		Identity: e.Source.Identity(),
		Ref:      e.Source.Ref,
		Name:     e.Name,
	}
}

// SourceFor builds the locked source for an identity at a ref and pin.
func SourceFor(id source.Identity, ref, sha, hash string) Source {
	return Source{
		Type:    string(id.Kind),
		Path:    id.Path,
		URL:     id.URL,
		Subpath: id.Subpath,
		Ref:     ref,
		SHA:     sha,
		Hash:    hash,
	}
}

// Find returns the index of the entry with the given name, or -1.
func (lf *Lockfile) Find(name string) int {
	for i, e := range lf.Bundles {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// FindIdentity returns the index of the entry for id, or -1.
func (lf *Lockfile) FindIdentity(id source.Identity) int {
	key := id.Key()
	for i, e := range lf.Bundles {
		if e.Source.Identity().Key() == key {
			return i
		}
	}
	return -1
}

// Remove drops every entry whose name is in names.
func (lf *Lockfile) Remove(names map[string]bool) {
	kept := lf.Bundles[:0]
	for _, e := range lf.Bundles {
		if !names[e.Name] {
			kept = append(kept, e)
		}
	}
	lf.Bundles = kept
}
