// Package manifest reads and writes agpm.yaml, the file that declares a
// bundle's metadata and direct dependencies. The workspace root carries one
// too, listing the bundles the user asked for.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/agpm/internal/apperr"
	"github.com/bianoble/agpm/internal/sandbox"
	"github.com/bianoble/agpm/internal/source"
)

// FileName is the manifest file name in the workspace and in every bundle.
const FileName = "agpm.yaml"

// Manifest is the parsed form of agpm.yaml.
type Manifest struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Version     string       `yaml:"version,omitempty"`
	Author      string       `yaml:"author,omitempty"`
	License     string       `yaml:"license,omitempty"`
	Homepage    string       `yaml:"homepage,omitempty"`
	Bundles     []Dependency `yaml:"bundles,omitempty"`
}

// Dependency is one declared bundle: either a local path or a git url with
// optional ref and subpath.
type Dependency struct {
	Name    string `yaml:"name"`
	Path    string `yaml:"path,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Ref     string `yaml:"ref,omitempty"`
	Subpath string `yaml:"subpath,omitempty"`
}

// Reference parses the dependency into a source reference.
func (d Dependency) Reference() (source.Reference, error) {
	return source.FromFields(d.Name, d.Path, d.URL, d.Ref, d.Subpath)
}

// DependencyFor builds the manifest entry recorded for a directly requested
// bundle.
func DependencyFor(name string, ref source.Reference) Dependency {
	d := Dependency{Name: name}
	switch ref.Kind {
	case source.KindDir:
		d.Path = "./" + ref.Path
		if ref.Path == "." {
			d.Path = "."
		}
	case source.KindGit:
		d.URL = ref.URL
		d.Ref = ref.Ref
		d.Subpath = ref.Subpath
	}
	return d
}

// Load reads and validates a manifest. Unknown fields are rejected.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, apperr.WithPath(apperr.KindInvalidManifest, "invalid manifest", path, err)
	}
	return m, nil
}

// LoadDir loads the manifest in a bundle directory. A bundle without one
// has no dependencies, so absence returns (nil, nil).
func LoadDir(dir string) (*Manifest, error) {
	m, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return m, err
}

// Parse decodes and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if errs := Validate(&m); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return &m, nil
}

// Save writes a manifest atomically.
func Save(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := sandbox.AtomicWrite(path, data, 0644); err != nil {
		return apperr.FS("writing manifest", path, err)
	}
	return nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Manifest for semantic correctness. A missing name is
// allowed; the workspace fills it in from its directory and bundles fall
// back to their reference.
func Validate(m *Manifest) []string {
	var errs []string

	names := make(map[string]bool)
	for i, d := range m.Bundles {
		prefix := fmt.Sprintf("bundles[%d]", i)
		if d.Name != "" {
			prefix = fmt.Sprintf("bundle '%s'", d.Name)
		}

		if d.Name == "" {
			errs = append(errs, prefix+": 'name' is required")
		} else if names[d.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate bundle name '%s'", prefix, d.Name))
		} else {
			names[d.Name] = true
		}

		if _, err := d.Reference(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
	}
	return errs
}

// References parses every declared dependency, in declaration order.
func (m *Manifest) References() ([]source.Reference, error) {
	if m == nil {
		return nil, nil
	}
	refs := make([]source.Reference, 0, len(m.Bundles))
	for _, d := range m.Bundles {
		r, err := d.Reference()
		if err != nil {
			return nil, fmt.Errorf("bundle %q: %w", d.Name, err)
		}
		refs = append(refs, r)
	}
	return refs, nil
}

// Find returns the index of the dependency with the given name, or -1.
func (m *Manifest) Find(name string) int {
	for i, d := range m.Bundles {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// FindIdentity returns the index of the dependency that refers to id, or -1.
func (m *Manifest) FindIdentity(id source.Identity) int {
	for i, d := range m.Bundles {
		r, err := d.Reference()
		if err == nil && r.Identity.Equal(id) {
			return i
		}
	}
	return -1
}

// Upsert adds d, or replaces the entry for the same identity, or failing
// that the entry with the same name. It reports whether the manifest
// changed.
func (m *Manifest) Upsert(d Dependency) bool {
	r, err := d.Reference()
	if err != nil {
		return false
	}
	i := m.FindIdentity(r.Identity)
	if i < 0 {
		i = m.Find(d.Name)
	}
	if i >= 0 {
		if m.Bundles[i] == d {
			return false
		}
		m.Bundles[i] = d
		return true
	}
	m.Bundles = append(m.Bundles, d)
	return true
}

// Remove drops the dependency with the given name. It reports whether an
// entry was removed.
func (m *Manifest) Remove(name string) bool {
	i := m.Find(name)
	if i < 0 {
		return false
	}
	m.Bundles = append(m.Bundles[:i], m.Bundles[i+1:]...)
	return true
}
