// Package index persists agpm.index: which files each bundle actually
// wrote, and the hash of what was written there. Uninstall consults only
// this record to decide what to delete.
package index

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/agpm/internal/apperr"
	"github.com/bianoble/agpm/internal/sandbox"
)

// FileName is the index file name at the workspace root.
const FileName = "agpm.index"

// Index is the parsed form of agpm.index.
type Index struct {
	Name string `yaml:"name"`
	// Adopted lists locations that held user content before agpm first
	// merged into them. Releasing the last claim strips agpm's part of
	// such a file instead of deleting it.
	Adopted []string `yaml:"adopted,omitempty"`
	Bundles []Bundle `yaml:"bundles"`
}

// Bundle maps each resource a bundle provides to the workspace locations it
// was installed at, one per platform. Hashes records the content hash of
// every location as last written, used to detect user edits.
type Bundle struct {
	Name    string              `yaml:"name"`
	Enabled map[string][]string `yaml:"enabled"`
	Hashes  map[string]string   `yaml:"hashes,omitempty"`
}

// New returns an empty index for a workspace.
func New(name string) *Index {
	return &Index{Name: name}
}

// Load reads and validates an index file. The returned error wraps
// fs.ErrNotExist when the file is absent.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}

	var ix Index
	if err := yaml.Unmarshal(data, &ix); err != nil {
		return nil, apperr.WithPath(apperr.KindInvalidManifest, "parsing index", path, err)
	}
	if errs := Validate(&ix); len(errs) > 0 {
		return nil, apperr.WithPath(apperr.KindInvalidManifest, "invalid index", path,
			fmt.Errorf("%s", strings.Join(errs, "; ")))
	}
	return &ix, nil
}

// Save normalises and writes the index atomically.
func Save(path string, ix *Index) error {
	ix.normalize()
	data, err := yaml.Marshal(ix)
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := sandbox.AtomicWrite(path, data, 0644); err != nil {
		return apperr.FS("writing index", path, err)
	}
	return nil
}

// Validate checks an Index for semantic correctness.
func Validate(ix *Index) []string {
	var errs []string
	for _, loc := range ix.Adopted {
		if loc == "" || strings.HasPrefix(loc, "/") {
			errs = append(errs, fmt.Sprintf("adopted: invalid location %q", loc))
		}
	}
	names := make(map[string]bool)
	for i, b := range ix.Bundles {
		switch {
		case b.Name == "":
			errs = append(errs, fmt.Sprintf("bundles[%d]: 'name' is required", i))
		case names[b.Name]:
			errs = append(errs, fmt.Sprintf("bundle '%s': duplicate entry", b.Name))
		default:
			names[b.Name] = true
		}
		for res, locs := range b.Enabled {
			for _, loc := range locs {
				if loc == "" || strings.HasPrefix(loc, "/") {
					errs = append(errs, fmt.Sprintf("bundle '%s': resource %s has invalid location %q", b.Name, res, loc))
				}
			}
		}
	}
	return errs
}

// Get returns the entry for name, or nil.
func (ix *Index) Get(name string) *Bundle {
	for i := range ix.Bundles {
		if ix.Bundles[i].Name == name {
			return &ix.Bundles[i]
		}
	}
	return nil
}

// Ensure returns the entry for name, creating an empty one if needed. The
// pointer is valid until the next call that adds an entry.
func (ix *Index) Ensure(name string) *Bundle {
	if b := ix.Get(name); b != nil {
		return b
	}
	ix.Bundles = append(ix.Bundles, Bundle{Name: name})
	return &ix.Bundles[len(ix.Bundles)-1]
}

// Remove drops the entries for every name in names.
func (ix *Index) Remove(names map[string]bool) {
	kept := ix.Bundles[:0]
	for _, b := range ix.Bundles {
		if !names[b.Name] {
			kept = append(kept, b)
		}
	}
	ix.Bundles = kept
}

// Owners returns the names of bundles that claim location, in index order.
func (ix *Index) Owners(location string) []string {
	var out []string
	for _, b := range ix.Bundles {
		if b.Claims(location) {
			out = append(out, b.Name)
		}
	}
	return out
}

// InstalledHash returns the hash recorded for location by any bundle.
func (ix *Index) InstalledHash(location string) (string, bool) {
	for _, b := range ix.Bundles {
		if h, ok := b.Hashes[location]; ok {
			return h, true
		}
	}
	return "", false
}

// Adopt marks location as a user file that agpm merged into.
func (ix *Index) Adopt(location string) {
	if !slices.Contains(ix.Adopted, location) {
		ix.Adopted = append(ix.Adopted, location)
	}
}

// IsAdopted reports whether location was a user file before agpm claimed it.
func (ix *Index) IsAdopted(location string) bool {
	return slices.Contains(ix.Adopted, location)
}

// Disown forgets the adopted mark of location.
func (ix *Index) Disown(location string) {
	ix.Adopted = slices.DeleteFunc(ix.Adopted, func(l string) bool { return l == location })
}

// Rehash records hash for location on every bundle that claims it.
func (ix *Index) Rehash(location, hash string) {
	for i := range ix.Bundles {
		b := &ix.Bundles[i]
		if !b.Claims(location) {
			continue
		}
		if b.Hashes == nil {
			b.Hashes = make(map[string]string)
		}
		b.Hashes[location] = hash
	}
}

// Clone returns a deep copy, so a plan can be computed without touching
// the loaded index.
func (ix *Index) Clone() *Index {
	out := &Index{Name: ix.Name, Adopted: slices.Clone(ix.Adopted), Bundles: make([]Bundle, len(ix.Bundles))}
	for i, b := range ix.Bundles {
		nb := Bundle{Name: b.Name}
		if b.Enabled != nil {
			nb.Enabled = make(map[string][]string, len(b.Enabled))
			for k, v := range b.Enabled {
				nb.Enabled[k] = slices.Clone(v)
			}
		}
		if b.Hashes != nil {
			nb.Hashes = make(map[string]string, len(b.Hashes))
			for k, v := range b.Hashes {
				nb.Hashes[k] = v
			}
		}
		out.Bundles[i] = nb
	}
	return out
}

func (ix *Index) normalize() {
	ix.Adopted = slices.DeleteFunc(ix.Adopted, func(l string) bool { return len(ix.Owners(l)) == 0 })
	slices.Sort(ix.Adopted)
	ix.Adopted = slices.Compact(ix.Adopted)
	if len(ix.Adopted) == 0 {
		ix.Adopted = nil
	}
	for i := range ix.Bundles {
		b := &ix.Bundles[i]
		if b.Enabled == nil {
			b.Enabled = map[string][]string{}
		}
		for res, locs := range b.Enabled {
			if len(locs) == 0 {
				delete(b.Enabled, res)
				continue
			}
			slices.Sort(locs)
			b.Enabled[res] = slices.Compact(locs)
		}
		if len(b.Hashes) == 0 {
			b.Hashes = nil
		}
	}
}

// Claim records that resource was installed at location with content hash.
func (b *Bundle) Claim(resource, location, hash string) {
	if b.Enabled == nil {
		b.Enabled = make(map[string][]string)
	}
	if !slices.Contains(b.Enabled[resource], location) {
		b.Enabled[resource] = append(b.Enabled[resource], location)
		slices.Sort(b.Enabled[resource])
	}
	if b.Hashes == nil {
		b.Hashes = make(map[string]string)
	}
	b.Hashes[location] = hash
}

// Release forgets location for every resource of the bundle.
func (b *Bundle) Release(location string) {
	for res, locs := range b.Enabled {
		if i := slices.Index(locs, location); i >= 0 {
			locs = slices.Delete(locs, i, i+1)
			if len(locs) == 0 {
				delete(b.Enabled, res)
			} else {
				b.Enabled[res] = locs
			}
		}
	}
	delete(b.Hashes, location)
}

// Claims reports whether the bundle recorded location.
func (b *Bundle) Claims(location string) bool {
	for _, locs := range b.Enabled {
		if slices.Contains(locs, location) {
			return true
		}
	}
	return false
}

// Locations returns every location the bundle recorded, sorted.
func (b *Bundle) Locations() []string {
	var out []string
	for _, locs := range b.Enabled {
		out = append(out, locs...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
