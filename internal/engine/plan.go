package engine

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/bianoble/agpm/internal/digest"
	"github.com/bianoble/agpm/internal/index"
	"github.com/bianoble/agpm/internal/merge"
	"github.com/bianoble/agpm/internal/sandbox"
)

// vfile is one workspace location as a plan sees it: the content on disk
// when the plan started and the content the plan will leave behind.
type vfile struct {
	path     string
	original []byte
	existed  bool
	content  []byte
	exists   bool

	touched bool // the plan decided this location's content
	merged  bool
	skipped bool
	bundle  string

	// Evaluated once against the original disk state.
	modified  bool // installed by agpm and edited since
	unindexed bool // present on disk but never installed by agpm
}

func (f *vfile) action() Action {
	switch {
	case f.skipped:
		return ActionSkipModified
	case !f.exists && f.existed:
		return ActionRemove
	case !f.exists:
		return ""
	case !f.existed:
		return ActionCreate
	case bytes.Equal(f.original, f.content):
		return ActionUnchanged
	case f.merged:
		return ActionMerge
	default:
		return ActionReplace
	}
}

// plan accumulates file decisions without touching disk until apply.
type plan struct {
	root      string
	installed *index.Index
	files     map[string]*vfile
}

func newPlan(root string, installed *index.Index) *plan {
	return &plan{root: root, installed: installed, files: make(map[string]*vfile)}
}

// load returns the location's state, reading it from disk the first time.
func (p *plan) load(loc string) (*vfile, error) {
	if f, ok := p.files[loc]; ok {
		return f, nil
	}
	data, exists, err := sandbox.ReadFile(p.root, loc)
	if err != nil {
		return nil, err
	}
	f := &vfile{path: loc, original: data, existed: exists, content: data, exists: exists}
	if exists {
		h, indexed := p.installed.InstalledHash(loc)
		f.unindexed = !indexed
		f.modified = indexed && h != digest.Bytes(data)
	}
	p.files[loc] = f
	return f, nil
}

func (p *plan) write(f *vfile, content []byte, bundle string, merged bool) {
	f.content = content
	f.exists = true
	f.touched = true
	f.merged = f.merged || merged
	f.bundle = bundle
}

func (p *plan) remove(f *vfile, bundle string) {
	f.content = nil
	f.exists = false
	f.touched = true
	f.bundle = bundle
}

func (p *plan) skip(f *vfile, bundle string) {
	f.skipped = true
	f.bundle = bundle
}

// stripSections removes the composite sections of the named bundles.
func stripSections(content []byte, bundles map[string]bool) ([]byte, bool) {
	out, changed := string(content), false
	for _, name := range slices.Sorted(maps.Keys(bundles)) {
		if s, ok := merge.Strip(out, name); ok {
			out, changed = s, true
		}
	}
	return []byte(out), changed
}

func (p *plan) sorted() []*vfile {
	out := make([]*vfile, 0, len(p.files))
	for _, k := range slices.Sorted(maps.Keys(p.files)) {
		out = append(out, p.files[k])
	}
	return out
}

// actions lists every decided location in path order.
func (p *plan) actions() []FileAction {
	var out []FileAction
	for _, f := range p.sorted() {
		if !f.touched && !f.skipped {
			continue
		}
		if a := f.action(); a != "" {
			out = append(out, FileAction{Path: f.path, Action: a, Bundle: f.bundle})
		}
	}
	return out
}

// apply writes every changed location. If any operation fails, locations
// already changed are restored to their original content and the error is
// returned.
func (p *plan) apply() error {
	var done []*vfile
	for _, f := range p.sorted() {
		if !f.touched || !f.action().Writes() {
			continue
		}
		var err error
		if f.exists {
			err = sandbox.WriteFile(p.root, f.path, f.content, 0644)
		} else {
			_, err = sandbox.Remove(p.root, f.path)
		}
		if err != nil {
			p.rollback(done)
			return fmt.Errorf("updating workspace failed, rolled back: %w", err)
		}
		done = append(done, f)
	}
	return nil
}

func (p *plan) rollback(done []*vfile) {
	for i := len(done) - 1; i >= 0; i-- {
		f := done[i]
		if f.existed {
			_ = sandbox.WriteFile(p.root, f.path, f.original, 0644)
		} else {
			_, _ = sandbox.Remove(p.root, f.path)
		}
	}
}
