package lock

import (
	"bytes"
	"slices"
)

// Reconcile merges a fresh resolution into the previous lock entries.
// resolved must be in post-order (dependencies first).
//
//   - an entry whose identity is already locked and whose resolution is
//     unchanged keeps the old entry untouched
//   - a changed entry is replaced where it stands
//   - a new entry is placed before the first locked entry that depends on
//     it, or appended
//   - locked entries missing from the resolution are kept
//
// The previous lockfile is not modified.
func Reconcile(prev *Lockfile, name string, resolved []Entry) *Lockfile {
	out := &Lockfile{Name: name}
	if prev != nil {
		if name == "" {
			out.Name = prev.Name
		}
		out.Bundles = make([]Entry, len(prev.Bundles))
		for i, e := range prev.Bundles {
			out.Bundles[i] = cloneEntry(e)
		}
	}

	for _, e := range resolved {
		i := out.FindIdentity(e.Source.Identity())
		if i < 0 {
			// Same name under a different source: the bundle moved.
			i = out.Find(e.Name)
		}
		switch {
		case i < 0:
			out.Bundles = append(out.Bundles, cloneEntry(e))
		case !sameEntry(out.Bundles[i], e):
			out.Bundles[i] = cloneEntry(e)
		}
	}

	out.Bundles = order(out.Bundles)
	return out
}

// Equal reports whether two lockfiles serialise to the same bytes.
func Equal(a, b *Lockfile) bool {
	da, errA := Marshal(a)
	db, errB := Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(da, db)
}

// order moves each entry after the entries it depends on while keeping the
// existing relative order wherever it is already valid. An already ordered
// slice comes back unchanged.
func order(entries []Entry) []Entry {
	byName := make(map[string]int, len(entries))
	for i, e := range entries {
		byName[e.Name] = i
	}

	out := make([]Entry, 0, len(entries))
	state := make([]int, len(entries)) // 0 unvisited, 1 visiting, 2 done

	var visit func(i int)
	visit = func(i int) {
		if state[i] != 0 {
			return
		}
		state[i] = 1
		for _, dep := range entries[i].Dependencies {
			if j, ok := byName[dep]; ok {
				visit(j)
			}
		}
		state[i] = 2
		out = append(out, entries[i])
	}
	for i := range entries {
		visit(i)
	}
	return out
}

func sameEntry(a, b Entry) bool {
	return a.Name == b.Name &&
		a.Source == b.Source &&
		slices.Equal(a.Files, b.Files) &&
		slices.Equal(a.Dependencies, b.Dependencies)
}

func cloneEntry(e Entry) Entry {
	e.Files = slices.Clone(e.Files)
	e.Dependencies = slices.Clone(e.Dependencies)
	return e
}
