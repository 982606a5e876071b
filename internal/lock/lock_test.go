package lock

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bianoble/agpm/internal/apperr"
)

const exampleLockfile = `name: ws
bundles:
  - name: '@t/b'
    source:
      type: dir
      path: bundles/b
      hash: blake3:bbbb
    files:
      - commands/b.md
  - name: '@t/a'
    source:
      type: git
      url: https://github.com/t/a
      ref: main
      sha: 0123456789abcdef0123456789abcdef01234567
      hash: blake3:aaaa
    files:
      - commands/a.md
    dependencies:
      - '@t/b'
`

func dirEntry(name, path, hash string, deps ...string) Entry {
	return Entry{
		Name:         name,
		Source:       Source{Type: "dir", Path: path, Hash: hash},
		Files:        []string{"commands/" + path + ".md"},
		Dependencies: deps,
	}
}

func names(lf *Lockfile) string {
	var out []string
	for _, e := range lf.Bundles {
		out = append(out, e.Name)
	}
	return strings.Join(out, ",")
}

func TestLoadValidLockfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(exampleLockfile), 0644); err != nil {
		t.Fatal(err)
	}

	lf, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(lf.Bundles) != 2 {
		t.Fatalf("bundles = %d, want 2", len(lf.Bundles))
	}
	a := lf.Bundles[1]
	if a.Source.Identity().Key() != "git:https://github.com/t/a" {
		t.Errorf("identity = %q", a.Source.Identity().Key())
	}
	if a.Reference().Ref != "main" {
		t.Errorf("ref = %q", a.Reference().Ref)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("bundles:\n  - name: x\n    source: {type: git, url: u, hash: \"blake3:1\"}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !apperr.Is(err, apperr.KindInvalidManifest) {
		t.Fatalf("error = %v, want invalid-manifest", err)
	}
	if !strings.Contains(err.Error(), "resolved 'sha'") {
		t.Errorf("error should mention the missing sha: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{"missing name", []Entry{{Source: Source{Type: "dir", Path: "a", Hash: "blake3:1"}}}, "'name' is required"},
		{"duplicate name", []Entry{dirEntry("a", "a", "blake3:1"), dirEntry("a", "b", "blake3:2")}, "duplicate bundle name"},
		{"duplicate source", []Entry{dirEntry("a", "x", "blake3:1"), dirEntry("b", "x", "blake3:2")}, "duplicate source"},
		{"unknown type", []Entry{{Name: "a", Source: Source{Type: "url", Hash: "blake3:1"}}}, "unknown source type"},
		{"dir without path", []Entry{{Name: "a", Source: Source{Type: "dir", Hash: "blake3:1"}}}, "requires 'path'"},
		{"bad hash", []Entry{dirEntry("a", "a", "sha256:1")}, "'hash' must start with"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&Lockfile{Bundles: tt.entries})
			if !strings.Contains(strings.Join(errs, "\n"), tt.wantErr) {
				t.Errorf("errors = %v, want one containing %q", errs, tt.wantErr)
			}
		})
	}
}

func TestSaveIsByteStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(exampleLockfile), 0644); err != nil {
		t.Fatal(err)
	}
	lf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := Save(path, lf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first, _ := os.ReadFile(path)
	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(path, reloaded); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Errorf("save/load/save not stable:\n%s\n---\n%s", first, second)
	}
}

func TestReconcileKeepsUnchangedEntries(t *testing.T) {
	prev := &Lockfile{Name: "ws", Bundles: []Entry{
		dirEntry("b", "b", "blake3:1"),
		dirEntry("a", "a", "blake3:2", "b"),
	}}

	got := Reconcile(prev, "ws", []Entry{
		dirEntry("b", "b", "blake3:1"),
		dirEntry("a", "a", "blake3:2", "b"),
	})
	if !Equal(prev, got) {
		t.Error("unchanged resolution must produce an identical lockfile")
	}
}

func TestReconcileReplacesInPlace(t *testing.T) {
	prev := &Lockfile{Name: "ws", Bundles: []Entry{
		dirEntry("x", "x", "blake3:1"),
		dirEntry("y", "y", "blake3:2"),
	}}

	got := Reconcile(prev, "ws", []Entry{dirEntry("x", "x", "blake3:changed")})
	if names(got) != "x,y" {
		t.Fatalf("order = %s, want x,y", names(got))
	}
	if got.Bundles[0].Source.Hash != "blake3:changed" {
		t.Errorf("hash = %q, want replaced entry", got.Bundles[0].Source.Hash)
	}
	if prev.Bundles[0].Source.Hash != "blake3:1" {
		t.Error("previous lockfile must not be modified")
	}
}

func TestReconcileRetainsAbsentEntries(t *testing.T) {
	prev := &Lockfile{Name: "ws", Bundles: []Entry{
		dirEntry("old", "old", "blake3:1"),
	}}

	got := Reconcile(prev, "ws", []Entry{dirEntry("new", "new", "blake3:2")})
	if names(got) != "old,new" {
		t.Errorf("order = %s, want old,new", names(got))
	}
}

func TestReconcileInsertsBeforeDependents(t *testing.T) {
	// a is locked and now gains a dependency chain a -> b -> c.
	prev := &Lockfile{Name: "ws", Bundles: []Entry{
		dirEntry("z", "z", "blake3:z"),
		dirEntry("a", "a", "blake3:a"),
	}}

	got := Reconcile(prev, "ws", []Entry{
		dirEntry("c", "c", "blake3:c"),
		dirEntry("b", "b", "blake3:b", "c"),
		dirEntry("a", "a", "blake3:a2", "b"),
	})
	if names(got) != "z,c,b,a" {
		t.Errorf("order = %s, want z,c,b,a", names(got))
	}
}

func TestReconcileOrderIndependentOfInvocation(t *testing.T) {
	c := dirEntry("c", "c", "blake3:c")
	b := dirEntry("b", "b", "blake3:b", "c")
	a := dirEntry("a", "a", "blake3:a", "b")

	// Installing c alone first, then a (which pulls in b and c).
	first := Reconcile(nil, "ws", []Entry{c})
	second := Reconcile(first, "ws", []Entry{c, b, a})
	if names(second) != "c,b,a" {
		t.Errorf("order = %s, want c,b,a", names(second))
	}

	// Installing a first.
	direct := Reconcile(nil, "ws", []Entry{c, b, a})
	if !Equal(direct, second) {
		t.Error("final lockfile should not depend on invocation order")
	}
}

func TestReconcileMovedSourceReplacesByName(t *testing.T) {
	prev := &Lockfile{Name: "ws", Bundles: []Entry{dirEntry("x", "old-path", "blake3:1")}}
	got := Reconcile(prev, "ws", []Entry{dirEntry("x", "new-path", "blake3:1")})
	if len(got.Bundles) != 1 || got.Bundles[0].Source.Path != "new-path" {
		t.Errorf("bundles = %+v, want one entry at new-path", got.Bundles)
	}
	if errs := Validate(got); len(errs) != 0 {
		t.Errorf("reconciled lockfile invalid: %v", errs)
	}
}

func TestRemove(t *testing.T) {
	lf := &Lockfile{Bundles: []Entry{dirEntry("a", "a", "h"), dirEntry("b", "b", "h"), dirEntry("c", "c", "h")}}
	lf.Remove(map[string]bool{"b": true})
	if names(lf) != "a,c" {
		t.Errorf("after Remove = %s", names(lf))
	}
}
