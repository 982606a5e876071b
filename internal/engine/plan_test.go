package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bianoble/agpm/internal/index"
)

func TestPlanApplyRollsBack(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "0.md"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	// A regular file where a directory is needed makes the last write fail.
	if err := os.WriteFile(filepath.Join(root, "blocker"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	p := newPlan(root, index.New("ws"))
	for _, loc := range []string{"0.md", "a.md"} {
		f, err := p.load(loc)
		if err != nil {
			t.Fatalf("load %s: %v", loc, err)
		}
		p.write(f, []byte("new "+loc), "bundle", false)
	}
	blocked := &vfile{path: "blocker/b.md"}
	p.files[blocked.path] = blocked
	p.write(blocked, []byte("new"), "bundle", false)

	err := p.apply()
	if err == nil || !strings.Contains(err.Error(), "rolled back") {
		t.Fatalf("apply error = %v, want rollback error", err)
	}
	if data, _ := os.ReadFile(filepath.Join(root, "0.md")); string(data) != "old" {
		t.Errorf("0.md = %q, want original content restored", data)
	}
	if _, err := os.Stat(filepath.Join(root, "a.md")); !os.IsNotExist(err) {
		t.Error("a.md created by the failed apply was not removed")
	}
}

func TestPlanActions(t *testing.T) {
	root := t.TempDir()
	for name, content := range map[string]string{"same.md": "s", "changed.md": "c1", "gone.md": "g"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	p := newPlan(root, index.New("ws"))
	load := func(loc string) *vfile {
		f, err := p.load(loc)
		if err != nil {
			t.Fatal(err)
		}
		return f
	}
	p.write(load("same.md"), []byte("s"), "a", false)
	p.write(load("changed.md"), []byte("c2"), "a", true)
	p.write(load("new.md"), []byte("n"), "a", false)
	p.remove(load("gone.md"), "a")
	p.remove(load("never.md"), "a")
	p.skip(load("skipped.md"), "a")
	load("untouched.md")

	want := map[string]Action{
		"same.md":    ActionUnchanged,
		"changed.md": ActionMerge,
		"new.md":     ActionCreate,
		"gone.md":    ActionRemove,
		"skipped.md": ActionSkipModified,
	}
	got := p.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %+v", got)
	}
	for _, a := range got {
		if want[a.Path] != a.Action {
			t.Errorf("%s: action = %s, want %s", a.Path, a.Action, want[a.Path])
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Path > got[i].Path {
			t.Errorf("actions not sorted: %s before %s", got[i-1].Path, got[i].Path)
		}
	}
}
