package resource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bianoble/agpm/internal/digest"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Type
	}{
		{"commands/review.md", Command},
		{"commands/nested/deep.md", Command},
		{"rules/go.md", Rule},
		{"agents/planner.md", Agent},
		{"skills/pdf/SKILL.md", Skill},
		{"docs/guide.md", AgentDoc},
		{"mcp.json", McpConfig},
		{"config/mcp.json", McpConfig},
		{"AGENTS.md", AgentDoc},
		{"nested/CLAUDE.md", AgentDoc},
		{".gitignore", RootFile},
		{".aiignore", RootFile},
		{"sub/.gitignore", Other},
		{"notes.txt", Other},
		{"commands", Other},
	}
	for _, tt := range tests {
		if got := Classify(tt.path); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestTypePredicates(t *testing.T) {
	for _, typ := range []Type{Command, Rule, Agent, Skill, McpConfig, RootFile, AgentDoc, Other} {
		wantMerge := typ == McpConfig || typ == AgentDoc
		if typ.IsMergeable() != wantMerge {
			t.Errorf("%s.IsMergeable() = %v", typ, typ.IsMergeable())
		}
		if typ.IsRootFile() != (typ == RootFile) {
			t.Errorf("%s.IsRootFile() = %v", typ, typ.IsRootFile())
		}
	}
}

func TestBinaryNeverMergeable(t *testing.T) {
	r := Resource{Path: "docs/diagram.png", Type: Classify("docs/diagram.png"), Binary: IsBinary("docs/diagram.png")}
	if r.Mergeable() {
		t.Error("binary doc must be copied, not merged")
	}
	if !IsBinary("fonts/X.WOFF2") {
		t.Error("extension check should be case-insensitive")
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"agpm.yaml":           "name: x\n",
		"README.md":           "readme",
		"LICENSE.txt":         "mit",
		"commands/b.md":       "b",
		"commands/a.md":       "a",
		"rules/go.md":         "go",
		"mcp.json":            "{}",
		".gitignore":          "*.log\n",
		".DS_Store":           "junk",
		".git/config":         "[core]",
		"_drafts/wip.md":      "wip",
		"commands/_hidden.md": "h",
		"docs/README.md":      "nested readme is a resource",
	})

	got, err := Enumerate(context.Background(), root)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	var paths []string
	for _, r := range got {
		paths = append(paths, r.Path)
	}
	want := ".gitignore,commands/a.md,commands/b.md,docs/README.md,mcp.json,rules/go.md"
	if strings.Join(paths, ",") != want {
		t.Errorf("paths = %s\nwant    %s", strings.Join(paths, ","), want)
	}

	for _, r := range got {
		if r.Path == "commands/a.md" {
			if r.Hash != digest.Bytes([]byte("a")) {
				t.Errorf("hash = %s", r.Hash)
			}
			if r.Type != Command {
				t.Errorf("type = %s", r.Type)
			}
		}
	}
}

func TestEnumerateDeterministic(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	for i := range 50 {
		files[filepath.ToSlash(filepath.Join("commands", string(rune('a'+i%26))+strings.Repeat("x", i)+".md"))] = strings.Repeat("y", i)
	}
	writeTree(t, root, files)

	first, err := Enumerate(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		again, err := Enumerate(context.Background(), root)
		if err != nil {
			t.Fatal(err)
		}
		if TreeHash(again) != TreeHash(first) || len(again) != len(first) {
			t.Fatal("enumeration not deterministic")
		}
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("entry %d differs: %+v vs %+v", i, first[i], again[i])
			}
		}
	}
}

func TestEnumerateCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"commands/a.md": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Enumerate(ctx, root); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestTreeHashChangesWithContent(t *testing.T) {
	a := []Resource{{Path: "x", Hash: "h1"}}
	b := []Resource{{Path: "x", Hash: "h2"}}
	if TreeHash(a) == TreeHash(b) {
		t.Error("tree hash should depend on file hashes")
	}
}

func TestDetectConflicts(t *testing.T) {
	sets := []Set{
		{Bundle: "first", Resources: []Resource{{Path: "commands/shared.md"}, {Path: "commands/one.md"}}},
		{Bundle: "second", Resources: []Resource{{Path: "commands/shared.md"}, {Path: "commands/two.md"}}},
		{Bundle: "third", Resources: []Resource{{Path: "commands/shared.md"}}},
	}

	got := DetectConflicts(sets)
	if len(got) != 2 {
		t.Fatalf("conflicts = %+v, want 2", got)
	}
	if got[0] != (Conflict{Path: "commands/shared.md", First: "first", Second: "second"}) {
		t.Errorf("conflict[0] = %+v", got[0])
	}
	if got[1] != (Conflict{Path: "commands/shared.md", First: "first", Second: "third"}) {
		t.Errorf("conflict[1] = %+v", got[1])
	}
}

func TestDetectConflictsNone(t *testing.T) {
	got := DetectConflicts([]Set{
		{Bundle: "a", Resources: []Resource{{Path: "x"}}},
		{Bundle: "b", Resources: []Resource{{Path: "y"}}},
	})
	if len(got) != 0 {
		t.Errorf("conflicts = %+v, want none", got)
	}
}
