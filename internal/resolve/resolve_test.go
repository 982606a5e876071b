package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bianoble/agpm/internal/apperr"
	"github.com/bianoble/agpm/internal/source"
)

// countingFetcher wraps a Fetcher and records every fetch.
type countingFetcher struct {
	inner source.Fetcher
	calls map[string]int
	pins  map[string]string
}

func (c *countingFetcher) Fetch(ctx context.Context, ref source.Reference, pin string) (*source.Fetched, error) {
	if c.calls == nil {
		c.calls = make(map[string]int)
		c.pins = make(map[string]string)
	}
	c.calls[ref.Identity.Key()]++
	c.pins[ref.Identity.Key()] = pin
	return c.inner.Fetch(ctx, ref, pin)
}

// fakeGit serves git identities from directories under root, keyed by
// subpath, at a fixed commit.
type fakeGit struct {
	root string
	sha  string
}

func (f *fakeGit) Fetch(_ context.Context, ref source.Reference, pin string) (*source.Fetched, error) {
	if ref.Kind == source.KindDir {
		return nil, errors.New("unexpected dir fetch")
	}
	sha := f.sha
	if pin != "" {
		sha = pin
	}
	dir := filepath.Join(f.root, filepath.FromSlash(ref.Subpath))
	if _, err := os.Stat(dir); err != nil {
		return nil, apperr.New(apperr.KindFetchFailed, "fetch failed", err)
	}
	return &source.Fetched{Root: dir, Identity: ref.Identity, SHA: sha}, nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// bundle writes a bundle directory with a manifest naming deps by path.
func bundle(t *testing.T, ws, dir, name string, deps ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("name: " + name + "\n")
	if len(deps) > 0 {
		b.WriteString("bundles:\n")
		for _, d := range deps {
			b.WriteString("  - name: " + filepath.Base(d) + "\n    path: " + d + "\n")
		}
	}
	writeFile(t, ws, dir+"/agpm.yaml", b.String())
	writeFile(t, ws, dir+"/commands/"+name+".md", "# "+name+"\n")
}

func local(t *testing.T, raw string) source.Reference {
	t.Helper()
	ref, err := source.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return ref
}

func names(bundles []*Bundle) string {
	var out []string
	for _, b := range bundles {
		out = append(out, b.Name)
	}
	return strings.Join(out, ",")
}

func newResolver(ws string) (*Resolver, *countingFetcher) {
	f := &countingFetcher{inner: &source.LocalFetcher{WorkspaceRoot: ws}}
	return &Resolver{Fetcher: f}, f
}

func TestResolveChainPostOrder(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "b/a", "a", "../b")
	bundle(t, ws, "b/b", "b", "../c")
	bundle(t, ws, "b/c", "c")

	r, _ := newResolver(ws)
	got, err := r.Resolve(context.Background(), []source.Reference{local(t, "./b/a")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if names(got) != "c,b,a" {
		t.Errorf("order = %s, want c,b,a", names(got))
	}
	if strings.Join(got[2].Dependencies, ",") != "b" || strings.Join(got[1].Dependencies, ",") != "c" {
		t.Errorf("dependencies = %v / %v", got[2].Dependencies, got[1].Dependencies)
	}
	if got[0].Identity.Path != "b/c" {
		t.Errorf("relative dependency path = %q", got[0].Identity.Path)
	}
}

func TestResolveDiamondFetchesOnce(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "x/a", "a", "../b", "../c")
	bundle(t, ws, "x/b", "b", "../d")
	bundle(t, ws, "x/c", "c", "../d")
	bundle(t, ws, "x/d", "d")

	r, f := newResolver(ws)
	got, err := r.Resolve(context.Background(), []source.Reference{local(t, "./x/a")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if names(got) != "d,b,c,a" {
		t.Errorf("order = %s, want d,b,c,a", names(got))
	}
	if n := f.calls["dir:x/d"]; n != 1 {
		t.Errorf("d fetched %d times, want 1", n)
	}
	if strings.Join(got[2].Dependencies, ",") != "d" {
		t.Errorf("c dependencies = %v", got[2].Dependencies)
	}
}

func TestResolveSiblingDeclarationOrder(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "p/root", "root", "../zeta", "../alpha", "../mid")
	bundle(t, ws, "p/zeta", "zeta")
	bundle(t, ws, "p/alpha", "alpha")
	bundle(t, ws, "p/mid", "mid")

	r, _ := newResolver(ws)
	got, err := r.Resolve(context.Background(), []source.Reference{local(t, "./p/root")})
	if err != nil {
		t.Fatal(err)
	}
	if names(got) != "zeta,alpha,mid,root" {
		t.Errorf("order = %s", names(got))
	}
}

func TestResolveMultipleRootsShareNodes(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "r/a", "a", "../shared")
	bundle(t, ws, "r/b", "b", "../shared")
	bundle(t, ws, "r/shared", "shared")

	r, f := newResolver(ws)
	got, err := r.Resolve(context.Background(), []source.Reference{local(t, "./r/a"), local(t, "./r/b"), local(t, "./r/a")})
	if err != nil {
		t.Fatal(err)
	}
	if names(got) != "shared,a,b" {
		t.Errorf("order = %s", names(got))
	}
	if f.calls["dir:r/a"] != 1 {
		t.Errorf("duplicate root fetched %d times", f.calls["dir:r/a"])
	}
}

func TestResolveCycle(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "c/a", "a", "../b")
	bundle(t, ws, "c/b", "b", "../c")
	bundle(t, ws, "c/c", "c", "../a")

	r, _ := newResolver(ws)
	_, err := r.Resolve(context.Background(), []source.Reference{local(t, "./c/a")})
	if !apperr.Is(err, apperr.KindCircularDependency) {
		t.Fatalf("error = %v, want circular dependency", err)
	}
	var ae *apperr.Error
	errors.As(err, &ae)
	if strings.Join(ae.Chain, " -> ") != "a -> b -> c -> a" {
		t.Errorf("chain = %v", ae.Chain)
	}
}

func TestResolveSelfCycle(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "s/a", "a", ".")

	r, _ := newResolver(ws)
	_, err := r.Resolve(context.Background(), []source.Reference{local(t, "./s/a")})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindCircularDependency {
		t.Fatalf("error = %v", err)
	}
	if strings.Join(ae.Chain, " -> ") != "a -> a" {
		t.Errorf("chain = %v", ae.Chain)
	}
}

func TestResolveMissingDependency(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "m/a", "a", "../gone")

	r, _ := newResolver(ws)
	_, err := r.Resolve(context.Background(), []source.Reference{local(t, "./m/a")})
	if !apperr.Is(err, apperr.KindBundleNotFound) {
		t.Fatalf("error = %v, want bundle-not-found", err)
	}
	if !strings.Contains(err.Error(), "of a") {
		t.Errorf("message should name the dependent: %v", err)
	}
}

func TestResolveMissingRootIsFetchFailure(t *testing.T) {
	r, _ := newResolver(t.TempDir())
	_, err := r.Resolve(context.Background(), []source.Reference{local(t, "./nope")})
	if !apperr.Is(err, apperr.KindFetchFailed) {
		t.Errorf("error = %v, want fetch-failed", err)
	}
}

func TestResolveWithoutManifest(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, ws, "plain/rules/go.md", "go")

	r, _ := newResolver(ws)
	got, err := r.Resolve(context.Background(), []source.Reference{local(t, "./plain")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "plain" || len(got[0].Dependencies) != 0 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Hash == "" || len(got[0].Resources) != 1 {
		t.Errorf("resources not enumerated: %+v", got[0])
	}
	entry := got[0].LockEntry()
	if entry.Source.Type != "dir" || entry.Source.Path != "plain" || strings.Join(entry.Files, ",") != "rules/go.md" {
		t.Errorf("lock entry = %+v", entry)
	}
}

func TestResolveDependencyEscapingWorkspace(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "a", "a", "../../outside")

	r, _ := newResolver(ws)
	_, err := r.Resolve(context.Background(), []source.Reference{local(t, "./a")})
	if !apperr.Is(err, apperr.KindPathEscape) {
		t.Errorf("error = %v, want path-escape", err)
	}
}

func TestResolveDuplicateName(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "one", "same")
	bundle(t, ws, "two", "same")

	r, _ := newResolver(ws)
	_, err := r.Resolve(context.Background(), []source.Reference{local(t, "./one"), local(t, "./two")})
	if !apperr.Is(err, apperr.KindInvalidManifest) {
		t.Errorf("error = %v, want invalid-manifest", err)
	}
}

func TestResolveUsesPins(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, repo, "tools/agpm.yaml", "name: tools\nbundles:\n  - name: base\n    path: ../base\n")
	writeFile(t, repo, "tools/commands/t.md", "t")
	writeFile(t, repo, "base/rules/b.md", "b")

	f := &countingFetcher{inner: &fakeGit{root: repo, sha: "1111111111111111111111111111111111111111"}}
	r := &Resolver{
		Fetcher: f,
		Pins: func(id source.Identity, ref string) string {
			if id.Subpath == "tools" && ref == "main" {
				return "2222222222222222222222222222222222222222"
			}
			return ""
		},
	}
	root := source.Reference{
		Identity: source.Identity{Kind: source.KindGit, URL: "https://example.com/org/repo", Subpath: "tools"},
		Ref:      "main",
	}

	got, err := r.Resolve(context.Background(), []source.Reference{root})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if names(got) != "base,tools" {
		t.Fatalf("order = %s", names(got))
	}
	if got[1].SHA != "2222222222222222222222222222222222222222" {
		t.Errorf("root sha = %s, want locked pin", got[1].SHA)
	}
	// A same-repository dependency is fetched at the parent's commit.
	if f.pins["git:https://example.com/org/repo//base"] != got[1].SHA {
		t.Errorf("dependency pin = %q", f.pins["git:https://example.com/org/repo//base"])
	}
	if got[0].Identity.Subpath != "base" || got[0].Ref != "main" {
		t.Errorf("dependency identity = %+v ref %q", got[0].Identity, got[0].Ref)
	}
}

func TestResolveCancelled(t *testing.T) {
	ws := t.TempDir()
	bundle(t, ws, "a", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := newResolver(ws)
	if _, err := r.Resolve(ctx, []source.Reference{local(t, "./a")}); err == nil {
		t.Error("expected error from cancelled context")
	}
}
