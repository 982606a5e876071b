// Package resolve walks the bundle dependency graph from a set of root
// references and returns every reachable bundle in post-order.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/bianoble/agpm/internal/apperr"
	"github.com/bianoble/agpm/internal/lock"
	"github.com/bianoble/agpm/internal/manifest"
	"github.com/bianoble/agpm/internal/resource"
	"github.com/bianoble/agpm/internal/source"
)

// Bundle is one resolved node of the graph.
type Bundle struct {
	Name         string
	Identity     source.Identity
	Ref          string
	SHA          string // git only; always the concrete commit
	Hash         string // tree hash of Resources
	Root         string // local directory holding the bundle's files
	Resources    []resource.Resource
	Dependencies []string // names of direct dependencies, declaration order
	Manifest     *manifest.Manifest
}

// LockEntry renders the bundle as a lockfile entry.
func (b *Bundle) LockEntry() lock.Entry {
	return lock.Entry{
		Name:         b.Name,
		Source:       lock.SourceFor(b.Identity, b.Ref, b.SHA, b.Hash),
		Files:        resource.Paths(b.Resources),
		Dependencies: append([]string(nil), b.Dependencies...),
	}
}

// PinFunc returns the commit to fetch an identity at, or "" to resolve the
// ref afresh.
type PinFunc func(id source.Identity, ref string) string

// Resolver resolves bundle graphs.
type Resolver struct {
	Fetcher source.Fetcher
	Pins    PinFunc
	Logger  *slog.Logger
}

// edge is a dependency waiting to be visited.
type edge struct {
	ref source.Reference
	pin string // inherited commit for same-repository dependencies
}

// frame is a bundle on the visiting stack.
type frame struct {
	bundle *Bundle
	deps   []edge
	next   int
}

// Resolve fetches every bundle reachable from roots. The result is in
// post-order: each bundle after all of its dependencies, siblings in
// declaration order, every identity exactly once. Revisiting a bundle that
// is still being visited fails with the full cycle chain.
func (r *Resolver) Resolve(ctx context.Context, roots []source.Reference) ([]*Bundle, error) {
	var (
		out     []*Bundle
		done    = make(map[string]*Bundle)
		onStack = make(map[string]int)
		names   = make(map[string]string)
		stack   []*frame
	)

	push := func(e edge, parent *Bundle) error {
		b, deps, err := r.visit(ctx, e, parent)
		if err != nil {
			return err
		}
		key := b.Identity.Key()
		if other, ok := names[b.Name]; ok && other != key {
			return apperr.Newf(apperr.KindInvalidManifest,
				"bundle name '%s' is used by both %s and %s", b.Name, other, key)
		}
		names[b.Name] = key
		onStack[key] = len(stack)
		stack = append(stack, &frame{bundle: b, deps: deps})
		return nil
	}

	for _, root := range roots {
		if _, ok := done[root.Identity.Key()]; ok {
			continue
		}
		if err := push(edge{ref: root}, nil); err != nil {
			return nil, err
		}

		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			top := stack[len(stack)-1]

			if top.next < len(top.deps) {
				e := top.deps[top.next]
				top.next++
				key := e.ref.Identity.Key()

				if at, ok := onStack[key]; ok {
					chain := make([]string, 0, len(stack)-at+1)
					for _, f := range stack[at:] {
						chain = append(chain, f.bundle.Name)
					}
					chain = append(chain, stack[at].bundle.Name)
					return nil, apperr.Cycle(chain)
				}
				if d, ok := done[key]; ok {
					top.bundle.Dependencies = append(top.bundle.Dependencies, d.Name)
					continue
				}
				if err := push(e, top.bundle); err != nil {
					return nil, err
				}
				continue
			}

			stack = stack[:len(stack)-1]
			key := top.bundle.Identity.Key()
			delete(onStack, key)
			if err := r.enumerate(ctx, top.bundle); err != nil {
				return nil, err
			}
			done[key] = top.bundle
			out = append(out, top.bundle)
			if len(stack) > 0 {
				parent := stack[len(stack)-1].bundle
				parent.Dependencies = append(parent.Dependencies, top.bundle.Name)
			}
			r.logger().Debug("resolved bundle", "name", top.bundle.Name, "source", top.bundle.Identity.Key(), "sha", top.bundle.SHA)
		}
	}
	return out, nil
}

// visit fetches a bundle and reads its declared dependencies.
func (r *Resolver) visit(ctx context.Context, e edge, parent *Bundle) (*Bundle, []edge, error) {
	pin := e.pin
	if pin == "" && r.Pins != nil {
		pin = r.Pins(e.ref.Identity, e.ref.Ref)
	}

	r.logger().Debug("fetching bundle", "source", e.ref.Identity.Key(), "ref", e.ref.Ref, "pin", pin)
	fetched, err := r.Fetcher.Fetch(ctx, e.ref, pin)
	if err != nil {
		if parent != nil {
			return nil, nil, apperr.New(apperr.KindBundleNotFound,
				fmt.Sprintf("dependency %s of %s not found", e.ref.Identity, parent.Name), err)
		}
		return nil, nil, err
	}

	m, err := manifest.LoadDir(fetched.Root)
	if err != nil {
		return nil, nil, err
	}

	b := &Bundle{
		Name:     bundleName(m, e.ref),
		Identity: e.ref.Identity,
		Ref:      e.ref.Ref,
		SHA:      fetched.SHA,
		Root:     fetched.Root,
		Manifest: m,
	}

	refs, err := m.References()
	if err != nil {
		return nil, nil, fmt.Errorf("bundle %s: %w", b.Name, err)
	}
	deps := make([]edge, 0, len(refs))
	for _, dep := range refs {
		sameRepo := dep.Kind == source.KindDir && b.Identity.Kind == source.KindGit
		rel, err := dep.Relative(b.Identity, b.Ref)
		if err != nil {
			return nil, nil, err
		}
		next := edge{ref: rel}
		if sameRepo {
			next.pin = b.SHA
		}
		deps = append(deps, next)
	}
	return b, deps, nil
}

func (r *Resolver) enumerate(ctx context.Context, b *Bundle) error {
	resources, err := resource.Enumerate(ctx, b.Root)
	if err != nil {
		return apperr.New(apperr.KindIO, fmt.Sprintf("reading bundle %s", b.Name), err)
	}
	b.Resources = resources
	b.Hash = resource.TreeHash(resources)
	return nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// bundleName prefers the bundle's own manifest, then the reference's hint,
// then the last element of its location.
func bundleName(m *manifest.Manifest, ref source.Reference) string {
	if m != nil && m.Name != "" {
		return m.Name
	}
	if ref.Name != "" && ref.Name != "." {
		return ref.Name
	}
	switch ref.Kind {
	case source.KindGit:
		if ref.Subpath != "" {
			return path.Base(ref.Subpath)
		}
		return strings.TrimSuffix(path.Base(ref.URL), ".git")
	default:
		return path.Base(ref.Path)
	}
}
