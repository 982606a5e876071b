package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/bianoble/agpm/internal/apperr"
	"github.com/bianoble/agpm/internal/config"
	"github.com/bianoble/agpm/internal/digest"
	"github.com/bianoble/agpm/internal/index"
	"github.com/bianoble/agpm/internal/lock"
	"github.com/bianoble/agpm/internal/manifest"
	"github.com/bianoble/agpm/internal/merge"
	"github.com/bianoble/agpm/internal/resolve"
	"github.com/bianoble/agpm/internal/resource"
	"github.com/bianoble/agpm/internal/source"
	"github.com/bianoble/agpm/internal/target"
	"github.com/bianoble/agpm/internal/workspace"
)

// InstallEngine resolves bundles and installs their resources into a
// workspace.
type InstallEngine struct {
	Fetcher   source.Fetcher
	Platforms *target.PlatformMap
	Merger    merge.Merger
	Config    *config.Config
	Logger    *slog.Logger
}

// InstallOptions configures an install operation.
type InstallOptions struct {
	Source    string   // bundle to add to the manifest; empty installs the manifest
	Platforms []string // empty falls back to config, then to what is installed or detected
	Frozen    bool     // install exactly the lockfile; fail if it would change
	DryRun    bool
	Update    bool // re-resolve refs instead of reusing locked commits
	Force     bool // overwrite files edited since install
}

// workspaceRoot is the identity local manifest paths are relative to.
var workspaceRoot = source.Identity{Kind: source.KindDir, Path: "."}

// Install resolves the manifest (plus opts.Source), reconciles the
// lockfile, and installs every bundle's resources for each platform. Files
// are written only after the whole plan is computed; a write failure rolls
// back what was written and leaves the state files untouched.
func (e *InstallEngine) Install(ctx context.Context, ws *workspace.Workspace, opts InstallOptions) (*InstallReport, error) {
	log := e.logger()

	if opts.Frozen && !ws.HasLock() {
		return nil, apperr.WithPath(apperr.KindLockfileMissing,
			"--frozen needs an existing lockfile; run install without --frozen first", ws.LockPath, nil)
	}

	platforms, err := e.platforms(ws, opts.Platforms)
	if err != nil {
		return nil, err
	}

	roots, requested, err := e.roots(ws.Manifest, opts.Source)
	if err != nil {
		return nil, err
	}

	resolver := &resolve.Resolver{
		Fetcher: e.Fetcher,
		Pins:    pinsFor(ws.Lock, opts),
		Logger:  log,
	}
	bundles, err := resolver.Resolve(ctx, roots)
	if err != nil {
		return nil, err
	}

	if opts.Frozen {
		if err := verifyLocked(ws.Lock, bundles); err != nil {
			return nil, err
		}
	}

	entries := make([]lock.Entry, len(bundles))
	for i, b := range bundles {
		entries[i] = b.LockEntry()
	}
	next := lock.Reconcile(ws.Lock, ws.Name, entries)
	changed := ws.Lock == nil || !lock.Equal(ws.Lock, next)
	if opts.Frozen && changed {
		return nil, apperr.WithPath(apperr.KindLockfileOutdated,
			"lockfile is out of date with agpm.yaml; run install without --frozen", ws.LockPath, nil)
	}

	m := cloneManifest(ws.Manifest)
	if requested != nil {
		for _, b := range bundles {
			if b.Identity.Equal(requested.Identity) {
				m.Upsert(manifest.DependencyFor(b.Name, *requested))
				break
			}
		}
	}

	report := &InstallReport{
		Bundles:     summarize(ws.Lock, bundles, roots),
		Platforms:   platforms,
		LockChanged: changed,
		DryRun:      opts.DryRun,
	}

	sets := make([]resource.Set, len(bundles))
	for i, b := range bundles {
		sets[i] = resource.Set{Bundle: b.Name, Resources: b.Resources}
	}
	report.Conflicts = resource.DetectConflicts(sets)
	for _, c := range report.Conflicts {
		log.Debug("resource conflict", "path", c.Path, "first", c.First, "winner", c.Second)
	}

	p, ix, err := e.plan(ws, bundles, platforms, opts.Force)
	if err != nil {
		return nil, err
	}
	report.Files = p.actions()
	for _, f := range report.Files {
		if f.Action == ActionSkipModified {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s was modified outside agpm; skipped (use --force to overwrite)", f.Path))
		}
	}

	if opts.DryRun {
		return report, nil
	}

	if err := p.apply(); err != nil {
		return nil, err
	}
	ws.Index = ix
	if opts.Frozen {
		// The lockfile already matches; leave its bytes alone.
		if err := ws.SaveIndex(); err != nil {
			return nil, err
		}
	} else {
		ws.Manifest = m
		ws.Lock = next
		if err := ws.Save(); err != nil {
			return nil, err
		}
	}

	log.Info("install complete", "bundles", len(bundles), "files", len(report.Files))
	return report, nil
}

// plan decides every location's content. Bundles are applied in post-order,
// so for non-mergeable resources the later bundle wins and takes over the
// location's claim.
func (e *InstallEngine) plan(ws *workspace.Workspace, bundles []*resolve.Bundle, platforms []string, force bool) (*plan, *index.Index, error) {
	p := newPlan(ws.Root, ws.Index)
	ix := ws.Index.Clone()
	for _, b := range bundles {
		ix.Ensure(b.Name)
	}

	provided := make(map[string]map[string]bool, len(bundles))
	for _, b := range bundles {
		entry := ix.Get(b.Name)
		locs := make(map[string]bool)
		provided[b.Name] = locs

		for _, r := range b.Resources {
			targets, err := e.targets(r, platforms)
			if err != nil {
				return nil, nil, err
			}

			var data []byte
			for _, loc := range targets {
				locs[loc] = true
				f, err := p.load(loc)
				if err != nil {
					return nil, nil, err
				}
				if f.skipped {
					keepClaim(p, entry, r.Path, f)
					continue
				}
				if data == nil {
					if data, err = os.ReadFile(filepath.Join(b.Root, filepath.FromSlash(r.Path))); err != nil {
						return nil, nil, apperr.FS("reading bundle resource", r.Path, err)
					}
				}

				strategy := merge.StrategyFor(e.Config, r)
				mergeable := r.Mergeable() && strategy != merge.Replace
				if blocked(f, mergeable, data) && !force {
					p.skip(f, b.Name)
					keepClaim(p, entry, r.Path, f)
					e.logger().Warn("skipping modified file", "path", loc, "bundle", b.Name)
					continue
				}

				if mergeable {
					incoming := string(data)
					if strategy == merge.Composite {
						incoming = merge.Section(b.Name, incoming)
					}
					out, err := e.Merger.Merge(string(f.content), incoming, strategy)
					if err != nil {
						return nil, nil, fmt.Errorf("merging %s from %s into %s: %w", r.Path, b.Name, loc, err)
					}
					p.write(f, []byte(out), b.Name, f.existed || f.touched)
					if f.unindexed {
						ix.Adopt(loc)
					}
				} else {
					for _, owner := range ix.Owners(loc) {
						if owner != b.Name {
							ix.Get(owner).Release(loc)
						}
					}
					p.write(f, data, b.Name, false)
				}
				entry.Claim(r.Path, loc, "")
			}
		}
	}

	if err := e.releaseStale(p, ix, bundles, provided, force); err != nil {
		return nil, nil, err
	}

	for _, f := range p.files {
		if f.touched && f.exists {
			ix.Rehash(f.path, digest.Bytes(f.content))
		}
	}
	return p, ix, nil
}

// releaseStale handles locations a bundle installed before but no longer
// provides: the claim is dropped, and the file is removed unless another
// bundle still claims it.
func (e *InstallEngine) releaseStale(p *plan, ix *index.Index, bundles []*resolve.Bundle, provided map[string]map[string]bool, force bool) error {
	for _, b := range bundles {
		before := p.installed.Get(b.Name)
		if before == nil {
			continue
		}
		entry := ix.Get(b.Name)
		for _, loc := range before.Locations() {
			if provided[b.Name][loc] {
				continue
			}
			entry.Release(loc)
			f, err := p.load(loc)
			if err != nil {
				return err
			}
			if len(ix.Owners(loc)) > 0 || ix.IsAdopted(loc) {
				if stripped, ok := stripSections(f.content, map[string]bool{b.Name: true}); ok && f.exists && !f.skipped {
					p.write(f, stripped, b.Name, true)
				}
				if len(ix.Owners(loc)) == 0 {
					ix.Disown(loc)
				}
				continue
			}
			if !f.exists || f.touched {
				continue
			}
			if f.modified && !force {
				p.skip(f, b.Name)
				continue
			}
			p.remove(f, b.Name)
		}
	}
	return nil
}

// keepClaim records a location the bundle provides but left alone because
// the user edited it. The recorded hash stays the one agpm last wrote, so
// the edit is still detected later.
func keepClaim(p *plan, entry *index.Bundle, resource string, f *vfile) {
	if !f.modified {
		return
	}
	h, _ := p.installed.InstalledHash(f.path)
	entry.Claim(resource, f.path, h)
}

// blocked reports whether writing to f would clobber user content: the
// file was edited since agpm installed it, or it was never installed by
// agpm and differs from what would replace it.
func blocked(f *vfile, mergeable bool, data []byte) bool {
	if !f.existed || f.touched {
		return false
	}
	if f.modified {
		return true
	}
	return f.unindexed && !mergeable && !bytes.Equal(f.original, data)
}

// targets returns the distinct locations a resource installs to. Root files
// go to the workspace root once.
func (e *InstallEngine) targets(r resource.Resource, platforms []string) ([]string, error) {
	if r.Type.IsRootFile() {
		platforms = platforms[:1]
	}
	var out []string
	for _, pl := range platforms {
		loc, err := e.Platforms.TargetPath(pl, r.Path, r.Type)
		if err != nil {
			return nil, apperr.WithPath(apperr.KindPathEscape, "cannot install resource", r.Path, err)
		}
		if !slices.Contains(out, loc) {
			out = append(out, loc)
		}
	}
	return out, nil
}

// platforms picks the target platforms: explicit request, then config, then
// the platforms already installed to, then the ones detected on disk.
func (e *InstallEngine) platforms(ws *workspace.Workspace, requested []string) ([]string, error) {
	list := requested
	if len(list) == 0 && e.Config != nil {
		list = e.Config.Platforms
	}
	if len(list) == 0 {
		var locs []string
		for _, b := range ws.Index.Bundles {
			locs = append(locs, b.Locations()...)
		}
		list = e.Platforms.Installed(locs)
	}
	if len(list) == 0 {
		list = e.Platforms.Detect(ws.Root)
	}
	if len(list) == 0 {
		return nil, apperr.Newf(apperr.KindInvalidManifest,
			"no target platforms: pass --platform, set platforms in %s, or create a platform directory such as .claude", config.FileName)
	}

	out := slices.Clone(list)
	slices.Sort(out)
	out = slices.Compact(out)
	for _, name := range out {
		if _, err := e.Platforms.Get(name); err != nil {
			return nil, apperr.New(apperr.KindInvalidManifest, "invalid platform", err)
		}
	}
	return out, nil
}

// roots returns the references to resolve: every manifest entry, with the
// requested source added or replacing the entry for the same identity.
func (e *InstallEngine) roots(m *manifest.Manifest, raw string) ([]source.Reference, *source.Reference, error) {
	refs, err := m.References()
	if err != nil {
		return nil, nil, apperr.New(apperr.KindInvalidManifest, "invalid workspace manifest", err)
	}
	roots := make([]source.Reference, 0, len(refs)+1)
	for _, r := range refs {
		rel, err := r.Relative(workspaceRoot, "")
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, rel)
	}
	if raw == "" {
		return roots, nil, nil
	}

	ref, err := source.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	if ref, err = ref.Relative(workspaceRoot, ""); err != nil {
		return nil, nil, err
	}
	i := slices.IndexFunc(roots, func(r source.Reference) bool { return r.Identity.Equal(ref.Identity) })
	if i >= 0 {
		roots[i] = ref
	} else {
		roots = append(roots, ref)
	}
	return roots, &ref, nil
}

func (e *InstallEngine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// pinsFor reuses locked commits. Frozen installs always use them; normal
// installs only while the requested ref is unchanged; --update never does.
func pinsFor(prev *lock.Lockfile, opts InstallOptions) resolve.PinFunc {
	if prev == nil || (opts.Update && !opts.Frozen) {
		return nil
	}
	return func(id source.Identity, ref string) string {
		i := prev.FindIdentity(id)
		if i < 0 {
			return ""
		}
		s := prev.Bundles[i].Source
		if opts.Frozen || s.Ref == ref {
			return s.SHA
		}
		return ""
	}
}

// verifyLocked checks that every bundle fetched at its locked pin still
// has the locked content hash.
func verifyLocked(prev *lock.Lockfile, bundles []*resolve.Bundle) error {
	for _, b := range bundles {
		i := prev.FindIdentity(b.Identity)
		if i < 0 {
			return apperr.Newf(apperr.KindLockfileOutdated,
				"bundle '%s' (%s) is not in the lockfile; run install without --frozen", b.Name, b.Identity)
		}
		if want := prev.Bundles[i].Source.Hash; want != b.Hash {
			return apperr.Newf(apperr.KindHashMismatch,
				"bundle '%s' content does not match the lockfile: locked %s, found %s",
				b.Name, digest.Short(want), digest.Short(b.Hash))
		}
	}
	return nil
}

func summarize(prev *lock.Lockfile, bundles []*resolve.Bundle, roots []source.Reference) []BundleSummary {
	out := make([]BundleSummary, len(bundles))
	for i, b := range bundles {
		s := BundleSummary{
			Name:   b.Name,
			Source: b.Identity.String(),
			Ref:    b.Ref,
			SHA:    b.SHA,
			Hash:   b.Hash,
			Files:  len(b.Resources),
			Direct: slices.ContainsFunc(roots, func(r source.Reference) bool { return r.Identity.Equal(b.Identity) }),
			State:  BundleAdded,
		}
		if prev != nil {
			if j := prev.FindIdentity(b.Identity); j >= 0 {
				old := prev.Bundles[j].Source
				s.State = BundleUpdated
				if old.SHA == b.SHA && old.Hash == b.Hash {
					s.State = BundleUnchanged
				}
			}
		}
		out[i] = s
	}
	return out
}

func cloneManifest(m *manifest.Manifest) *manifest.Manifest {
	c := *m
	c.Bundles = slices.Clone(m.Bundles)
	return &c
}
