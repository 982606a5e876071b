package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bianoble/agpm/internal/apperr"
	"github.com/bianoble/agpm/internal/digest"
	"github.com/bianoble/agpm/internal/index"
	"github.com/bianoble/agpm/internal/lock"
	"github.com/bianoble/agpm/internal/workspace"
)

// UninstallEngine removes bundles and the files only they installed.
type UninstallEngine struct {
	Logger *slog.Logger
}

// UninstallOptions configures an uninstall operation.
type UninstallOptions struct {
	Target      string // bundle name, or "@scope" / "@scope/" for every bundle in a scope
	AllMatching bool   // treat Target as a scope prefix
	DryRun      bool
	Force       bool // suppress dependent warnings
}

// Uninstall removes the target bundles plus every dependency that no
// retained bundle still needs. A file is deleted only when no retained
// bundle claims its location in the index.
func (e *UninstallEngine) Uninstall(ctx context.Context, ws *workspace.Workspace, opts UninstallOptions) (*UninstallReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lf := ws.LockOrEmpty()
	report := &UninstallReport{DryRun: opts.DryRun}

	targets, scope := matchTargets(lf, ws.Index, opts.Target, opts.AllMatching)
	if len(targets) == 0 {
		if scope {
			report.Message = fmt.Sprintf("no installed bundles match %s", strings.TrimSuffix(opts.Target, "/"))
			return report, nil
		}
		return nil, apperr.Newf(apperr.KindBundleNotFound, "bundle '%s' is not installed", opts.Target)
	}

	cascade := cascadeRemoval(lf, targets, directNames(ws))

	removing := make(map[string]bool, len(targets)+len(cascade))
	for _, n := range targets {
		removing[n] = true
	}
	for _, n := range cascade {
		removing[n] = true
	}
	report.Targets = targets
	report.Cascaded = cascade

	if !opts.Force {
		report.Warnings = append(report.Warnings, dependentWarnings(lf, targets, removing)...)
	}

	return report, e.remove(ws, removing, opts.DryRun, report)
}

// remove deletes the files of the named bundles and drops them from every
// state file. It is shared by uninstall and prune. Files the user edited
// are deleted too; a user file agpm merged into keeps the user's part.
func (e *UninstallEngine) remove(ws *workspace.Workspace, removing map[string]bool, dryRun bool, report *UninstallReport) error {
	p := newPlan(ws.Root, ws.Index)
	ix := ws.Index.Clone()

	var locs []string
	for _, b := range ix.Bundles {
		if removing[b.Name] {
			locs = append(locs, b.Locations()...)
		}
	}
	slices.Sort(locs)
	locs = slices.Compact(locs)
	ix.Remove(removing)

	for _, loc := range locs {
		f, err := p.load(loc)
		if err != nil {
			return err
		}
		if !f.exists {
			continue
		}
		if owners := ix.Owners(loc); len(owners) > 0 {
			if out, ok := stripSections(f.content, removing); ok {
				p.write(f, out, owners[0], true)
				ix.Rehash(loc, digest.Bytes(f.content))
			} else {
				report.Files = append(report.Files, FileAction{Path: loc, Action: ActionKeep, Bundle: owners[0]})
			}
			continue
		}
		if ix.IsAdopted(loc) {
			ix.Disown(loc)
			if out, ok := stripSections(f.content, removing); ok {
				p.write(f, out, "", true)
			} else {
				report.Files = append(report.Files, FileAction{Path: loc, Action: ActionKeep})
			}
			continue
		}
		if f.modified {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s was modified since it was installed; removing it anyway", loc))
		}
		p.remove(f, "")
	}
	report.Files = append(report.Files, p.actions()...)
	slices.SortStableFunc(report.Files, func(a, b FileAction) int { return strings.Compare(a.Path, b.Path) })

	if dryRun {
		return nil
	}
	if err := p.apply(); err != nil {
		return err
	}

	lf := ws.LockOrEmpty()
	for _, entry := range lf.Bundles {
		if !removing[entry.Name] {
			continue
		}
		if i := ws.Manifest.FindIdentity(entry.Source.Identity()); i >= 0 {
			ws.Manifest.Bundles = slices.Delete(ws.Manifest.Bundles, i, i+1)
		}
	}
	for name := range removing {
		ws.Manifest.Remove(name)
	}
	lf.Remove(removing)
	ws.Lock = lf
	ws.Index = ix
	if err := ws.Save(); err != nil {
		return err
	}
	e.logger().Info("removed bundles", "count", len(removing), "files", report.Count(ActionRemove))
	return nil
}

func (e *UninstallEngine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// matchTargets resolves the uninstall argument to bundle names in lock
// order. A scope ("@acme", "@acme/", or any name with AllMatching) matches
// every bundle whose name starts with "<scope>/". Other names must match
// exactly, except that "@author/scope" with no exact match is tried as a
// scope before giving up.
func matchTargets(lf *lock.Lockfile, ix *index.Index, arg string, all bool) ([]string, bool) {
	names := make([]string, 0, len(lf.Bundles))
	for _, e := range lf.Bundles {
		names = append(names, e.Name)
	}
	for _, b := range ix.Bundles {
		if !slices.Contains(names, b.Name) {
			names = append(names, b.Name)
		}
	}

	scope := all || strings.HasSuffix(arg, "/") ||
		(strings.HasPrefix(arg, "@") && !strings.Contains(arg[1:], "/"))
	if !scope {
		if slices.Contains(names, arg) {
			return []string{arg}, false
		}
		if !strings.HasPrefix(arg, "@") {
			return nil, false
		}
		if out := withPrefix(names, arg+"/"); len(out) > 0 {
			return out, true
		}
		return nil, false
	}
	return withPrefix(names, strings.TrimSuffix(arg, "/")+"/"), true
}

func withPrefix(names []string, prefix string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}

// cascadeRemoval returns, in lock order, the dependencies of targets that
// nothing retained still needs. Bundles listed directly in the manifest are
// retained unless targeted, and so is everything reachable from a retained
// bundle without passing through a target.
func cascadeRemoval(lf *lock.Lockfile, targets []string, direct map[string]bool) []string {
	deps := make(map[string][]string, len(lf.Bundles))
	for _, e := range lf.Bundles {
		deps[e.Name] = e.Dependencies
	}
	isTarget := make(map[string]bool, len(targets))
	for _, t := range targets {
		isTarget[t] = true
	}

	closure := make(map[string]bool)
	var reach func(n string)
	reach = func(n string) {
		for _, d := range deps[n] {
			if !closure[d] && !isTarget[d] {
				closure[d] = true
				reach(d)
			}
		}
	}
	for _, t := range targets {
		reach(t)
	}

	needed := make(map[string]bool)
	var keep func(n string)
	keep = func(n string) {
		if needed[n] || isTarget[n] {
			return
		}
		needed[n] = true
		for _, d := range deps[n] {
			keep(d)
		}
	}
	for _, e := range lf.Bundles {
		if isTarget[e.Name] {
			continue
		}
		if !closure[e.Name] || direct[e.Name] {
			keep(e.Name)
		}
	}

	var out []string
	for _, e := range lf.Bundles {
		if closure[e.Name] && !needed[e.Name] {
			out = append(out, e.Name)
		}
	}
	return out
}

// directNames returns the names of locked bundles the manifest lists,
// matched by name or by source identity.
func directNames(ws *workspace.Workspace) map[string]bool {
	direct := make(map[string]bool, len(ws.Manifest.Bundles))
	for _, d := range ws.Manifest.Bundles {
		direct[d.Name] = true
	}
	for _, e := range ws.LockOrEmpty().Bundles {
		if ws.Manifest.FindIdentity(e.Source.Identity()) >= 0 {
			direct[e.Name] = true
		}
	}
	return direct
}

// dependentWarnings names retained bundles that depend on a target.
func dependentWarnings(lf *lock.Lockfile, targets []string, removing map[string]bool) []string {
	var out []string
	for _, t := range targets {
		var dependents []string
		for _, e := range lf.Bundles {
			if !removing[e.Name] && slices.Contains(e.Dependencies, t) {
				dependents = append(dependents, e.Name)
			}
		}
		if len(dependents) > 0 {
			out = append(out, fmt.Sprintf("%s is still required by %s", t, strings.Join(dependents, ", ")))
		}
	}
	return out
}
