package engine

import (
	"context"
	"log/slog"

	"github.com/bianoble/agpm/internal/workspace"
)

// PruneEngine removes bundles that are locked or installed but no longer
// reachable from the workspace manifest.
type PruneEngine struct {
	Logger *slog.Logger
}

// PruneOptions configures a prune operation.
type PruneOptions struct {
	DryRun bool
}

// Prune removes orphaned bundles, e.g. after an entry was deleted from
// agpm.yaml by hand.
func (e *PruneEngine) Prune(ctx context.Context, ws *workspace.Workspace, opts PruneOptions) (*UninstallReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := &UninstallReport{DryRun: opts.DryRun}

	orphans := Orphans(ws)
	if len(orphans) == 0 {
		report.Message = "nothing to prune"
		return report, nil
	}
	report.Cascaded = orphans

	removing := make(map[string]bool, len(orphans))
	for _, n := range orphans {
		removing[n] = true
	}
	u := &UninstallEngine{Logger: e.Logger}
	return report, u.remove(ws, removing, opts.DryRun, report)
}

// Orphans returns, in lock order then index order, every bundle that no
// manifest entry reaches through the lockfile's dependency edges.
func Orphans(ws *workspace.Workspace) []string {
	lf := ws.LockOrEmpty()
	deps := make(map[string][]string, len(lf.Bundles))
	for _, e := range lf.Bundles {
		deps[e.Name] = e.Dependencies
	}

	reachable := make(map[string]bool)
	var visit func(n string)
	visit = func(n string) {
		if reachable[n] {
			return
		}
		reachable[n] = true
		for _, d := range deps[n] {
			visit(d)
		}
	}
	for n := range directNames(ws) {
		visit(n)
	}

	var out []string
	seen := make(map[string]bool)
	for _, e := range lf.Bundles {
		if !reachable[e.Name] && !seen[e.Name] {
			out = append(out, e.Name)
			seen[e.Name] = true
		}
	}
	for _, b := range ws.Index.Bundles {
		if !reachable[b.Name] && !seen[b.Name] {
			out = append(out, b.Name)
			seen[b.Name] = true
		}
	}
	return out
}
