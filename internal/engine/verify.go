package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bianoble/agpm/internal/digest"
	"github.com/bianoble/agpm/internal/lock"
	"github.com/bianoble/agpm/internal/resource"
	"github.com/bianoble/agpm/internal/source"
	"github.com/bianoble/agpm/internal/workspace"
)

// VerifyEngine checks whether locked bundles have changed upstream.
type VerifyEngine struct {
	Fetcher source.Fetcher
	Logger  *slog.Logger
}

// Verify re-resolves every locked bundle at its ref, without the locked pin,
// and reports which ones would change on `install --update`. It never
// modifies the workspace.
func (e *VerifyEngine) Verify(ctx context.Context, ws *workspace.Workspace, names []string) (*VerifyReport, error) {
	result := &VerifyReport{}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	heads := make(map[string]string) // url#ref -> sha

	for _, entry := range ws.LockOrEmpty().Bundles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(want) > 0 && !want[entry.Name] {
			continue
		}

		after, err := e.current(ctx, entry, heads)
		if err != nil {
			result.Errors = append(result.Errors, SourceError{Bundle: entry.Name, Err: err})
			continue
		}

		before := entry.Source.Hash
		if entry.Source.Type == string(source.KindGit) {
			before = entry.Source.SHA
		}
		if after != before {
			result.Changed = append(result.Changed, SourceDelta{
				Bundle: entry.Name,
				Ref:    entry.Source.Ref,
				Before: shortPin(before),
				After:  shortPin(after),
			})
		} else {
			result.UpToDate = append(result.UpToDate, entry.Name)
		}
	}

	return result, nil
}

// current returns the commit a git bundle's ref points at now, or the
// content hash of a directory bundle.
func (e *VerifyEngine) current(ctx context.Context, entry lock.Entry, heads map[string]string) (string, error) {
	key := entry.Source.URL + "#" + entry.Source.Ref
	if sha, ok := heads[key]; ok && entry.Source.Type == string(source.KindGit) {
		return sha, nil
	}

	fetched, err := e.Fetcher.Fetch(ctx, entry.Reference(), "")
	if err != nil {
		return "", err
	}
	if entry.Source.Type == string(source.KindGit) {
		heads[key] = fetched.SHA
		e.logger().Debug("resolved upstream", "bundle", entry.Name, "ref", entry.Source.Ref, "sha", fetched.SHA)
		return fetched.SHA, nil
	}

	resources, err := resource.Enumerate(ctx, fetched.Root)
	if err != nil {
		return "", err
	}
	return resource.TreeHash(resources), nil
}

func (e *VerifyEngine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func shortPin(s string) string {
	if strings.HasPrefix(s, digest.Prefix) {
		return digest.Short(s)
	}
	return shortSHA(s)
}
