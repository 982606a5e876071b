package engine

import (
	"context"

	"github.com/bianoble/agpm/internal/digest"
	"github.com/bianoble/agpm/internal/index"
	"github.com/bianoble/agpm/internal/sandbox"
	"github.com/bianoble/agpm/internal/target"
	"github.com/bianoble/agpm/internal/workspace"
)

// StatusEngine computes the state of every locked bundle.
type StatusEngine struct {
	Platforms *target.PlatformMap
}

// BundleStatus describes the current state of a bundle.
type BundleStatus struct {
	Name      string
	Source    string
	PinnedAt  string
	Direct    bool
	Files     int
	Platforms []string
	State     string // "installed", "modified", "missing", "not-installed"
}

// Status returns the state of all (or named) bundles, in lock order.
func (e *StatusEngine) Status(ctx context.Context, ws *workspace.Workspace, names []string) ([]BundleStatus, error) {
	direct := directNames(ws)
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var statuses []BundleStatus
	for _, entry := range ws.LockOrEmpty().Bundles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(want) > 0 && !want[entry.Name] {
			continue
		}

		s := BundleStatus{
			Name:     entry.Name,
			Source:   entry.Source.Identity().String(),
			PinnedAt: summarizePin(entry.Source.Ref, entry.Source.SHA, entry.Source.Hash),
			Direct:   direct[entry.Name],
			Files:    len(entry.Files),
		}

		b := ws.Index.Get(entry.Name)
		if b == nil || len(b.Enabled) == 0 {
			s.State = "not-installed"
		} else {
			if e.Platforms != nil {
				s.Platforms = e.Platforms.Installed(b.Locations())
			}
			state, err := computeState(ws.Root, b)
			if err != nil {
				return nil, err
			}
			s.State = state
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func computeState(root string, b *index.Bundle) (string, error) {
	anyMissing := false
	anyModified := false

	for _, loc := range b.Locations() {
		content, exists, err := sandbox.ReadFile(root, loc)
		if err != nil {
			return "", err
		}
		if !exists {
			anyMissing = true
			continue
		}
		if h := b.Hashes[loc]; h != "" && h != digest.Bytes(content) {
			anyModified = true
		}
	}

	if anyMissing {
		return "missing", nil
	}
	if anyModified {
		return "modified", nil
	}
	return "installed", nil
}

func summarizePin(ref, sha, hash string) string {
	switch {
	case sha != "" && ref != "":
		return ref + " @ " + shortSHA(sha)
	case sha != "":
		return shortSHA(sha)
	default:
		return digest.Short(hash)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
