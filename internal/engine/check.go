package engine

import (
	"context"

	"github.com/bianoble/agpm/internal/digest"
	"github.com/bianoble/agpm/internal/sandbox"
	"github.com/bianoble/agpm/internal/workspace"
)

// CheckEngine verifies that installed files match what agpm wrote.
type CheckEngine struct{}

// Check compares every indexed location against its recorded hash.
// Returns Clean=true if everything matches.
func (e *CheckEngine) Check(ctx context.Context, ws *workspace.Workspace) (*CheckReport, error) {
	result := &CheckReport{Clean: true}
	seen := make(map[string]bool)

	for _, b := range ws.Index.Bundles {
		for _, loc := range b.Locations() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if seen[loc] {
				continue
			}
			seen[loc] = true

			content, exists, err := sandbox.ReadFile(ws.Root, loc)
			if err != nil {
				return nil, err
			}
			if !exists {
				result.Missing = append(result.Missing, loc)
				result.Clean = false
				continue
			}

			expected := b.Hashes[loc]
			if actual := digest.Bytes(content); expected != "" && actual != expected {
				result.Drifted = append(result.Drifted, DriftEntry{
					Path:     loc,
					Bundle:   b.Name,
					Expected: expected,
					Actual:   actual,
				})
				result.Clean = false
			}
		}
	}

	return result, nil
}
