package engine

import (
	"github.com/bianoble/agpm/internal/resource"
)

// Action is what an install or uninstall did, or would do, to one location.
type Action string

const (
	ActionCreate       Action = "create"
	ActionReplace      Action = "replace"
	ActionMerge        Action = "merge"
	ActionSkipModified Action = "skip-modified"
	ActionUnchanged    Action = "unchanged"
	ActionRemove       Action = "remove"
	ActionKeep         Action = "keep" // still claimed by a retained bundle
)

// Writes reports whether the action changes the workspace.
func (a Action) Writes() bool {
	switch a {
	case ActionCreate, ActionReplace, ActionMerge, ActionRemove:
		return true
	}
	return false
}

// FileAction represents the decision for a single workspace location.
type FileAction struct {
	Path   string
	Action Action
	Bundle string // bundle that last wrote, or tried to write, the location
}

// BundleState describes how a bundle's locked state changed.
type BundleState string

const (
	BundleAdded     BundleState = "added"
	BundleUpdated   BundleState = "updated"
	BundleUnchanged BundleState = "unchanged"
)

// BundleSummary is one resolved bundle in an install report.
type BundleSummary struct {
	Name   string
	Source string
	Ref    string
	SHA    string
	Hash   string
	Files  int
	Direct bool
	State  BundleState
}

// InstallReport holds the outcome of an install.
type InstallReport struct {
	Bundles     []BundleSummary // post-order
	Files       []FileAction    // sorted by path
	Conflicts   []resource.Conflict
	Platforms   []string
	Warnings    []string
	LockChanged bool
	DryRun      bool
}

// Count returns how many file actions have the given action.
func (r *InstallReport) Count(a Action) int {
	return countActions(r.Files, a)
}

// UninstallReport holds the outcome of an uninstall or prune.
type UninstallReport struct {
	Targets  []string // bundles the user named
	Cascaded []string // dependencies removed because nothing else needs them
	Files    []FileAction
	Warnings []string
	Message  string // set when nothing matched a scope
	DryRun   bool
}

// Removed returns every removed bundle, targets first.
func (r *UninstallReport) Removed() []string {
	return append(append([]string(nil), r.Targets...), r.Cascaded...)
}

// Count returns how many file actions have the given action.
func (r *UninstallReport) Count(a Action) int {
	return countActions(r.Files, a)
}

// DriftEntry represents a file that has drifted from the installed state.
type DriftEntry struct {
	Path     string
	Bundle   string
	Expected string
	Actual   string
}

// CheckReport holds the outcome of a check operation.
type CheckReport struct {
	Clean   bool
	Drifted []DriftEntry
	Missing []string
}

// SourceDelta represents an upstream change for a locked git bundle.
type SourceDelta struct {
	Bundle string
	Ref    string
	Before string
	After  string
}

// SourceError represents an error associated with a specific bundle.
type SourceError struct {
	Bundle string
	Err    error
}

func (e SourceError) Error() string {
	return e.Bundle + ": " + e.Err.Error()
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// VerifyReport holds the outcome of a verify operation.
type VerifyReport struct {
	UpToDate []string
	Changed  []SourceDelta
	Errors   []SourceError
}

func countActions(files []FileAction, a Action) int {
	n := 0
	for _, f := range files {
		if f.Action == a {
			n++
		}
	}
	return n
}
