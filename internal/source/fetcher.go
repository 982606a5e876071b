package source

import (
	"context"
	"fmt"

	"github.com/bianoble/agpm/internal/apperr"
)

// Fetched is a bundle made available on the local filesystem.
type Fetched struct {
	Root     string // absolute directory holding the bundle's files
	Identity Identity
	SHA      string // git only: the concrete commit that was checked out
}

// Fetcher obtains a local directory for a bundle reference. When pin is
// non-empty the fetcher must produce exactly that commit instead of resolving
// the reference's ref.
type Fetcher interface {
	Fetch(ctx context.Context, ref Reference, pin string) (*Fetched, error)
}

// Reason classifies why a fetch failed.
type Reason string

const (
	ReasonNotFound      Reason = "not-found"
	ReasonAuthFailed    Reason = "auth-failed"
	ReasonNetwork       Reason = "network-error"
	ReasonRefUnresolved Reason = "ref-unresolvable"
)

// FetchError describes a failed fetch with the collaborator's reason.
type FetchError struct {
	Source    string
	Operation string
	Reason    Reason
	Err       error
	Hint      string
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s (%s): %v", e.Source, e.Operation, e.Reason, e.Err)
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchFailed(source, op string, reason Reason, err error, hint string) error {
	return apperr.New(apperr.KindFetchFailed, "fetch failed", &FetchError{
		Source:    source,
		Operation: op,
		Reason:    reason,
		Err:       err,
		Hint:      hint,
	})
}

// Registry dispatches fetches to the Fetcher registered for a source kind.
type Registry struct {
	fetchers map[Kind]Fetcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[Kind]Fetcher)}
}

// Register associates a Fetcher with a source kind.
func (r *Registry) Register(kind Kind, f Fetcher) {
	r.fetchers[kind] = f
}

// Get returns the Fetcher for the given kind.
func (r *Registry) Get(kind Kind) (Fetcher, error) {
	f, ok := r.fetchers[kind]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for source kind %q", kind)
	}
	return f, nil
}

// Fetch implements Fetcher by delegating on the reference's kind.
func (r *Registry) Fetch(ctx context.Context, ref Reference, pin string) (*Fetched, error) {
	f, err := r.Get(ref.Kind)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, ref, pin)
}
