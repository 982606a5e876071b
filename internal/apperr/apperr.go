// Package apperr defines the error kinds surfaced by agpm operations.
package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Kind classifies a failure so callers can react without parsing messages.
type Kind string

const (
	KindBundleNotFound     Kind = "bundle-not-found"
	KindCircularDependency Kind = "circular-dependency"
	KindInvalidReference   Kind = "invalid-reference"
	KindLockfileOutdated   Kind = "lockfile-outdated"
	KindLockfileMissing    Kind = "lockfile-missing"
	KindHashMismatch       Kind = "hash-mismatch"
	KindFetchFailed        Kind = "fetch-failed"
	KindMergeFailed        Kind = "merge-failed"
	KindPathEscape         Kind = "path-escape"
	KindPermissionDenied   Kind = "permission-denied"
	KindIO                 Kind = "io-failure"
	KindInvalidManifest    Kind = "invalid-manifest"
)

// Error is a classified failure. Path and Chain are optional context.
type Error struct {
	Kind    Kind
	Message string
	Path    string
	Chain   []string // cycle chain for KindCircularDependency
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Chain) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Chain, " -> "))
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New creates a classified error.
func New(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf creates a classified error with a formatted message and no cause.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithPath creates a classified error that names the file involved.
func WithPath(kind Kind, message, path string, cause error) error {
	return &Error{Kind: kind, Message: message, Path: path, Cause: cause}
}

// Cycle reports a circular dependency with the full identity chain.
func Cycle(chain []string) error {
	return &Error{
		Kind:    KindCircularDependency,
		Message: "circular dependency",
		Chain:   append([]string(nil), chain...),
	}
}

// FS classifies a filesystem error as permission-denied or io-failure.
func FS(op, path string, cause error) error {
	kind := KindIO
	if errors.Is(cause, fs.ErrPermission) {
		kind = KindPermissionDenied
	}
	return &Error{Kind: kind, Message: op, Path: path, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
