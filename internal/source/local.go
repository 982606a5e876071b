package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bianoble/agpm/internal/sandbox"
)

// LocalFetcher serves dir bundles straight from the workspace.
type LocalFetcher struct {
	WorkspaceRoot string
}

func (l *LocalFetcher) Fetch(ctx context.Context, ref Reference, pin string) (*Fetched, error) {
	if ref.Kind != KindDir {
		return nil, fmt.Errorf("local fetcher cannot fetch %s source %s", ref.Kind, ref.Identity)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := sandbox.Resolve(l.WorkspaceRoot, ref.Path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fetchFailed(ref.Identity.String(), "stat", ReasonNotFound, err, "check that the path exists")
	}
	if err != nil {
		return nil, fetchFailed(ref.Identity.String(), "stat", ReasonNotFound, err, "")
	}
	if !info.IsDir() {
		return nil, fetchFailed(ref.Identity.String(), "stat", ReasonNotFound,
			fmt.Errorf("%s is not a directory", ref.Path), "a bundle is a directory of resource files")
	}

	return &Fetched{Root: abs, Identity: ref.Identity}, nil
}
