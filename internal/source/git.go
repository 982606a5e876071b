package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bianoble/agpm/internal/cache"
)

// GitFetcher checks git bundles out into the checkout cache. A checkout is
// keyed by URL and commit, so pinned fetches of an already cached commit
// never touch the network.
type GitFetcher struct {
	Cache *cache.Cache
	Git   string // git binary; "git" when empty
}

func (g *GitFetcher) Fetch(ctx context.Context, ref Reference, pin string) (*Fetched, error) {
	if ref.Kind != KindGit {
		return nil, fmt.Errorf("git fetcher cannot fetch %s source %s", ref.Kind, ref.Identity)
	}
	if g.Cache == nil {
		return nil, fmt.Errorf("git fetcher has no cache")
	}

	sha := pin
	var checkout string
	if pin != "" && g.Cache.Has(ref.URL, pin) {
		checkout = g.Cache.CheckoutDir(ref.URL, pin)
	} else {
		var err error
		checkout, sha, err = g.checkout(ctx, ref, pin)
		if err != nil {
			return nil, err
		}
	}

	root := checkout
	if ref.Subpath != "" {
		root = filepath.Join(checkout, filepath.FromSlash(ref.Subpath))
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", ref.Subpath)
		}
		return nil, fetchFailed(ref.Identity.String(), "checkout", ReasonNotFound, err,
			"check the subpath exists in the repository at "+shortSHA(sha))
	}

	return &Fetched{Root: root, Identity: ref.Identity, SHA: sha}, nil
}

// checkout clones into a scratch directory, records the commit, strips the
// git metadata and moves the tree into the cache.
func (g *GitFetcher) checkout(ctx context.Context, ref Reference, pin string) (string, string, error) {
	tmp, err := g.Cache.TempDir()
	if err != nil {
		return "", "", err
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	label := ref.Identity.String()
	if pin != "" {
		if err := g.cloneAtCommit(ctx, ref.URL, pin, tmp); err != nil {
			return "", "", classify(label, "checkout "+shortSHA(pin), err)
		}
	} else {
		if err := g.clone(ctx, ref.URL, ref.Ref, tmp); err != nil {
			return "", "", classify(label, "clone", err)
		}
	}

	sha, err := g.revParse(ctx, tmp, "HEAD")
	if err != nil {
		return "", "", classify(label, "rev-parse", err)
	}
	if err := os.RemoveAll(filepath.Join(tmp, ".git")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("removing git metadata: %w", err)
	}

	dst, err := g.Cache.Store(ref.URL, sha, tmp)
	if err != nil {
		return "", "", err
	}
	return dst, sha, nil
}

func (g *GitFetcher) bin() string {
	if g.Git != "" {
		return g.Git
	}
	return "git"
}

func (g *GitFetcher) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, g.bin(), args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &gitError{args: args, output: strings.TrimSpace(string(output)), err: err}
	}
	return nil
}

func (g *GitFetcher) clone(ctx context.Context, repo, ref, dest string) error {
	if ref == "" {
		return g.run(ctx, "clone", "--depth", "1", repo, dest)
	}
	err := g.run(ctx, "clone", "--depth", "1", "--branch", ref, "--single-branch", repo, dest)
	if err == nil {
		return nil
	}
	// --branch only takes branches and tags; a commit SHA needs a full clone.
	_ = os.RemoveAll(dest)
	if err2 := g.run(ctx, "clone", "--no-checkout", repo, dest); err2 != nil {
		return err
	}
	return g.run(ctx, "-C", dest, "checkout", "--detach", ref)
}

func (g *GitFetcher) cloneAtCommit(ctx context.Context, repo, commit, dest string) error {
	if err := g.run(ctx, "clone", "--no-checkout", repo, dest); err != nil {
		return err
	}
	return g.run(ctx, "-C", dest, "checkout", "--detach", commit)
}

func (g *GitFetcher) revParse(ctx context.Context, dir, rev string) (string, error) {
	cmd := exec.CommandContext(ctx, g.bin(), "-C", dir, "rev-parse", rev)
	output, err := cmd.Output()
	if err != nil {
		return "", &gitError{args: []string{"rev-parse", rev}, err: err}
	}
	return strings.TrimSpace(string(output)), nil
}

type gitError struct {
	args   []string
	output string
	err    error
}

func (e *gitError) Error() string {
	if e.output == "" {
		return fmt.Sprintf("git %s: %v", e.args[0], e.err)
	}
	return fmt.Sprintf("git %s: %s", e.args[0], e.output)
}

func (e *gitError) Unwrap() error {
	return e.err
}

func classify(source, op string, err error) error {
	var output string
	var ge *gitError
	if errors.As(err, &ge) {
		output = ge.output
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fetchFailed(source, op, ReasonNetwork, err, "install git and make sure it is on PATH")
	}
	reason := classifyOutput(output)
	return fetchFailed(source, op, reason, err, hintFor(reason))
}

// classifyOutput pattern-matches git stderr. Unresolvable refs are checked
// before the generic "not found" family because git reports both with
// similar wording.
func classifyOutput(output string) Reason {
	lower := strings.ToLower(output)

	if strings.Contains(lower, "remote branch") && strings.Contains(lower, "not found") ||
		strings.Contains(lower, "couldn't find remote ref") ||
		strings.Contains(lower, "did not match any") ||
		strings.Contains(lower, "unknown revision") ||
		strings.Contains(lower, "invalid reference") ||
		strings.Contains(lower, "reference is not a tree") ||
		strings.Contains(lower, "not a valid object name") {
		return ReasonRefUnresolved
	}

	if strings.Contains(lower, "permission denied (publickey)") ||
		strings.Contains(lower, "host key verification failed") ||
		strings.Contains(lower, "could not read username") ||
		strings.Contains(lower, "could not read password") ||
		strings.Contains(lower, "authentication failed") ||
		strings.Contains(lower, "invalid credentials") ||
		strings.Contains(lower, "401") ||
		strings.Contains(lower, "403") {
		return ReasonAuthFailed
	}

	if strings.Contains(lower, "repository not found") ||
		strings.Contains(lower, "does not appear to be a git repository") ||
		strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "not found") {
		return ReasonNotFound
	}

	return ReasonNetwork
}

func hintFor(reason Reason) string {
	switch reason {
	case ReasonRefUnresolved:
		return "check that the branch, tag, or commit exists"
	case ReasonAuthFailed:
		return "check your SSH key or git credential helper"
	case ReasonNotFound:
		return "check the repository URL"
	}
	return "check your network connection"
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
