package source

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/bianoble/agpm/internal/apperr"
)

// Kind distinguishes the two supported bundle source types.
type Kind string

const (
	KindDir Kind = "dir"
	KindGit Kind = "git"
)

// Identity is the stable key for "which bundle is this". Two references to
// the same bundle at different refs share an identity; only the pin differs.
type Identity struct {
	Kind    Kind
	Path    string // dir: slash-separated, relative to the workspace root
	URL     string // git: normalised clone URL
	Subpath string // git: bundle directory inside the repository
}

// Key renders the identity as a comparable string.
func (id Identity) Key() string {
	switch id.Kind {
	case KindDir:
		return "dir:" + id.Path
	case KindGit:
		if id.Subpath != "" {
			return "git:" + id.URL + "//" + id.Subpath
		}
		return "git:" + id.URL
	}
	return ""
}

// String returns the identity the way a user would write it.
func (id Identity) String() string {
	switch id.Kind {
	case KindDir:
		if id.Path == "." {
			return "."
		}
		return "./" + id.Path
	case KindGit:
		if id.Subpath != "" {
			return id.URL + "//" + id.Subpath
		}
		return id.URL
	}
	return ""
}

// Equal reports whether two identities name the same bundle.
func (id Identity) Equal(other Identity) bool {
	return id.Key() == other.Key()
}

// Reference is a parsed bundle source: an identity plus the ref to fetch it
// at and a name hint for bundles that do not declare their own name.
type Reference struct {
	Identity
	Ref  string
	Name string
	Raw  string
}

var shorthandRe = regexp.MustCompile(`^@([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)(?::([^#]+))?(?:#(.+))?$`)

// Parse turns user input into a Reference. Accepted forms:
//
//	./path, ../path                        local directory
//	@author/repo[:subpath][#ref]           GitHub shorthand
//	https://host/owner/repo[//sub][#ref]   git over http(s)
//	ssh://..., git@host:owner/repo         git over ssh
//	file:///abs/repo[//sub][#ref]          local git repository
func Parse(raw string) (Reference, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return Reference{}, apperr.New(apperr.KindInvalidReference, "empty bundle reference", nil)
	case isLocalPath(s):
		return parseLocal(s, raw)
	case strings.HasPrefix(s, "@"):
		return parseShorthand(s, raw)
	case strings.Contains(s, "://") || strings.HasPrefix(s, "git@"):
		return parseGitURL(s, raw)
	case filepath.IsAbs(s) || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~"):
		return Reference{}, apperr.WithPath(apperr.KindPathEscape,
			"absolute bundle paths are not portable; use a path relative to the workspace", s, nil)
	}
	return Reference{}, apperr.Newf(apperr.KindInvalidReference,
		"cannot parse bundle reference %q (expected ./path, @author/repo, or a git URL)", raw)
}

// FromFields builds a Reference from the structured form used in manifests.
// Exactly one of localPath or gitURL must be set. A localPath without a
// leading "./" is still treated as relative.
func FromFields(name, localPath, gitURL, ref, subpath string) (Reference, error) {
	switch {
	case localPath != "" && gitURL != "":
		return Reference{}, apperr.Newf(apperr.KindInvalidReference, "bundle %q sets both path and url", name)
	case localPath != "":
		if ref != "" || subpath != "" {
			return Reference{}, apperr.Newf(apperr.KindInvalidReference, "bundle %q: ref and subpath only apply to url sources", name)
		}
		p := filepath.ToSlash(localPath)
		if filepath.IsAbs(localPath) || strings.HasPrefix(p, "/") {
			return Reference{}, apperr.WithPath(apperr.KindPathEscape,
				"absolute bundle paths are not portable; use a path relative to the workspace", localPath, nil)
		}
		r, err := parseLocal(p, localPath)
		if err != nil {
			return Reference{}, err
		}
		if name != "" {
			r.Name = name
		}
		return r, nil
	case gitURL != "":
		r, err := Parse(gitURL)
		if err != nil {
			return Reference{}, err
		}
		if r.Kind != KindGit {
			return Reference{}, apperr.Newf(apperr.KindInvalidReference, "bundle %q: url %q is not a git source", name, gitURL)
		}
		if ref != "" {
			r.Ref = ref
		}
		if subpath != "" {
			sp, err := cleanSubpath(subpath)
			if err != nil {
				return Reference{}, err
			}
			r.Subpath = sp
		}
		if name != "" {
			r.Name = name
		}
		return r, nil
	}
	return Reference{}, apperr.Newf(apperr.KindInvalidReference, "bundle %q needs either path or url", name)
}

// Relative resolves a dependency declared inside a bundle against that
// bundle. Local-path dependencies of a dir bundle are relative to its
// directory; local-path dependencies of a git bundle become another subpath
// of the same repository at the parent's ref. Remote references are returned
// unchanged.
func (r Reference) Relative(parent Identity, parentRef string) (Reference, error) {
	if r.Kind != KindDir {
		return r, nil
	}
	switch parent.Kind {
	case KindDir:
		joined := path.Clean(path.Join(parent.Path, r.Path))
		if escapes(joined) {
			return Reference{}, apperr.WithPath(apperr.KindPathEscape,
				fmt.Sprintf("dependency of %s resolves outside the workspace", parent), r.Raw, nil)
		}
		r.Path = joined
		return r, nil
	case KindGit:
		joined := path.Clean(path.Join(parent.Subpath, r.Path))
		if escapes(joined) {
			return Reference{}, apperr.WithPath(apperr.KindPathEscape,
				fmt.Sprintf("dependency of %s resolves outside the repository", parent), r.Raw, nil)
		}
		if joined == "." {
			joined = ""
		}
		return Reference{
			Identity: Identity{Kind: KindGit, URL: parent.URL, Subpath: joined},
			Ref:      parentRef,
			Name:     r.Name,
			Raw:      r.Raw,
		}, nil
	}
	return r, nil
}

func isLocalPath(s string) bool {
	s = filepath.ToSlash(s)
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}

// parseLocal keeps ".." segments; containment is checked by Relative once
// the directory the path is relative to is known.
func parseLocal(s, raw string) (Reference, error) {
	p := norm.NFC.String(path.Clean(filepath.ToSlash(s)))
	return Reference{
		Identity: Identity{Kind: KindDir, Path: p},
		Name:     path.Base(p),
		Raw:      raw,
	}, nil
}

func parseShorthand(s, raw string) (Reference, error) {
	m := shorthandRe.FindStringSubmatch(s)
	if m == nil {
		return Reference{}, apperr.Newf(apperr.KindInvalidReference,
			"cannot parse %q (expected @author/repo[:subpath][#ref])", raw)
	}
	author, repo, sub, ref := m[1], m[2], m[3], m[4]
	subpath, err := cleanSubpath(sub)
	if err != nil {
		return Reference{}, err
	}

	name := "@" + author + "/" + repo
	if subpath != "" {
		name += "/" + subpath
	}
	return Reference{
		Identity: Identity{
			Kind:    KindGit,
			URL:     "https://github.com/" + author + "/" + strings.TrimSuffix(repo, ".git"),
			Subpath: subpath,
		},
		Ref:  ref,
		Name: name,
		Raw:  raw,
	}, nil
}

func parseGitURL(s, raw string) (Reference, error) {
	var ref string
	if i := strings.LastIndex(s, "#"); i >= 0 {
		s, ref = s[:i], s[i+1:]
	}

	var base, sub string
	if strings.HasPrefix(s, "git@") {
		base, sub = splitSubpath(s, 0)
	} else {
		base, sub = splitSubpath(s, strings.Index(s, "://")+3)
	}

	normalized, err := NormalizeURL(base)
	if err != nil {
		return Reference{}, apperr.New(apperr.KindInvalidReference, fmt.Sprintf("invalid git URL %q", raw), err)
	}
	subpath, err := cleanSubpath(sub)
	if err != nil {
		return Reference{}, err
	}

	name := strings.TrimSuffix(path.Base(normalized), ".git")
	if subpath != "" {
		name = path.Base(subpath)
	}
	return Reference{
		Identity: Identity{Kind: KindGit, URL: normalized, Subpath: subpath},
		Ref:      ref,
		Name:     name,
		Raw:      raw,
	}, nil
}

// splitSubpath splits "base//sub" at the first "//" after offset.
func splitSubpath(s string, offset int) (string, string) {
	if i := strings.Index(s[offset:], "//"); i >= 0 {
		return s[:offset+i], s[offset+i+2:]
	}
	return s, ""
}

// NormalizeURL canonicalises a git URL so that trivially different spellings
// of the same repository produce the same identity: lower-cased host, no
// trailing slash, no ".git" suffix.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	s = strings.TrimSuffix(s, ".git")

	if strings.HasPrefix(s, "git@") {
		rest := strings.TrimPrefix(s, "git@")
		host, repoPath, ok := strings.Cut(rest, ":")
		if !ok || host == "" || repoPath == "" {
			return "", fmt.Errorf("expected git@host:owner/repo")
		}
		return "git@" + strings.ToLower(host) + ":" + repoPath, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "http", "ssh", "git":
		if u.Host == "" || strings.Trim(u.Path, "/") == "" {
			return "", fmt.Errorf("missing host or repository path")
		}
	case "file":
		if u.Path == "" {
			return "", fmt.Errorf("missing repository path")
		}
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = norm.NFC.String(u.Path)
	return u.String(), nil
}

func cleanSubpath(sub string) (string, error) {
	sub = strings.Trim(filepath.ToSlash(strings.TrimSpace(sub)), "/")
	if sub == "" {
		return "", nil
	}
	p := norm.NFC.String(path.Clean(sub))
	if escapes(p) {
		return "", apperr.WithPath(apperr.KindPathEscape, "subpath leaves the repository", sub, nil)
	}
	if p == "." {
		return "", nil
	}
	return p, nil
}

func escapes(p string) bool {
	return p == ".." || strings.HasPrefix(p, "../")
}
