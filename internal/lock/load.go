package lock

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/agpm/internal/apperr"
	"github.com/bianoble/agpm/internal/digest"
	"github.com/bianoble/agpm/internal/sandbox"
	"github.com/bianoble/agpm/internal/source"
)

// Load reads and validates an agpm.lock file. The returned error wraps
// fs.ErrNotExist when the file is absent.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lockfile %s: %w", path, err)
	}

	var lf Lockfile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, apperr.WithPath(apperr.KindInvalidManifest, "parsing lockfile", path, err)
	}
	if errs := Validate(&lf); len(errs) > 0 {
		return nil, apperr.WithPath(apperr.KindInvalidManifest, "invalid lockfile", path, &ValidationError{Errors: errs})
	}
	return &lf, nil
}

// Marshal renders the lockfile exactly as Save writes it.
func Marshal(lf *Lockfile) ([]byte, error) {
	data, err := yaml.Marshal(lf)
	if err != nil {
		return nil, fmt.Errorf("marshaling lockfile: %w", err)
	}
	return data, nil
}

// Save writes a lockfile atomically using a temp file and rename.
func Save(path string, lf *Lockfile) error {
	data, err := Marshal(lf)
	if err != nil {
		return err
	}
	if err := sandbox.AtomicWrite(path, data, 0644); err != nil {
		return apperr.FS("writing lockfile", path, err)
	}
	return nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lockfile validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Lockfile for semantic correctness.
func Validate(lf *Lockfile) []string {
	var errs []string

	names := make(map[string]bool)
	keys := make(map[string]bool)
	for i, e := range lf.Bundles {
		prefix := fmt.Sprintf("bundles[%d]", i)
		if e.Name != "" {
			prefix = fmt.Sprintf("locked bundle '%s'", e.Name)
		}

		if e.Name == "" {
			errs = append(errs, prefix+": 'name' is required")
		} else if names[e.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate bundle name '%s'", prefix, e.Name))
		} else {
			names[e.Name] = true
		}

		s := e.Source
		switch source.Kind(s.Type) {
		case source.KindDir:
			if s.Path == "" {
				errs = append(errs, prefix+": dir source requires 'path'")
			}
		case source.KindGit:
			if s.URL == "" {
				errs = append(errs, prefix+": git source requires 'url'")
			}
			if s.SHA == "" {
				errs = append(errs, prefix+": git source requires a resolved 'sha'")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown source type '%s'; must be dir or git", prefix, s.Type))
		}

		if !strings.HasPrefix(s.Hash, digest.Prefix) {
			errs = append(errs, fmt.Sprintf("%s: 'hash' must start with %s", prefix, digest.Prefix))
		}

		key := s.Identity().Key()
		if keys[key] {
			errs = append(errs, fmt.Sprintf("%s: duplicate source %s", prefix, key))
		}
		keys[key] = true
	}

	return errs
}
