package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bianoble/agpm/internal/digest"
)

// Cache stores immutable git checkouts keyed by repository URL and commit SHA.
// A checkout directory only appears once it is complete (temp dir + rename).
type Cache struct {
	dir string
}

// New creates a Cache at the given directory.
// The directory is created if it does not exist.
func New(dir string) (*Cache, error) {
	for _, sub := range []string{"checkouts", "tmp"} {
		p := filepath.Join(dir, sub)
		if err := os.MkdirAll(p, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", p, err)
		}
	}
	return &Cache{dir: dir}, nil
}

// DefaultDir returns the default cache directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache/agpm.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "agpm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return filepath.Join(os.TempDir(), "agpm-cache")
		}
		return filepath.Join("/tmp", "agpm-cache")
	}
	return filepath.Join(home, ".cache", "agpm")
}

// CheckoutDir returns where the checkout of url at sha lives (or would live).
func (c *Cache) CheckoutDir(url, sha string) string {
	return filepath.Join(c.dir, "checkouts", repoKey(url), sha)
}

// Has reports whether a complete checkout of url at sha is cached.
func (c *Cache) Has(url, sha string) bool {
	info, err := os.Stat(c.CheckoutDir(url, sha))
	return err == nil && info.IsDir()
}

// TempDir creates a scratch directory on the same filesystem as the
// checkouts so Store can rename it into place.
func (c *Cache) TempDir() (string, error) {
	dir, err := os.MkdirTemp(filepath.Join(c.dir, "tmp"), "clone-*")
	if err != nil {
		return "", fmt.Errorf("creating cache temp dir: %w", err)
	}
	return dir, nil
}

// Store moves a finished checkout from src into the cache and returns its path.
// If another process stored the same checkout first, src is discarded.
func (c *Cache) Store(url, sha, src string) (string, error) {
	dst := c.CheckoutDir(url, sha)
	if c.Has(url, sha) {
		_ = os.RemoveAll(src)
		return dst, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("creating cache subdirectory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		if c.Has(url, sha) {
			_ = os.RemoveAll(src)
			return dst, nil
		}
		return "", fmt.Errorf("storing checkout %s@%s: %w", url, sha, err)
	}
	return dst, nil
}

// Size returns the total size of the cache in bytes.
func (c *Cache) Size() (int64, error) {
	var total int64
	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Path returns the cache directory path.
func (c *Cache) Path() string {
	return c.dir
}

func repoKey(url string) string {
	h := strings.TrimPrefix(digest.String(url), digest.Prefix)
	return h[:16]
}
