package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(dir); err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, sub := range []string{"checkouts", "tmp"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("missing %s: %v", sub, err)
		}
	}
}

func TestStoreAndHas(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	url, sha := "https://github.com/acme/rules", "0123456789abcdef0123456789abcdef01234567"
	if c.Has(url, sha) {
		t.Fatal("expected miss before Store")
	}

	tmp, err := c.TempDir()
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "agpm.yaml"), []byte("name: x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dst, err := c.Store(url, sha, tmp)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if dst != c.CheckoutDir(url, sha) {
		t.Errorf("Store returned %q, want %q", dst, c.CheckoutDir(url, sha))
	}
	if !c.Has(url, sha) {
		t.Fatal("expected hit after Store")
	}
	if _, err := os.Stat(filepath.Join(dst, "agpm.yaml")); err != nil {
		t.Errorf("stored content missing: %v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temp dir should have been moved")
	}
}

func TestStoreDiscardsDuplicate(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	url, sha := "https://example.com/r.git", "abc"

	first, _ := c.TempDir()
	if _, err := c.Store(url, sha, first); err != nil {
		t.Fatalf("first Store: %v", err)
	}

	second, _ := c.TempDir()
	if err := os.WriteFile(filepath.Join(second, "late.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	dst, err := c.Store(url, sha, second)
	if err != nil {
		t.Fatalf("second Store: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "late.md")); !os.IsNotExist(err) {
		t.Error("existing checkout must not be replaced")
	}
	if _, err := os.Stat(second); !os.IsNotExist(err) {
		t.Error("duplicate temp dir should be removed")
	}
}

func TestCheckoutDirSeparatesRepos(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := c.CheckoutDir("https://github.com/a/x", "sha")
	b := c.CheckoutDir("https://github.com/b/x", "sha")
	if a == b {
		t.Error("different repos must not share a checkout dir")
	}
}

func TestSize(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "checkouts", "f"), make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	size, err := c.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 100 {
		t.Errorf("size = %d, want 100", size)
	}
}

func TestDefaultDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	if got := DefaultDir(); got != filepath.Join("/custom/cache", "agpm") {
		t.Errorf("DefaultDir = %q", got)
	}
}
