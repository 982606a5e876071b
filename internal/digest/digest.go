// Package digest computes the content hashes recorded in the lockfile and index.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// Prefix tags every hash so the algorithm can change without ambiguity.
const Prefix = "blake3:"

// Bytes returns the hash of data.
func Bytes(data []byte) string {
	sum := blake3.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:])
}

// String returns the hash of s.
func String(s string) string {
	return Bytes([]byte(s))
}

// File streams the file at path through the hasher.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Tree combines per-file hashes into one hash for a resource tree.
// The result depends only on the (path, hash) pairs, not on their order.
func Tree(files map[string]string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte(0)
		b.WriteString(files[p])
		b.WriteByte('\n')
	}
	return String(b.String())
}

// Short trims a hash or commit SHA for display.
func Short(h string) string {
	h = strings.TrimPrefix(h, Prefix)
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
