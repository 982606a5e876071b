package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bianoble/agpm/internal/apperr"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{2684354560, "2.5 GB"},
	}

	for _, tt := range tests {
		got := humanSize(tt.bytes)
		if got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"drift", fmt.Errorf("check failed: %w", errDrift), 2},
		{"not found", apperr.Newf(apperr.KindBundleNotFound, "bundle 'x' is not installed"), 3},
		{"cycle", apperr.Cycle([]string{"a", "b", "a"}), 4},
		{"wrapped outdated", fmt.Errorf("install: %w", apperr.New(apperr.KindLockfileOutdated, "stale", nil)), 6},
		{"invalid manifest", apperr.New(apperr.KindInvalidManifest, "bad", nil), 14},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("%s: ExitCode = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestExitCodesDistinct(t *testing.T) {
	seen := make(map[int]apperr.Kind)
	for kind, code := range exitCodes {
		if code <= 2 {
			t.Errorf("%s uses reserved exit code %d", kind, code)
		}
		if other, ok := seen[code]; ok {
			t.Errorf("%s and %s share exit code %d", kind, other, code)
		}
		seen[code] = kind
	}
}

func TestStyledHonoursNoColor(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	if got := styled(dangerStyle, "error:"); got != "error:" {
		t.Errorf("styled = %q, want plain text", got)
	}
}
