package config

import (
	"strings"
	"testing"
)

func TestMergeOverlayWins(t *testing.T) {
	base := &Config{
		Version:   1,
		CacheDir:  "/base/cache",
		Platforms: []string{"cursor"},
	}
	overlay := &Config{
		Platforms: []string{"claude"},
	}

	merged, err := Merge(base, overlay)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Version != 1 {
		t.Errorf("version = %d, want 1", merged.Version)
	}
	if merged.CacheDir != "/base/cache" {
		t.Errorf("cache_dir = %q, want base value kept", merged.CacheDir)
	}
	if len(merged.Platforms) != 1 || merged.Platforms[0] != "claude" {
		t.Errorf("platforms = %v, want [claude]", merged.Platforms)
	}
}

func TestMergeStrategiesConcatenate(t *testing.T) {
	base := &Config{MergeStrategies: []MergeRule{{Pattern: "mcp.json", Strategy: "deep"}}}
	overlay := &Config{MergeStrategies: []MergeRule{{Pattern: "mcp.json", Strategy: "shallow"}}}

	merged, err := Merge(base, overlay)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged.MergeStrategies) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(merged.MergeStrategies))
	}
	if s, _ := merged.StrategyFor("mcp.json"); s != "shallow" {
		t.Errorf("strategy = %q, want overlay rule to win", s)
	}
}

func TestMergePlatformDefinitionsByName(t *testing.T) {
	base := &Config{PlatformDefinitions: []PlatformDefinition{
		{Name: "zed", Directory: ".zed"},
		{Name: "base-only", Directory: ".base"},
	}}
	overlay := &Config{PlatformDefinitions: []PlatformDefinition{
		{Name: "zed", Directory: ".zed-custom"},
	}}

	merged, err := Merge(base, overlay)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged.PlatformDefinitions) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(merged.PlatformDefinitions))
	}
	for _, d := range merged.PlatformDefinitions {
		if d.Name == "zed" && d.Directory != ".zed-custom" {
			t.Errorf("zed directory = %q, want overlay", d.Directory)
		}
	}
}

func TestMergeVersionMismatch(t *testing.T) {
	_, err := Merge(&Config{Version: 1}, &Config{Version: 2})
	if err == nil || !strings.Contains(err.Error(), "version mismatch") {
		t.Errorf("error = %v, want version mismatch", err)
	}
}
