package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// FileName is the tool settings file name at every level.
const FileName = "agpm.config.yaml"

// Environment variables read by the settings layer.
const (
	EnvSystemConfig = "AGPM_SYSTEM_CONFIG"
	EnvUserConfig   = "AGPM_USER_CONFIG"
	envNoInherit    = "AGPM_NO_INHERIT"
	envCacheDir     = "AGPM_CACHE_DIR"
)

// Level is the precedence level of a settings file.
type Level string

const (
	LevelSystem  Level = "system"
	LevelUser    Level = "user"
	LevelProject Level = "project"
)

// LayerInfo is one settings file in the chain, as reported by `agpm info`.
type LayerInfo struct {
	Err    error
	Path   string
	Level  Level
	Loaded bool
}

// DiscoverOptions locates the settings chain. SystemPath and UserPath win
// over AGPM_SYSTEM_CONFIG and AGPM_USER_CONFIG, which win over the OS
// locations.
type DiscoverOptions struct {
	ProjectPath string
	SystemPath  string
	UserPath    string
	NoInherit   bool // project layer only
}

// DiscoverPaths lists the settings files to read, system first and project
// last. A file reachable from more than one level is read once, at the
// highest level naming it.
func DiscoverPaths(opts DiscoverOptions) []LayerInfo {
	chain := []LayerInfo{{Level: LevelProject, Path: opts.ProjectPath}}
	if !opts.NoInherit {
		chain = []LayerInfo{
			{Level: LevelSystem, Path: cmp.Or(opts.SystemPath, os.Getenv(EnvSystemConfig), systemPath())},
			{Level: LevelUser, Path: cmp.Or(opts.UserPath, os.Getenv(EnvUserConfig), userPath())},
			chain[0],
		}
	}

	var out []LayerInfo
	for i, l := range chain {
		if l.Path == "" {
			continue
		}
		shadowed := slices.ContainsFunc(chain[i+1:], func(o LayerInfo) bool {
			return o.Path != "" && samePath(o.Path, l.Path)
		})
		if !shadowed {
			out = append(out, l)
		}
	}
	return out
}

// LoadLayered reads the chain and merges it. Absent files are skipped; a
// present file that does not parse or validate stops the load and is
// marked in the returned chain.
func LoadLayered(opts DiscoverOptions) (*Config, []LayerInfo, error) {
	chain := DiscoverPaths(opts)
	merged := &Config{}
	for i := range chain {
		layer := &chain[i]
		cfg, err := Load(layer.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			layer.Err = err
			return nil, chain, fmt.Errorf("%s settings %s: %w", layer.Level, layer.Path, err)
		}
		layer.Loaded = true
		if merged, err = Merge(merged, cfg); err != nil {
			return nil, chain, fmt.Errorf("%s settings %s: %w", layer.Level, layer.Path, err)
		}
	}
	return merged, chain, nil
}

func samePath(a, b string) bool {
	x, errA := filepath.Abs(a)
	y, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return x == y
}

func systemPath() string {
	if runtime.GOOS != "windows" {
		return filepath.Join("/etc", "agpm", FileName)
	}
	return filepath.Join(cmp.Or(os.Getenv("ProgramData"), `C:\ProgramData`), "agpm", FileName)
}

// userPath honours XDG_CONFIG_HOME on every OS, like the cache does for
// XDG_CACHE_HOME.
func userPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "agpm", FileName)
}

// EnvNoInherit reports whether AGPM_NO_INHERIT is "1" or "true".
func EnvNoInherit() bool {
	return envBoolTrue(envNoInherit)
}

// EnvCacheDir returns AGPM_CACHE_DIR, used only when no layer sets cache_dir.
func EnvCacheDir() string {
	return strings.TrimSpace(os.Getenv(envCacheDir))
}

func envBoolTrue(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true":
		return true
	}
	return false
}
