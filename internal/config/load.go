package config

import (
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates one settings file. The returned error wraps
// fs.ErrNotExist when the file is absent.
func Load(p string) (*Config, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", p, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", p, err)
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, &ValidationError{Path: p, Errors: errs}
	}
	return &cfg, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Path   string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("settings validation failed for %s:\n  - %s", e.Path, strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Config for semantic correctness.
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.Version != 0 && cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d; only version 1 is supported", cfg.Version))
	}

	for i, p := range cfg.Platforms {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Sprintf("platforms[%d]: empty platform name", i))
		}
	}

	for i, r := range cfg.MergeStrategies {
		prefix := fmt.Sprintf("merge_strategies[%d]", i)
		if r.Pattern == "" {
			errs = append(errs, prefix+": 'pattern' is required")
		} else if _, err := path.Match(r.Pattern, ""); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid pattern %q: %v", prefix, r.Pattern, err))
		}
		if !slices.Contains(Strategies, r.Strategy) {
			errs = append(errs, fmt.Sprintf("%s: invalid strategy %q; must be one of: %s",
				prefix, r.Strategy, strings.Join(Strategies, ", ")))
		}
	}

	names := make(map[string]bool)
	for i, d := range cfg.PlatformDefinitions {
		prefix := fmt.Sprintf("platform_definitions[%d]", i)
		if d.Name != "" {
			prefix = fmt.Sprintf("platform '%s'", d.Name)
		}
		if d.Name == "" {
			errs = append(errs, prefix+": 'name' is required")
		} else if names[d.Name] {
			errs = append(errs, prefix+": duplicate platform name")
		} else {
			names[d.Name] = true
		}
		if d.Directory == "" {
			errs = append(errs, prefix+": 'directory' is required")
		} else if path.IsAbs(d.Directory) || strings.HasPrefix(path.Clean(d.Directory), "..") {
			errs = append(errs, fmt.Sprintf("%s: directory %q must be relative to the workspace", prefix, d.Directory))
		}
	}

	return errs
}

// StrategyFor returns the strategy configured for a bundle-relative
// resource path. Patterns without a slash also match the base name.
func (c *Config) StrategyFor(resourcePath string) (string, bool) {
	for i := len(c.MergeStrategies) - 1; i >= 0; i-- {
		r := c.MergeStrategies[i]
		if ok, _ := path.Match(r.Pattern, resourcePath); ok {
			return r.Strategy, true
		}
		if !strings.Contains(r.Pattern, "/") {
			if ok, _ := path.Match(r.Pattern, path.Base(resourcePath)); ok {
				return r.Strategy, true
			}
		}
	}
	return "", false
}
