package config

import "fmt"

// Merge combines two configs where overlay takes precedence over base:
//   - version: must agree if both declare it
//   - cache_dir: overlay wins when set
//   - platforms: overlay list replaces base list when non-empty
//   - merge_strategies: concatenated, base first (last match wins on lookup)
//   - platform_definitions: merged by name, overlay replaces base entry
func Merge(base, overlay *Config) (*Config, error) {
	if base == nil {
		return overlay, nil
	}
	if overlay == nil {
		return base, nil
	}

	result := &Config{}
	if err := mergeVersion(base.Version, overlay.Version, &result.Version); err != nil {
		return nil, err
	}

	result.CacheDir = base.CacheDir
	if overlay.CacheDir != "" {
		result.CacheDir = overlay.CacheDir
	}

	result.Platforms = base.Platforms
	if len(overlay.Platforms) > 0 {
		result.Platforms = overlay.Platforms
	}

	result.MergeStrategies = append(result.MergeStrategies, base.MergeStrategies...)
	result.MergeStrategies = append(result.MergeStrategies, overlay.MergeStrategies...)

	result.PlatformDefinitions = mergePlatformDefs(base.PlatformDefinitions, overlay.PlatformDefinitions)

	return result, nil
}

func mergeVersion(base, overlay int, out *int) error {
	switch {
	case base == 0:
		*out = overlay
	case overlay == 0, base == overlay:
		*out = base
	default:
		return fmt.Errorf("settings version mismatch: one layer declares version %d, another declares version %d", base, overlay)
	}
	return nil
}

func mergePlatformDefs(base, overlay []PlatformDefinition) []PlatformDefinition {
	if len(base) == 0 {
		return overlay
	}
	if len(overlay) == 0 {
		return base
	}

	replaced := make(map[string]bool, len(overlay))
	for _, d := range overlay {
		replaced[d.Name] = true
	}

	var result []PlatformDefinition
	for _, d := range base {
		if !replaced[d.Name] {
			result = append(result, d)
		}
	}
	return append(result, overlay...)
}
