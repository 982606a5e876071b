package config

// Config represents agpm.config.yaml, the tool settings file. Every field is
// optional; layers are merged system, then user, then project.
type Config struct {
	Version             int                  `yaml:"version,omitempty"`
	CacheDir            string               `yaml:"cache_dir,omitempty"`
	Platforms           []string             `yaml:"platforms,omitempty"`
	MergeStrategies     []MergeRule          `yaml:"merge_strategies,omitempty"`
	PlatformDefinitions []PlatformDefinition `yaml:"platform_definitions,omitempty"`
}

// MergeRule selects the merge strategy for resources whose bundle-relative
// path matches Pattern. The last matching rule wins.
type MergeRule struct {
	Pattern  string `yaml:"pattern"`
	Strategy string `yaml:"strategy"` // "replace", "composite", "shallow", "deep"
}

// PlatformDefinition adds a platform or overrides a built-in one.
type PlatformDefinition struct {
	Name      string `yaml:"name"`
	Directory string `yaml:"directory"`
	MCPPath   string `yaml:"mcp_path,omitempty"`
}

// Strategies lists the accepted merge strategy names.
var Strategies = []string{"replace", "composite", "shallow", "deep"}
