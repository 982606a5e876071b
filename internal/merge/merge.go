// Package merge combines an existing workspace file with incoming bundle
// content for resource types that several bundles may contribute to.
package merge

import (
	"fmt"
	"path"
	"strings"

	"github.com/bianoble/agpm/internal/apperr"
	"github.com/bianoble/agpm/internal/config"
	"github.com/bianoble/agpm/internal/resource"
)

// Strategy selects how existing and incoming content are combined.
type Strategy string

const (
	// Replace discards the existing content.
	Replace Strategy = "replace"
	// Composite keeps one delimited section per bundle in a text file.
	Composite Strategy = "composite"
	// Shallow overlays top-level keys of a JSON or YAML object.
	Shallow Strategy = "shallow"
	// Deep merges JSON or YAML objects recursively.
	Deep Strategy = "deep"
)

// Merger combines existing and incoming content.
type Merger interface {
	Merge(existing, incoming string, s Strategy) (string, error)
}

// Engine is the built-in Merger.
type Engine struct{}

// New returns the built-in merge engine.
func New() *Engine {
	return &Engine{}
}

// Merge implements Merger. Replace and composite merges into an empty file
// yield incoming unchanged; structured merges always normalise their output
// so that merging the same content again is a no-op. Structured content that
// does not parse fails with a merge-failed error.
func (e *Engine) Merge(existing, incoming string, s Strategy) (string, error) {
	switch s {
	case Replace:
		return incoming, nil
	case Composite:
		return composite(existing, incoming), nil
	case Shallow, Deep:
		deep := s == Deep
		if isJSON(existing) || isJSON(incoming) {
			out, err := mergeJSON(existing, incoming, deep)
			if err != nil {
				return "", apperr.New(apperr.KindMergeFailed, fmt.Sprintf("%s merge of JSON content", s), err)
			}
			return out, nil
		}
		out, err := mergeYAML(existing, incoming, deep)
		if err != nil {
			return "", apperr.New(apperr.KindMergeFailed, fmt.Sprintf("%s merge of YAML content", s), err)
		}
		return out, nil
	default:
		return "", apperr.Newf(apperr.KindMergeFailed, "unknown merge strategy '%s'", s)
	}
}

// StrategyFor picks the strategy for a resource: the last matching
// merge_strategies rule, else the default for its type.
func StrategyFor(cfg *config.Config, r resource.Resource) Strategy {
	if cfg != nil {
		if s, ok := cfg.StrategyFor(r.Path); ok {
			return Strategy(s)
		}
	}
	return DefaultStrategy(r)
}

// DefaultStrategy is deep for MCP configs, composite for agent docs, and
// replace for everything else.
func DefaultStrategy(r resource.Resource) Strategy {
	if !r.Mergeable() {
		return Replace
	}
	switch r.Type {
	case resource.McpConfig:
		return Deep
	case resource.AgentDoc:
		if ext := path.Ext(r.Path); ext == ".json" {
			return Deep
		}
		return Composite
	}
	return Replace
}

func isJSON(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") || strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/*")
}
