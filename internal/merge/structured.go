package merge

import (
	"fmt"
	"strings"

	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"
)

// mergeJSON overlays incoming onto existing. Both sides may be JSONC; the
// output is standard JSON formatted by hujson.
func mergeJSON(existing, incoming string, deep bool) (string, error) {
	ex, err := standardize(existing, "existing")
	if err != nil {
		return "", err
	}
	in, err := standardize(incoming, "incoming")
	if err != nil {
		return "", err
	}

	out, err := overlay(ex, "", gjson.Parse(in), deep)
	if err != nil {
		return "", err
	}

	root, err := hujson.Parse([]byte(out))
	if err != nil {
		return "", fmt.Errorf("formatting merged JSON: %w", err)
	}
	root.Format()
	root.Standardize()
	return string(root.Pack()), nil
}

func standardize(content, side string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "{}", nil
	}
	b, err := hujson.Standardize([]byte(content))
	if err != nil {
		return "", fmt.Errorf("parsing %s JSON: %w", side, err)
	}
	if !gjson.ParseBytes(b).IsObject() {
		return "", fmt.Errorf("%s JSON is not an object", side)
	}
	return string(b), nil
}

// overlay sets every key of in onto doc under prefix. In deep mode, objects
// present on both sides are merged recursively; arrays and scalars from the
// incoming side always win.
func overlay(doc, prefix string, in gjson.Result, deep bool) (string, error) {
	var err error
	in.ForEach(func(k, v gjson.Result) bool {
		p := escapeJSONKey(k.String())
		if prefix != "" {
			p = prefix + "." + p
		}
		if deep && v.IsObject() && gjson.Get(doc, p).IsObject() {
			doc, err = overlay(doc, p, v, deep)
			return err == nil
		}
		doc, err = sjson.SetRaw(doc, p, v.Raw)
		if err != nil {
			err = fmt.Errorf("setting %s: %w", k.String(), err)
		}
		return err == nil
	})
	return doc, err
}

// escapeJSONKey escapes gjson/sjson path metacharacters in a single key.
func escapeJSONKey(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '#', '|', '@', '!', '=', '<', '>', '%', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func mergeYAML(existing, incoming string, deep bool) (string, error) {
	var ex, in map[string]any
	if err := yaml.Unmarshal([]byte(existing), &ex); err != nil {
		return "", fmt.Errorf("parsing existing YAML: %w", err)
	}
	if err := yaml.Unmarshal([]byte(incoming), &in); err != nil {
		return "", fmt.Errorf("parsing incoming YAML: %w", err)
	}
	if ex == nil {
		ex = map[string]any{}
	}

	out, err := yaml.Marshal(overlayMap(ex, in, deep))
	if err != nil {
		return "", fmt.Errorf("marshaling merged YAML: %w", err)
	}
	return string(out), nil
}

func overlayMap(dst, src map[string]any, deep bool) map[string]any {
	for k, v := range src {
		if deep {
			sm, sok := v.(map[string]any)
			dm, dok := dst[k].(map[string]any)
			if sok && dok {
				dst[k] = overlayMap(dm, sm, deep)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}
