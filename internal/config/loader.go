package config

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// varRef matches ${NAME} and ${NAME:-fallback}. The fallback may contain
// backslash-escaped characters, so "\}" does not end it.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-((?:[^}\\]|\\.)*))?\}`)

// Load reads the file at path and parses it with Parse.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands variable references in raw and decodes the YAML. A reference
// to an unset variable without a fallback is an error; all of them are
// named at once.
func Parse(raw []byte) (*Config, error) {
	var missing []string
	expanded := varRef.ReplaceAllStringFunc(string(raw), func(ref string) string {
		m := varRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok {
			return v
		}
		if m[2] != "" {
			return m[3]
		}
		if !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
		return ref
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved variables: %s", strings.Join(missing, ", "))
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// Resolve lists the configured module IDs in sorted order, which is the
// order they are loaded in.
func Resolve(cfg *Config) []string {
	return slices.Sorted(maps.Keys(cfg.Modules))
}
