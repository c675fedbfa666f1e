package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// varRef matches ${NAME} and ${NAME:-fallback}.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Load reads the config file at path. A .env next to it and one in the
// working directory are applied first without overriding variables that
// are already set.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Dir(path), "."); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML, substituting variable references inside scalar
// values. Keys and comments are left alone, and a substituted value can
// never change the document structure.
func Parse(raw []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if err := expandNode(&doc); err != nil {
		return nil, fmt.Errorf("config: expanding variables: %w", err)
	}

	var cfg Config
	if doc.Kind == 0 {
		return &cfg, nil
	}
	if err := doc.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv applies the .env file of each dir that has one.
func LoadDotEnv(dirs ...string) error {
	var files []string
	seen := make(map[string]bool)
	for _, dir := range dirs {
		p, err := filepath.Abs(filepath.Join(dir, ".env"))
		if err != nil || seen[p] {
			continue
		}
		seen[p] = true
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("config: loading .env: %w", err)
	}
	return nil
}

// expandNode rewrites every value scalar under n. Mapping keys are skipped.
func expandNode(n *yaml.Node) error {
	var errs []error
	var walk func(n *yaml.Node, isKey bool)
	walk = func(n *yaml.Node, isKey bool) {
		switch n.Kind {
		case yaml.ScalarNode:
			if isKey {
				return
			}
			v, err := expandString(n.Value)
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: %w", n.Line, err))
				return
			}
			if v != n.Value {
				n.Value = v
				if n.Style == 0 {
					// Let the decoder re-resolve "8080" or "true" for typed fields.
					n.Tag = ""
				}
			}
		case yaml.MappingNode:
			for i, c := range n.Content {
				walk(c, i%2 == 0)
			}
		default:
			for _, c := range n.Content {
				walk(c, false)
			}
		}
	}
	walk(n, false)
	return errors.Join(errs...)
}

// expandString substitutes variable references in s. An unset variable
// without a fallback is an error; a set but empty one expands to "".
func expandString(s string) (string, error) {
	var missing []string
	out := varRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := varRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok {
			return v
		}
		if strings.Contains(ref, ":-") {
			return m[2]
		}
		missing = append(missing, m[1])
		return ref
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved variable: %v", missing)
	}
	return out, nil
}
