package i18n

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"tenant-guardian/backend/internal/ai"
)

//go:embed strings.yaml
var defaultCatalog []byte

// Catalog holds UI strings per language. Missing keys fall back to English.
type Catalog struct {
	strings map[ai.Language]map[string]string
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse builds a catalog from YAML keyed by language then string key.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if _, ok := raw[string(ai.English)]; !ok {
		return nil, fmt.Errorf("catalog has no %s strings", ai.English)
	}
	out := make(map[ai.Language]map[string]string, len(raw))
	for lang, values := range raw {
		parsed := ai.ParseLanguage(lang)
		if string(parsed) != lang {
			return nil, fmt.Errorf("catalog language %q not supported", lang)
		}
		out[parsed] = values
	}
	return &Catalog{strings: out}, nil
}

// Strings returns the full string table for a language.
func (c *Catalog) Strings(lang ai.Language) map[string]string {
	base := c.strings[ai.English]
	out := make(map[string]string, len(base))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range c.strings[lang] {
		out[key] = value
	}
	return out
}

// Lookup returns one string, falling back to English and then to the key.
func (c *Catalog) Lookup(lang ai.Language, key string) string {
	if value, ok := c.strings[lang][key]; ok {
		return value
	}
	if value, ok := c.strings[ai.English][key]; ok {
		return value
	}
	return key
}
