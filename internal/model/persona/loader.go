package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads persona descriptors from a YAML file. An empty path falls back to
// the seeded defaults so the service always starts with a usable registry.
func Load(path string) ([]Persona, error) {
	if path == "" {
		return Seed(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var doc struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse persona file: %w", err)
	}
	if len(doc.Personas) == 0 {
		return nil, fmt.Errorf("persona file %s defines no personas", path)
	}

	seen := make(map[string]struct{}, len(doc.Personas))
	for _, p := range doc.Personas {
		if p.ID == "" || p.Strategy == "" {
			return nil, fmt.Errorf("persona %q missing id or strategy", p.Name)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return doc.Personas, nil
}
