package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileOverrides is the optional YAML document that adjusts the built-in tables.
type fileOverrides struct {
	Keywords            []string           `yaml:"keywords"`
	ExtraKeywords       []string           `yaml:"extra_keywords"`
	RegionalMultipliers map[string]float64 `yaml:"regional_multipliers"`
	DefaultRegion       string             `yaml:"default_region"`
}

// Load builds the catalogue from defaults and, when path is set, a YAML override file.
// A missing file is an error: an explicitly configured catalogue must exist.
func Load(path string, vatRate float64, vatCountry string) (*Catalog, error) {
	c := Default(vatRate, vatCountry)
	if strings.TrimSpace(path) == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var overrides fileOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if err := c.apply(overrides); err != nil {
		return nil, fmt.Errorf("apply catalog file %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalog) apply(o fileOverrides) error {
	if len(o.Keywords) > 0 {
		c.keywords = normalizeKeywords(o.Keywords)
	}
	for _, kw := range normalizeKeywords(o.ExtraKeywords) {
		if !contains(c.keywords, kw) {
			c.keywords = append(c.keywords, kw)
		}
	}
	if len(c.keywords) == 0 {
		return errors.New("keyword list is empty")
	}

	for name, multiplier := range o.RegionalMultipliers {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if multiplier <= 0 {
			return fmt.Errorf("regional multiplier for %q must be positive", name)
		}
		c.regions[name] = multiplier
	}

	if region := strings.TrimSpace(o.DefaultRegion); region != "" {
		if _, ok := c.regions[region]; !ok {
			return fmt.Errorf("default region %q has no multiplier", region)
		}
		c.defaultRegion = region
	}
	return nil
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || contains(out, kw) {
			continue
		}
		out = append(out, kw)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// UseDefaultRegion switches the region reports fall back to. Startup wiring only.
func (c *Catalog) UseDefaultRegion(region string) error {
	return c.apply(fileOverrides{DefaultRegion: region})
}
