package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Topic is one interview subject a candidate can pick.
type Topic struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Catalog holds the topics offered at interview start.
type Catalog struct {
	Topics []Topic `yaml:"topics"`
}

// LoadCatalog reads and parses the topics YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topics file: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topics YAML: %w", err)
	}

	return &catalog, nil
}

// HasTopic reports whether name is one of the offered topics.
func (c *Catalog) HasTopic(name string) bool {
	for _, t := range c.Topics {
		if t.Name == name {
			return true
		}
	}
	return false
}
