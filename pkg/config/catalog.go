package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/schemasketch/engine/pkg/apperrors"
)

// ModelEntry describes one selectable AI model in the catalog.
type ModelEntry struct {
	ID   string `yaml:"id"`   // canonical model id, e.g. "claude-sonnet-4-5"
	Name string `yaml:"name"` // display name shown to users
}

// Catalog is the set of model ids the engine accepts. Requests naming a
// model outside the catalog are rejected before any provider call.
type Catalog struct {
	Models []ModelEntry `yaml:"models"`

	byID map[string]ModelEntry
}

// defaultCatalog is used when no models.yaml is present.
var defaultCatalog = []ModelEntry{
	{ID: "gpt-4o", Name: "GPT-4o"},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini"},
	{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5"},
	{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5"},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro"},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash"},
}

// LoadCatalog reads the model catalog from path. A missing file falls back
// to the built-in default catalog; a malformed file is an error.
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		c.Models = defaultCatalog
	case err != nil:
		return nil, fmt.Errorf("read model catalog %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse model catalog %s: %w", path, err)
		}
		if len(c.Models) == 0 {
			return nil, fmt.Errorf("model catalog %s lists no models", path)
		}
	}

	c.byID = make(map[string]ModelEntry, len(c.Models))
	for _, m := range c.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("model catalog %s contains an entry without an id", path)
		}
		c.byID[m.ID] = m
	}
	return c, nil
}

// Contains reports whether id is a catalog model.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Resolve returns the catalog entry for id, or a validation error naming
// the unknown model.
func (c *Catalog) Resolve(id string) (ModelEntry, error) {
	m, ok := c.byID[id]
	if !ok {
		return ModelEntry{}, fmt.Errorf("%w: unknown model %q", apperrors.ErrValidation, id)
	}
	return m, nil
}
