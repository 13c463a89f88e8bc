package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is a file-backed register/schema lookup service. Definitions
// are declarative documents in YAML (or JSON, which yaml.v3 parses as a
// subset) loaded once at startup.
type Catalog struct {
	Registers []*Register `json:"registers" yaml:"registers"`
	Schemas   []*Schema   `json:"schemas" yaml:"schemas"`

	byID         map[string]*Schema
	registerByID map[string]*Register
}

// LoadCatalog reads and indexes a catalog document from path.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes a catalog document and indexes it for lookup.
func ParseCatalog(b []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c.byID = make(map[string]*Schema, len(c.Schemas))
	for _, s := range c.Schemas {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog schema %q has no id", s.Title)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("catalog defines schema %q twice", s.ID)
		}
		c.byID[s.ID] = s
	}
	c.registerByID = make(map[string]*Register, len(c.Registers))
	for _, r := range c.Registers {
		if r.ID == "" {
			return nil, fmt.Errorf("catalog register %q has no id", r.Title)
		}
		c.registerByID[r.ID] = r
	}
	return c, nil
}

// SchemaByID implements Resolver.
func (c *Catalog) SchemaByID(id string) (*Schema, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// RegisterByID looks up a register definition.
func (c *Catalog) RegisterByID(id string) (*Register, bool) {
	r, ok := c.registerByID[id]
	return r, ok
}
