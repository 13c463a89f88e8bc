package schema

import "fmt"

// InverseProperty describes a forward property whose writes must be
// mirrored onto a property of the related object.
type InverseProperty struct {
	Property   string // forward property on this schema
	InversedBy string // property on the related schema receiving back-references
	WriteBack  bool   // mirror to already-stored related objects after persist
	IsArray    bool   // forward property holds a list of references
}

// Analysis is the cacheable description derived from a schema: metadata
// field mappings, inverse-relation properties, and whether validation is
// required. It is a pure function of the schema content; recomputing from
// the same schema always yields the same analysis.
type Analysis struct {
	MetadataFields     map[string]string
	Inverse            []InverseProperty
	ValidationRequired bool
}

// Analyze derives the Analysis for a schema. Idempotent and
// side-effect-free; callers cache the result per schema identifier for
// the duration of one ingestion call.
func Analyze(s *Schema) *Analysis {
	a := &Analysis{
		MetadataFields:     metadataFieldMap(s.Metadata),
		ValidationRequired: s.Config.ValidateOnSave,
	}
	for name, prop := range s.Properties {
		if prop == nil {
			continue
		}
		inversedBy := prop.InversedBy
		isArray := false
		if inversedBy == "" && prop.Type == "array" && prop.Items != nil {
			inversedBy = prop.Items.InversedBy
		}
		if prop.Type == "array" {
			isArray = true
		}
		if inversedBy == "" {
			continue
		}
		writeBack := prop.WriteBack
		if !writeBack && prop.Items != nil {
			writeBack = prop.Items.WriteBack
		}
		a.Inverse = append(a.Inverse, InverseProperty{
			Property:   name,
			InversedBy: inversedBy,
			WriteBack:  writeBack,
			IsArray:    isArray,
		})
	}
	return a
}

func metadataFieldMap(m Metadata) map[string]string {
	out := make(map[string]string, 7)
	for field, key := range map[string]string{
		"name":        m.Name,
		"description": m.Description,
		"summary":     m.Summary,
		"image":       m.Image,
		"slug":        m.Slug,
		"published":   m.Published,
		"depublished": m.Depublished,
	} {
		if key != "" {
			out[field] = key
		}
	}
	return out
}

// Cache resolves schemas and memoizes their analyses for the lifetime of
// one ingestion call. It is owned by the caller of Ingest and discarded
// afterwards; it must never be shared across independent calls, which
// would leak stale schemas across tenants or schema edits.
type Cache struct {
	resolver Resolver
	schemas  map[string]*Schema
	analyses map[string]*Analysis
}

// NewCache builds an empty cache backed by the given resolver.
func NewCache(r Resolver) *Cache {
	return &Cache{
		resolver: r,
		schemas:  make(map[string]*Schema),
		analyses: make(map[string]*Analysis),
	}
}

// Resolve returns the schema and its analysis for id, computing and
// memoizing the analysis on first reference.
func (c *Cache) Resolve(id string) (*Schema, *Analysis, error) {
	if s, ok := c.schemas[id]; ok {
		return s, c.analyses[id], nil
	}
	s, ok := c.resolver.SchemaByID(id)
	if !ok {
		return nil, nil, fmt.Errorf("schema %q not found", id)
	}
	a := Analyze(s)
	c.schemas[id] = s
	c.analyses[id] = a
	return s, a, nil
}

// Known reports whether id resolves without forcing an analysis to be
// retained for unknown identifiers.
func (c *Cache) Known(id string) bool {
	if _, ok := c.schemas[id]; ok {
		return true
	}
	_, ok := c.resolver.SchemaByID(id)
	return ok
}
