package ingest

import (
	"fmt"
	"time"

	"objectloader/internal/schema"
)

// testResolver serves schemas straight from a map.
type testResolver map[string]*schema.Schema

func (r testResolver) SchemaByID(id string) (*schema.Schema, bool) {
	s, ok := r[id]
	return s, ok
}

// articleResolver is the fixture catalog used across the package tests:
// an "article" schema with metadata mappings and a write-back inverse
// property, plus a bare "person" schema receiving the back-references.
func articleResolver() testResolver {
	return testResolver{
		"article": {
			ID: "article",
			Properties: map[string]*schema.Property{
				"title":  {Type: "text"},
				"author": {Type: "text", Format: "uuid", InversedBy: "articles", WriteBack: true},
			},
			Required: []string{"title"},
			Metadata: schema.Metadata{Name: "title", Slug: "title", Published: "published_on"},
		},
		"person": {
			ID: "person",
			Properties: map[string]*schema.Property{
				"name": {Type: "text"},
			},
		},
		"post": {
			ID: "post",
			Properties: map[string]*schema.Property{
				"title": {Type: "text"},
			},
			Config:   schema.Config{AutoPublish: true},
			Metadata: schema.Metadata{Name: "title", Published: "published_on"},
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)
}

// sequenceIDs returns a newID hook yielding gen-1, gen-2, ...
func sequenceIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}
