// Package schema defines the declarative schema model, the derived
// analysis used by the ingestion pipeline, and the catalog loader that
// plays the role of the external register/schema lookup service.
package schema

// Property describes one declared property of a schema. Relation
// behaviour (cascade, inversedBy, write-back) lives here; nested shapes
// use Items for arrays and Properties for objects.
type Property struct {
	Type          string               `json:"type" yaml:"type"`
	Format        string               `json:"format,omitempty" yaml:"format,omitempty"`
	Title         string               `json:"title,omitempty" yaml:"title,omitempty"`
	CascadeDelete bool                 `json:"cascadeDelete,omitempty" yaml:"cascadeDelete,omitempty"`
	InversedBy    string               `json:"inversedBy,omitempty" yaml:"inversedBy,omitempty"`
	WriteBack     bool                 `json:"writeBack,omitempty" yaml:"writeBack,omitempty"`
	Items         *Property            `json:"items,omitempty" yaml:"items,omitempty"`
	Properties    map[string]*Property `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Config holds per-schema behaviour toggles.
type Config struct {
	AutoPublish    bool `json:"autoPublish,omitempty" yaml:"autoPublish,omitempty"`
	ValidateOnSave bool `json:"validateOnSave,omitempty" yaml:"validateOnSave,omitempty"`
}

// Metadata maps derived metadata fields to the payload keys they are
// hydrated from. An empty mapping leaves the field untouched.
type Metadata struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Summary     string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Image       string `json:"image,omitempty" yaml:"image,omitempty"`
	Slug        string `json:"slug,omitempty" yaml:"slug,omitempty"`
	Published   string `json:"published,omitempty" yaml:"published,omitempty"`
	Depublished string `json:"depublished,omitempty" yaml:"depublished,omitempty"`
}

// Schema is a declarative definition of a record's expected properties,
// including relation and metadata configuration. Immutable once loaded.
type Schema struct {
	ID         string               `json:"id" yaml:"id"`
	Title      string               `json:"title,omitempty" yaml:"title,omitempty"`
	Properties map[string]*Property `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string             `json:"required,omitempty" yaml:"required,omitempty"`
	Config     Config               `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	Metadata   Metadata             `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Register is a named collection grouping records under one or more
// schemas.
type Register struct {
	ID      string   `json:"id" yaml:"id"`
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Schemas []string `json:"schemas,omitempty" yaml:"schemas,omitempty"`
}

// Resolver looks up schema definitions by identifier. The catalog is the
// production implementation; tests inject fakes.
type Resolver interface {
	SchemaByID(id string) (*Schema, bool)
}
