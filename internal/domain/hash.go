package domain

import (
	"encoding/json"

	"github.com/zeebo/xxh3"
)

// ContentHash computes a stable content hash over the storable fields of
// an object. encoding/json sorts map keys, so the same content always
// serializes to the same bytes regardless of payload construction order.
// The store compares this hash inside the upsert statement to detect
// unchanged submissions without a separate pre-read.
func ContentHash(o *Object) uint64 {
	b, err := json.Marshal(struct {
		Register     string            `json:"register"`
		Schema       string            `json:"schema"`
		Owner        string            `json:"owner"`
		Organisation string            `json:"organisation"`
		Name         string            `json:"name"`
		Description  string            `json:"description"`
		Summary      string            `json:"summary"`
		Image        string            `json:"image"`
		Slug         string            `json:"slug"`
		Published    string            `json:"published"`
		Depublished  string            `json:"depublished"`
		Relations    map[string]string `json:"relations"`
		Payload      map[string]any    `json:"payload"`
	}{
		Register:     o.Register,
		Schema:       o.Schema,
		Owner:        o.Owner,
		Organisation: o.Organisation,
		Name:         o.Name,
		Description:  o.Description,
		Summary:      o.Summary,
		Image:        o.Image,
		Slug:         o.Slug,
		Published:    o.Published,
		Depublished:  o.Depublished,
		Relations:    o.Relations,
		Payload:      o.Payload,
	})
	if err != nil {
		// Only unmarshalable values (channels, funcs) can land here, and
		// payloads arrive from JSON decoding. Hash the error text so the
		// value still classifies deterministically.
		return xxh3.HashString(err.Error())
	}
	return xxh3.Hash(b)
}
