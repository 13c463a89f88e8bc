package ingest

import (
	"fmt"
	"strings"

	"objectloader/internal/domain"
	"objectloader/internal/identity"
	"objectloader/internal/relations"
	"objectloader/internal/schema"
)

// businessKey names the optional payload field that carries the business
// data explicitly nested under the record.
const businessKey = "object"

// metadataKeys are the known metadata field names stripped from the
// top-level payload when no nested business-data field is present.
var metadataKeys = []string{
	domain.SelfKey, "id", "uuid", "register", "schema",
	"owner", "organisation", "name", "description", "summary",
	"image", "slug", "published", "depublished", "relations",
}

// transformer validates record context and produces the canonical
// storable shape, or a typed rejection. Rejections are collected, never
// thrown; the batch continues.
type transformer struct {
	cache    *schema.Cache
	identity identity.Provider
	validate bool
}

// transform processes every item, in submission order. Validation order
// per record: register present, schema present, schema known, then (when
// enabled) required-property checks. Owner and organisation default to
// the caller's identity when absent.
func (t *transformer) transform(items []item) (valid []domain.Object, invalid []domain.InvalidRecord) {
	for _, it := range items {
		obj, err := t.transformOne(it.rec)
		if err != nil {
			invalid = append(invalid, domain.InvalidRecord{
				Record: it.rec,
				Err:    err.Error(),
				Index:  it.index,
			})
			continue
		}
		valid = append(valid, obj)
	}
	return valid, invalid
}

func (t *transformer) transformOne(rec *domain.RawRecord) (domain.Object, error) {
	if strings.TrimSpace(rec.Register) == "" {
		return domain.Object{}, ErrMissingRegister
	}
	if strings.TrimSpace(rec.Schema) == "" {
		return domain.Object{}, ErrMissingSchema
	}
	sch, analysis, err := t.cache.Resolve(rec.Schema)
	if err != nil {
		return domain.Object{}, fmt.Errorf("%w: %q", ErrUnknownSchema, rec.Schema)
	}

	payload := isolatePayload(rec.Payload)

	if t.validate || analysis.ValidationRequired {
		for _, req := range sch.Required {
			if !present(payload[req]) {
				return domain.Object{}, fmt.Errorf("%w: %q", ErrRequiredProperty, req)
			}
		}
	}

	// Relations are scanned over the isolated payload only, after the
	// preparer's cascading, so paths never point at stripped metadata keys
	// or a nested wrapper.
	rels := relations.Scan(payload, sch)

	owner := rec.Owner
	if owner == "" {
		owner = t.identity.Owner()
	}
	organisation := rec.Organisation
	if organisation == "" {
		organisation = t.identity.Organisation()
	}

	obj := domain.Object{
		UUID:         rec.ID,
		Register:     rec.Register,
		Schema:       rec.Schema,
		Owner:        owner,
		Organisation: organisation,
		Name:         rec.Name,
		Description:  rec.Description,
		Summary:      rec.Summary,
		Image:        rec.Image,
		Slug:         rec.Slug,
		Published:    rec.Published,
		Depublished:  rec.Depublished,
		Relations:    rels,
		Payload:      payload,
	}
	obj.Hash = domain.ContentHash(&obj)
	return obj, nil
}

// isolatePayload separates business data from metadata: an explicitly
// nested business-data field wins; otherwise the known metadata field
// names are stripped from the top level. The input map is not mutated.
func isolatePayload(payload map[string]any) map[string]any {
	if obj, ok := payload[businessKey].(map[string]any); ok {
		return obj
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, k := range metadataKeys {
		delete(out, k)
	}
	return out
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	default:
		return true
	}
}
