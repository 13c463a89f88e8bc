package ingest

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"objectloader/internal/domain"
	"objectloader/internal/schema"
)

// item carries a record through the pipeline together with its index in
// the original submission, so rejections can report where they came from.
type item struct {
	rec   *domain.RawRecord
	index int
}

// preparer assigns identifiers, hydrates metadata fields, and applies
// pre-persist inverse cascading across the batch. Records whose schema
// cannot be resolved pass through untouched; the transformer owns the
// typed rejection.
type preparer struct {
	cache *schema.Cache
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

// timestampLayouts are tried in order when normalizing publish dates.
// Source systems mix ISO and European day-first forms.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
}

// prepare runs the full preparation over the batch in place. Three
// passes: identifier assignment + index build, per-record hydration,
// then a single inverse-cascading pass. The index bounds cascading to
// O(batch size x average fan-out) and makes the result independent of
// record encounter order.
func (p *preparer) prepare(items []item) {
	index := make(map[string]int, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.rec.ID) == "" {
			it.rec.ID = p.newID()
			it.rec.GeneratedID = true
		}
		if _, taken := index[it.rec.ID]; !taken {
			index[it.rec.ID] = i
		}
	}

	for _, it := range items {
		sch, analysis, err := p.resolve(it.rec.Schema)
		if err != nil {
			continue
		}
		p.hydrate(it.rec, sch, analysis)
	}

	p.cascade(items, index)
}

func (p *preparer) resolve(schemaID string) (*schema.Schema, *schema.Analysis, error) {
	if schemaID == "" {
		return nil, nil, ErrMissingSchema
	}
	return p.cache.Resolve(schemaID)
}

// hydrate fills derived metadata fields from the payload according to the
// schema's metadata mappings, then applies auto-publish. Explicit caller
// timestamps always win and suppress auto-publish for that record.
func (p *preparer) hydrate(rec *domain.RawRecord, sch *schema.Schema, analysis *schema.Analysis) {
	payload := businessView(rec.Payload)
	for field, key := range analysis.MetadataFields {
		raw, ok := payload[key].(string)
		if !ok || raw == "" {
			continue
		}
		switch field {
		case "name":
			if rec.Name == "" {
				rec.Name = raw
			}
		case "description":
			if rec.Description == "" {
				rec.Description = raw
			}
		case "summary":
			if rec.Summary == "" {
				rec.Summary = raw
			}
		case "image":
			if rec.Image == "" {
				rec.Image = raw
			}
		case "slug":
			if rec.Slug == "" {
				rec.Slug = Slugify(raw)
			}
		case "published":
			if rec.Published == "" {
				rec.Published = p.normalizeTimestamp(rec.ID, raw)
			}
		case "depublished":
			if rec.Depublished == "" {
				rec.Depublished = p.normalizeTimestamp(rec.ID, raw)
			}
		}
	}
	if sch.Config.AutoPublish && rec.GeneratedID && rec.Published == "" {
		rec.Published = p.now().UTC().Format(time.RFC3339)
	}
}

// normalizeTimestamp parses v against the known layouts and renders it as
// RFC3339 UTC. A value that parses under no layout is kept verbatim; a
// malformed date never aborts the record.
func (p *preparer) normalizeTimestamp(id, v string) string {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	p.log.Debug("keeping unparseable timestamp verbatim",
		zap.String("uuid", id), zap.String("value", v))
	return v
}

// cascade applies pre-persist inverse cascading: when a record forward-
// references a sibling in the same batch, the sibling's inverse property
// gains this record's identifier. Set semantics; a later step seeing the
// batch observes the mutation.
func (p *preparer) cascade(items []item, index map[string]int) {
	for _, it := range items {
		_, analysis, err := p.resolve(it.rec.Schema)
		if err != nil {
			continue
		}
		payload := businessView(it.rec.Payload)
		for _, inv := range analysis.Inverse {
			for _, ref := range forwardIDs(payload[inv.Property]) {
				tgtIdx, ok := index[ref]
				if !ok {
					continue
				}
				tgt := items[tgtIdx].rec
				if tgt == it.rec {
					continue
				}
				tgtPayload := businessView(tgt.Payload)
				tgtPayload[inv.InversedBy] = appendUnique(tgtPayload[inv.InversedBy], it.rec.ID)
			}
		}
	}
}

// businessView returns the map holding the record's business data: the
// explicitly nested business-data field when present, otherwise the
// payload itself.
func businessView(payload map[string]any) map[string]any {
	if obj, ok := payload[businessKey].(map[string]any); ok {
		return obj
	}
	return payload
}

// forwardIDs extracts the identifier(s) held by a forward property value:
// a single string or a list of strings.
func forwardIDs(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, el := range val {
			if s, ok := el.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// appendUnique appends id to the list held in v (creating it if needed)
// unless already present.
func appendUnique(v any, id string) []any {
	var list []any
	switch val := v.(type) {
	case []any:
		list = val
	case string:
		if val != "" {
			list = []any{val}
		}
	case nil:
	default:
		list = []any{val}
	}
	for _, el := range list {
		if s, ok := el.(string); ok && s == id {
			return list
		}
	}
	return append(list, id)
}
