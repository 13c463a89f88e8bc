// Package domain holds the data shapes that cross package boundaries:
// raw caller-supplied records, the canonical storable object, and the
// bulk-operation result returned to callers.
package domain

// WriteState classifies the outcome of persisting a single object.
type WriteState string

const (
	// StateCreated means no prior object with this UUID existed.
	StateCreated WriteState = "created"
	// StateUpdated means a prior object existed and its content differed.
	StateUpdated WriteState = "updated"
	// StateUnchanged means a prior object existed with identical content;
	// the store performed no write.
	StateUnchanged WriteState = "unchanged"
)

// SelfKey is the reserved payload key carrying the metadata block of a
// submitted record.
const SelfKey = "@self"

// RawRecord is one unit of data submitted for ingestion: an opaque
// key/value payload plus optional metadata. Metadata may arrive either in
// a nested "@self" block or as top-level fields; DecodeRecord normalizes
// both forms.
type RawRecord struct {
	ID           string         `json:"id,omitempty"`
	Register     string         `json:"register,omitempty"`
	Schema       string         `json:"schema,omitempty"`
	Owner        string         `json:"owner,omitempty"`
	Organisation string         `json:"organisation,omitempty"`
	Published    string         `json:"published,omitempty"`
	Depublished  string         `json:"depublished,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`

	// Fields below are hydrated by the preparer, not supplied by callers.
	Name        string `json:"-"`
	Description string `json:"-"`
	Summary     string `json:"-"`
	Image       string `json:"-"`
	Slug        string `json:"-"`

	// GeneratedID is true when the preparer assigned the identifier
	// because the caller supplied none. Auto-publish only applies then.
	GeneratedID bool `json:"-"`
}

// DecodeRecord builds a RawRecord from a decoded JSON object. A "@self"
// block, when present, supplies the metadata fields; everything else is
// business payload. A top-level "id" or "uuid" key is honoured when the
// block carries no identifier.
func DecodeRecord(obj map[string]any) *RawRecord {
	rec := &RawRecord{Payload: make(map[string]any, len(obj))}
	for k, v := range obj {
		if k == SelfKey {
			continue
		}
		rec.Payload[k] = v
	}
	if self, ok := obj[SelfKey].(map[string]any); ok {
		rec.ID = stringField(self, "id", "uuid")
		rec.Register = stringField(self, "register")
		rec.Schema = stringField(self, "schema")
		rec.Owner = stringField(self, "owner")
		rec.Organisation = stringField(self, "organisation")
		rec.Published = stringField(self, "published")
		rec.Depublished = stringField(self, "depublished")
	}
	if rec.ID == "" {
		rec.ID = stringField(obj, "id", "uuid")
		delete(rec.Payload, "id")
		delete(rec.Payload, "uuid")
	}
	return rec
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Object is the canonical storable shape: metadata fields at the top
// level, the business payload as one opaque field, and discovered
// relations recorded alongside.
type Object struct {
	UUID         string            `json:"uuid"`
	Register     string            `json:"register"`
	Schema       string            `json:"schema"`
	Owner        string            `json:"owner,omitempty"`
	Organisation string            `json:"organisation,omitempty"`
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	Summary      string            `json:"summary,omitempty"`
	Image        string            `json:"image,omitempty"`
	Slug         string            `json:"slug,omitempty"`
	Published    string            `json:"published,omitempty"`
	Depublished  string            `json:"depublished,omitempty"`
	Relations    map[string]string `json:"relations,omitempty"`
	Payload      map[string]any    `json:"payload"`
	Hash         uint64            `json:"-"`
}

// InvalidRecord carries a rejected record, the rejection reason, and the
// record's index in the original submission.
type InvalidRecord struct {
	Record *RawRecord `json:"record"`
	Err    string     `json:"error"`
	Index  int        `json:"index"`
}

// OperationError is a top-level failure of the bulk operation itself,
// as opposed to a record-level rejection.
type OperationError struct {
	Message string `json:"error"`
	Kind    string `json:"type"`
}

// Statistics summarizes one bulk operation.
type Statistics struct {
	TotalProcessed   int   `json:"totalProcessed"`
	Saved            int   `json:"saved"`
	Updated          int   `json:"updated"`
	Unchanged        int   `json:"unchanged"`
	Invalid          int   `json:"invalid"`
	Errors           int   `json:"errors"`
	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// Performance captures throughput and efficiency of one bulk operation.
// DeduplicationEfficiency is only populated when at least one record
// classified unchanged.
type Performance struct {
	TotalTimeMs             int64   `json:"totalTimeMs"`
	ObjectsPerSecond        float64 `json:"objectsPerSecond"`
	TotalProcessed          int     `json:"totalProcessed"`
	TotalRequested          int     `json:"totalRequested"`
	Efficiency              float64 `json:"efficiency"`
	DeduplicationEfficiency float64 `json:"deduplicationEfficiency,omitempty"`
}

// BulkResult is the only artifact of an ingestion call that survives to
// the caller.
type BulkResult struct {
	Saved       []Object         `json:"saved"`
	Updated     []Object         `json:"updated"`
	Unchanged   []Object         `json:"unchanged"`
	Invalid     []InvalidRecord  `json:"invalid"`
	Errors      []OperationError `json:"errors"`
	Statistics  Statistics       `json:"statistics"`
	Performance Performance      `json:"performance"`
}
