package ingest

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"objectloader/internal/domain"
	"objectloader/internal/schema"
)

func newTestPreparer() *preparer {
	return &preparer{
		cache: schema.NewCache(articleResolver()),
		log:   zap.NewNop(),
		now:   fixedNow,
		newID: sequenceIDs(),
	}
}

func TestPrepare_AssignsIdentifiers(t *testing.T) {
	t.Parallel()

	p := newTestPreparer()
	items := []item{
		{rec: &domain.RawRecord{Schema: "article", Payload: map[string]any{}}, index: 0},
		{rec: &domain.RawRecord{ID: "keep-me", Schema: "article", Payload: map[string]any{}}, index: 1},
		{rec: &domain.RawRecord{ID: "   ", Schema: "article", Payload: map[string]any{}}, index: 2},
	}
	p.prepare(items)

	if items[0].rec.ID != "gen-1" || !items[0].rec.GeneratedID {
		t.Fatalf("record 0 not assigned: id=%q generated=%v", items[0].rec.ID, items[0].rec.GeneratedID)
	}
	if items[1].rec.ID != "keep-me" || items[1].rec.GeneratedID {
		t.Fatalf("caller-supplied id not preserved: id=%q generated=%v", items[1].rec.ID, items[1].rec.GeneratedID)
	}
	if items[2].rec.ID != "gen-2" || !items[2].rec.GeneratedID {
		t.Fatalf("blank id not replaced: id=%q", items[2].rec.ID)
	}
}

func TestPrepare_HydratesMetadata(t *testing.T) {
	t.Parallel()

	p := newTestPreparer()
	rec := &domain.RawRecord{
		ID:     "a-1",
		Schema: "article",
		Payload: map[string]any{
			"title":        "Žlutý Report 2024",
			"published_on": "17.01.2024",
		},
	}
	p.prepare([]item{{rec: rec}})

	if rec.Name != "Žlutý Report 2024" {
		t.Fatalf("name not hydrated: %q", rec.Name)
	}
	if rec.Slug != "zluty-report-2024" {
		t.Fatalf("slug not hydrated: %q", rec.Slug)
	}
	if rec.Published != "2024-01-17T00:00:00Z" {
		t.Fatalf("published not normalized: %q", rec.Published)
	}
}

func TestPrepare_ExplicitMetadataWins(t *testing.T) {
	t.Parallel()

	p := newTestPreparer()
	rec := &domain.RawRecord{
		ID:        "a-1",
		Schema:    "article",
		Name:      "Explicit",
		Published: "2020-01-01T00:00:00Z",
		Payload: map[string]any{
			"title":        "From Payload",
			"published_on": "2024-06-01",
		},
	}
	p.prepare([]item{{rec: rec}})

	if rec.Name != "Explicit" {
		t.Fatalf("explicit name overwritten: %q", rec.Name)
	}
	if rec.Published != "2020-01-01T00:00:00Z" {
		t.Fatalf("explicit published overwritten: %q", rec.Published)
	}
}

func TestPrepare_AutoPublish(t *testing.T) {
	t.Parallel()

	p := newTestPreparer()
	generated := &domain.RawRecord{Schema: "post", Payload: map[string]any{"title": "x"}}
	supplied := &domain.RawRecord{ID: "p-1", Schema: "post", Payload: map[string]any{"title": "y"}}
	dated := &domain.RawRecord{Schema: "post", Payload: map[string]any{"title": "z", "published_on": "2023-05-05"}}
	p.prepare([]item{{rec: generated}, {rec: supplied, index: 1}, {rec: dated, index: 2}})

	if generated.Published != "2024-01-17T12:00:00Z" {
		t.Fatalf("generated-id record should auto-publish, got %q", generated.Published)
	}
	if supplied.Published != "" {
		t.Fatalf("caller-id record must not auto-publish, got %q", supplied.Published)
	}
	if dated.Published != "2023-05-05T00:00:00Z" {
		t.Fatalf("payload timestamp must win over auto-publish, got %q", dated.Published)
	}
}

func TestPrepare_UnparseableTimestampKeptVerbatim(t *testing.T) {
	t.Parallel()

	p := newTestPreparer()
	rec := &domain.RawRecord{
		ID:      "a-1",
		Schema:  "article",
		Payload: map[string]any{"title": "t", "published_on": "sometime soon"},
	}
	p.prepare([]item{{rec: rec}})
	if rec.Published != "sometime soon" {
		t.Fatalf("unparseable timestamp mangled: %q", rec.Published)
	}
}

func TestPrepare_CascadeIsOrderIndependent(t *testing.T) {
	t.Parallel()

	build := func() (*domain.RawRecord, *domain.RawRecord) {
		a := &domain.RawRecord{
			ID:     "a-1",
			Schema: "article",
			Payload: map[string]any{
				"title":  "t",
				"author": "p-1",
			},
		}
		b := &domain.RawRecord{ID: "p-1", Schema: "person", Payload: map[string]any{"name": "n"}}
		return a, b
	}

	for _, order := range []string{"forward-first", "target-first"} {
		order := order
		t.Run(order, func(t *testing.T) {
			t.Parallel()
			a, b := build()
			items := []item{{rec: a, index: 0}, {rec: b, index: 1}}
			if order == "target-first" {
				items = []item{{rec: b, index: 0}, {rec: a, index: 1}}
			}
			p := newTestPreparer()
			p.prepare(items)

			got, ok := b.Payload["articles"].([]any)
			if !ok || !reflect.DeepEqual(got, []any{"a-1"}) {
				t.Fatalf("inverse property not cascaded: %v", b.Payload["articles"])
			}
		})
	}
}

func TestPrepare_CascadeSetSemantics(t *testing.T) {
	t.Parallel()

	a := &domain.RawRecord{
		ID:     "a-1",
		Schema: "article",
		Payload: map[string]any{
			"title":  "t",
			"author": []any{"p-1", "p-1"},
		},
	}
	b := &domain.RawRecord{
		ID:      "p-1",
		Schema:  "person",
		Payload: map[string]any{"name": "n", "articles": []any{"a-1"}},
	}
	p := newTestPreparer()
	p.prepare([]item{{rec: a}, {rec: b, index: 1}})

	if got := b.Payload["articles"]; !reflect.DeepEqual(got, []any{"a-1"}) {
		t.Fatalf("duplicate back-references appended: %v", got)
	}
}

func TestPrepare_UnresolvableSchemaPassesThrough(t *testing.T) {
	t.Parallel()

	rec := &domain.RawRecord{ID: "a-1", Schema: "ghost", Payload: map[string]any{"title": "t"}}
	p := newTestPreparer()
	p.prepare([]item{{rec: rec}})

	if rec.Name != "" || rec.Slug != "" || rec.Published != "" {
		t.Fatalf("unresolvable record must not be hydrated: %+v", rec)
	}
}
