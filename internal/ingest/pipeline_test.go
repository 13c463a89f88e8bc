package ingest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"objectloader/internal/domain"
	"objectloader/internal/identity"
	"objectloader/internal/store"
)

func newTestService(st store.Store) *Service {
	svc := NewService(st, articleResolver(), identity.NewStatic("owner", "org"), zap.NewNop())
	svc.now = fixedNow
	svc.newID = sequenceIDs()
	return svc
}

func articleRecords(n int) []*domain.RawRecord {
	recs := make([]*domain.RawRecord, n)
	for i := range recs {
		recs[i] = &domain.RawRecord{
			ID:      fmt.Sprintf("a-%04d", i),
			Payload: map[string]any{"title": fmt.Sprintf("Title %d", i)},
		}
	}
	return recs
}

func TestIngest_ClassifiesAndCollectsInvalid(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	svc := newTestService(mem)
	opts := Options{Register: "pub", Schema: "article", Validate: true}

	records := articleRecords(3)
	records = append(records, &domain.RawRecord{
		ID:      "bad-1",
		Payload: map[string]any{"body": "no title"},
	})

	res, err := svc.Ingest(context.Background(), records, opts)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	want := domain.Statistics{
		TotalProcessed:   3,
		Saved:            3,
		Invalid:          1,
		ProcessingTimeMs: res.Statistics.ProcessingTimeMs,
	}
	if res.Statistics != want {
		t.Fatalf("statistics mismatch:\n got  %+v\n want %+v", res.Statistics, want)
	}
	if len(res.Invalid) != 1 || res.Invalid[0].Index != 3 {
		t.Fatalf("invalid record index mismatch: %+v", res.Invalid)
	}
	if mem.Len() != 3 {
		t.Fatalf("store holds %d objects, want 3", mem.Len())
	}
	if res.Performance.TotalRequested != 4 || res.Performance.Efficiency != 0.75 {
		t.Fatalf("performance mismatch: %+v", res.Performance)
	}
	if res.Performance.DeduplicationEfficiency != 0 {
		t.Fatalf("dedup efficiency should be unset without unchanged records")
	}
}

func TestIngest_ResubmissionIsUnchanged(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	opts := Options{Register: "pub", Schema: "article"}

	if _, err := newTestService(mem).Ingest(context.Background(), articleRecords(3), opts); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	res, err := newTestService(mem).Ingest(context.Background(), articleRecords(3), opts)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if res.Statistics.Saved != 0 || res.Statistics.Updated != 0 || res.Statistics.Unchanged != 3 {
		t.Fatalf("resubmission not idempotent: %+v", res.Statistics)
	}
	if res.Performance.DeduplicationEfficiency != 1 {
		t.Fatalf("dedup efficiency = %v, want 1", res.Performance.DeduplicationEfficiency)
	}
}

func TestIngest_ContentChangeIsUpdated(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	opts := Options{Register: "pub", Schema: "article"}

	if _, err := newTestService(mem).Ingest(context.Background(), articleRecords(3), opts); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	records := articleRecords(3)
	records[1].Payload["title"] = "Rewritten"
	res, err := newTestService(mem).Ingest(context.Background(), records, opts)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if res.Statistics.Updated != 1 || res.Statistics.Unchanged != 2 {
		t.Fatalf("change detection failed: %+v", res.Statistics)
	}
	if len(res.Updated) != 1 || res.Updated[0].UUID != "a-0001" {
		t.Fatalf("wrong object classified updated: %+v", res.Updated)
	}
}

func TestIngest_PerRecordContextOverridesDefaults(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	svc := newTestService(mem)
	records := []*domain.RawRecord{
		{ID: "a-1", Payload: map[string]any{"title": "uses defaults"}},
		{ID: "p-1", Register: "people", Schema: "person", Payload: map[string]any{"name": "explicit"}},
	}
	res, err := svc.Ingest(context.Background(), records, Options{Register: "pub", Schema: "article"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Statistics.Saved != 2 {
		t.Fatalf("statistics mismatch: %+v", res.Statistics)
	}
	a, _ := mem.Get("a-1")
	if a.Register != "pub" || a.Schema != "article" {
		t.Fatalf("defaults not applied: %+v", a)
	}
	p, _ := mem.Get("p-1")
	if p.Register != "people" || p.Schema != "person" {
		t.Fatalf("explicit context overridden: %+v", p)
	}
}

func TestIngest_WriteBackReachesStoredTargets(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	mem.Seed(domain.Object{
		UUID:    "p-1",
		Schema:  "person",
		Payload: map[string]any{"name": "stored person"},
	})
	svc := newTestService(mem)
	records := []*domain.RawRecord{{
		ID:      "a-1",
		Payload: map[string]any{"title": "t", "author": "p-1"},
	}}
	if _, err := svc.Ingest(context.Background(), records, Options{Register: "pub", Schema: "article"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	p, ok := mem.Get("p-1")
	if !ok {
		t.Fatalf("target vanished")
	}
	if got := p.Payload["articles"]; !reflect.DeepEqual(got, []any{"a-1"}) {
		t.Fatalf("inverse relation not written back: %v", got)
	}
}

func TestIngest_DuplicateIdentifiersCollapse(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	svc := newTestService(mem)
	records := []*domain.RawRecord{
		{ID: "dup-1", Payload: map[string]any{"title": "first submission"}},
		{ID: "a-1", Payload: map[string]any{"title": "unrelated"}},
		{ID: "dup-1", Payload: map[string]any{"title": "second submission"}},
	}
	res, err := svc.Ingest(context.Background(), records, Options{Register: "pub", Schema: "article"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// One upsert row per identifier; the later duplicate wins.
	if res.Statistics.Saved != 2 || res.Statistics.TotalProcessed != 2 {
		t.Fatalf("duplicates not collapsed: %+v", res.Statistics)
	}
	if mem.Len() != 2 {
		t.Fatalf("store holds %d objects, want 2", mem.Len())
	}
	o, _ := mem.Get("dup-1")
	if o.Payload["title"] != "second submission" {
		t.Fatalf("last occurrence must win: %v", o.Payload)
	}
	if res.Performance.TotalRequested != 3 {
		t.Fatalf("requested count lost: %+v", res.Performance)
	}
}

func TestIngest_CallerRecordsNotMutated(t *testing.T) {
	t.Parallel()

	rec := &domain.RawRecord{Payload: map[string]any{"title": "hands off"}}
	svc := newTestService(store.NewMemory())
	if _, err := svc.Ingest(context.Background(), []*domain.RawRecord{rec},
		Options{Register: "pub", Schema: "article"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if rec.Register != "" || rec.Schema != "" {
		t.Fatalf("defaults written into caller's record: %+v", rec)
	}
	if rec.ID != "" || rec.GeneratedID {
		t.Fatalf("assigned identifier leaked into caller's record: %+v", rec)
	}
	if rec.Name != "" || rec.Slug != "" {
		t.Fatalf("hydration leaked into caller's record: %+v", rec)
	}
}

// failAfter lets the first n upsert chunks through, then fails.
type failAfter struct {
	*store.Memory
	n     int
	calls int
}

func (f *failAfter) BulkUpsert(ctx context.Context, objs []domain.Object) ([]store.Outcome, error) {
	f.calls++
	if f.calls > f.n {
		return nil, errors.New("connection reset by peer")
	}
	return f.Memory.BulkUpsert(ctx, objs)
}

func TestIngest_StoreFailureKeepsPartialResult(t *testing.T) {
	t.Parallel()

	st := &failAfter{Memory: store.NewMemory(), n: 1}
	svc := newTestService(st)

	// 2500 valid records chunk as 2000 + 500; the second chunk fails.
	res, err := svc.Ingest(context.Background(), articleRecords(2_500),
		Options{Register: "pub", Schema: "article"})
	if err == nil {
		t.Fatalf("expected a store error")
	}
	if res == nil {
		t.Fatalf("result must survive a store failure")
	}
	if res.Statistics.Saved != 2_000 {
		t.Fatalf("partial outcome lost: %+v", res.Statistics)
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != "store" {
		t.Fatalf("operation error mismatch: %+v", res.Errors)
	}
	if st.calls != 2 {
		t.Fatalf("remaining chunks not aborted: %d upsert calls", st.calls)
	}
}

func TestIngest_EmptyBatch(t *testing.T) {
	t.Parallel()

	svc := newTestService(store.NewMemory())
	res, err := svc.Ingest(context.Background(), nil, Options{Register: "pub", Schema: "article"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Statistics.TotalProcessed != 0 || len(res.Errors) != 0 {
		t.Fatalf("empty batch produced outcomes: %+v", res.Statistics)
	}
}
