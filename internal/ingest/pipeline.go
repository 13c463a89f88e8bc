// Package ingest implements the bulk record ingestion and upsert
// pipeline: preparation, transformation, adaptive chunking, classified
// persistence, and post-persist inverse-relation write-back.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"objectloader/internal/domain"
	"objectloader/internal/identity"
	"objectloader/internal/schema"
	"objectloader/internal/store"
)

// Options shape one ingestion call. Register and Schema, when set, apply
// to every record lacking an explicit override (single-schema fast path);
// otherwise each record must declare its own (mixed-schema mode). Both
// paths run the same pipeline; only the per-record resolution differs.
type Options struct {
	Register string
	Schema   string
	Validate bool
}

// Service is the ingestion entry point. It owns no per-call state; the
// schema cache and batch index are created inside Ingest and discarded
// with it, so independent calls can never observe each other's schemas.
type Service struct {
	store    store.Store
	resolver schema.Resolver
	identity identity.Provider
	log      *zap.Logger

	// hooks, overridable in tests
	now   func() time.Time
	newID func() string
}

// NewService wires a Service.
func NewService(st store.Store, resolver schema.Resolver, id identity.Provider, log *zap.Logger) *Service {
	return &Service{
		store:    st,
		resolver: resolver,
		identity: id,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Ingest runs one bulk operation: prepare, transform, upsert chunk by
// chunk, write back inverse relations, aggregate statistics. Chunks run
// strictly sequentially; a store failure aborts the remaining chunks but
// the result still carries everything accumulated up to that point,
// alongside the returned error.
func (s *Service) Ingest(ctx context.Context, records []*domain.RawRecord, opts Options) (*domain.BulkResult, error) {
	start := time.Now()
	res := &domain.BulkResult{}
	cache := schema.NewCache(s.resolver)

	// Records are copied so defaulting and hydration never mutate the
	// caller's structs.
	items := make([]item, 0, len(records))
	for i, rec := range records {
		if rec == nil {
			continue
		}
		r := *rec
		if r.Register == "" {
			r.Register = opts.Register
		}
		if r.Schema == "" {
			r.Schema = opts.Schema
		}
		items = append(items, item{rec: &r, index: i})
	}

	prep := &preparer{cache: cache, log: s.log, now: s.now, newID: s.newID}
	prep.prepare(items)

	tr := &transformer{cache: cache, identity: s.identity, validate: opts.Validate}
	objs, invalid := tr.transform(items)
	res.Invalid = invalid

	objs = dedupeByUUID(objs)

	var hardErr error
	chunks := splitChunks(objs, ChunkSize(len(objs)))
	for ci, chunk := range chunks {
		outcomes, err := s.store.BulkUpsert(ctx, chunk)
		if err != nil {
			hardErr = fmt.Errorf("chunk %d/%d: %w", ci+1, len(chunks), err)
			res.Errors = append(res.Errors, domain.OperationError{Message: hardErr.Error(), Kind: "store"})
			break
		}
		mergeOutcomes(res, chunk, outcomes)
		s.log.Debug("chunk committed",
			zap.Int("chunk", ci+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("objects", len(chunk)))
	}

	if hardErr == nil && len(res.Saved)+len(res.Updated) > 0 {
		wb := &writeBack{store: s.store, log: s.log}
		written := make([]domain.Object, 0, len(res.Saved)+len(res.Updated))
		written = append(written, res.Saved...)
		written = append(written, res.Updated...)
		wb.apply(ctx, written, cache)
	}

	s.aggregate(res, len(records), time.Since(start))
	s.log.Info("bulk ingest finished",
		zap.Int("requested", len(records)),
		zap.Int("saved", res.Statistics.Saved),
		zap.Int("updated", res.Statistics.Updated),
		zap.Int("unchanged", res.Statistics.Unchanged),
		zap.Int("invalid", res.Statistics.Invalid),
		zap.Int("errors", res.Statistics.Errors),
		zap.Int64("elapsed_ms", res.Statistics.ProcessingTimeMs),
		zap.Float64("objects_per_second", res.Performance.ObjectsPerSecond))
	return res, hardErr
}

// mergeOutcomes folds one chunk's classifications into the running
// result.
func mergeOutcomes(res *domain.BulkResult, chunk []domain.Object, outcomes []store.Outcome) {
	byUUID := make(map[string]domain.Object, len(chunk))
	for _, o := range chunk {
		byUUID[o.UUID] = o
	}
	for _, oc := range outcomes {
		obj, ok := byUUID[oc.UUID]
		if !ok {
			continue
		}
		switch oc.State {
		case domain.StateCreated:
			res.Saved = append(res.Saved, obj)
		case domain.StateUpdated:
			res.Updated = append(res.Updated, obj)
		case domain.StateUnchanged:
			res.Unchanged = append(res.Unchanged, obj)
		}
	}
}

// aggregate computes the statistics and performance blocks.
func (s *Service) aggregate(res *domain.BulkResult, requested int, elapsed time.Duration) {
	processed := len(res.Saved) + len(res.Updated) + len(res.Unchanged)
	res.Statistics = domain.Statistics{
		TotalProcessed:   processed,
		Saved:            len(res.Saved),
		Updated:          len(res.Updated),
		Unchanged:        len(res.Unchanged),
		Invalid:          len(res.Invalid),
		Errors:           len(res.Errors),
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
	perf := domain.Performance{
		TotalTimeMs:    elapsed.Milliseconds(),
		TotalProcessed: processed,
		TotalRequested: requested,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		perf.ObjectsPerSecond = float64(processed) / secs
	}
	if requested > 0 {
		perf.Efficiency = float64(processed) / float64(requested)
	}
	if processed > 0 && len(res.Unchanged) > 0 {
		perf.DeduplicationEfficiency = float64(len(res.Unchanged)) / float64(processed)
	}
	res.Performance = perf
}
