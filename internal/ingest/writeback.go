package ingest

import (
	"context"

	"go.uber.org/zap"

	"objectloader/internal/domain"
	"objectloader/internal/schema"
	"objectloader/internal/store"
)

// writeBackOp is the ephemeral unit queued between the collection pass
// and the application pass: mirror source's identifier onto target's
// inverse property.
type writeBackOp struct {
	target   string
	source   string
	property string
}

// writeBack propagates inverse-relation updates to already-stored related
// objects after persistence. Two passes around a single batched fetch and
// a single batched update; a failure anywhere is logged and swallowed,
// because a missed inverse update must not invalidate the primary save.
type writeBack struct {
	store store.Store
	log   *zap.Logger
}

func (w *writeBack) apply(ctx context.Context, written []domain.Object, cache *schema.Cache) {
	inBatch := make(map[string]struct{}, len(written))
	for _, o := range written {
		inBatch[o.UUID] = struct{}{}
	}

	// Collection pass: gather every write-back-eligible related identifier
	// across the whole result set. Targets that were part of the batch were
	// already cascaded by the preparer before persist.
	var ops []writeBackOp
	targetSet := make(map[string]struct{})
	for _, o := range written {
		_, analysis, err := cache.Resolve(o.Schema)
		if err != nil {
			continue
		}
		payload := businessView(o.Payload)
		for _, inv := range analysis.Inverse {
			if !inv.WriteBack {
				continue
			}
			for _, ref := range forwardIDs(payload[inv.Property]) {
				if ref == o.UUID {
					continue
				}
				if _, sibling := inBatch[ref]; sibling {
					continue
				}
				ops = append(ops, writeBackOp{target: ref, source: o.UUID, property: inv.InversedBy})
				targetSet[ref] = struct{}{}
			}
		}
	}
	if len(ops) == 0 {
		return
	}

	targets := make([]string, 0, len(targetSet))
	for id := range targetSet {
		targets = append(targets, id)
	}
	related, err := w.store.FetchByUUIDs(ctx, targets)
	if err != nil {
		w.log.Warn("write-back fetch failed; skipping inverse updates",
			zap.Int("targets", len(targets)), zap.Error(err))
		return
	}
	byUUID := make(map[string]*domain.Object, len(related))
	for i := range related {
		byUUID[related[i].UUID] = &related[i]
	}

	// Application pass: set-semantics append, queue only objects that
	// actually changed.
	dirty := make(map[string]*domain.Object)
	for _, op := range ops {
		rel, ok := byUUID[op.target]
		if !ok {
			continue
		}
		if rel.Payload == nil {
			rel.Payload = map[string]any{}
		}
		payload := businessView(rel.Payload)
		before := len(forwardIDs(payload[op.property]))
		payload[op.property] = appendUnique(payload[op.property], op.source)
		if len(forwardIDs(payload[op.property])) != before {
			dirty[rel.UUID] = rel
		}
	}
	if len(dirty) == 0 {
		return
	}

	updates := make([]domain.Object, 0, len(dirty))
	for _, rel := range dirty {
		rel.Hash = domain.ContentHash(rel)
		updates = append(updates, *rel)
	}
	if err := w.store.BulkUpdate(ctx, updates); err != nil {
		w.log.Warn("write-back update failed; inverse relations not persisted",
			zap.Int("objects", len(updates)), zap.Error(err))
	}
}
