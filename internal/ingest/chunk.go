package ingest

import "objectloader/internal/domain"

// ChunkSize computes the adaptive chunk size for a batch of total
// records. Small batches go through in a single statement; larger ones
// are capped to balance per-statement overhead against statement-size and
// lock-duration limits of the store. The thresholds are an empirically
// tuned policy, not derived analytically.
func ChunkSize(total int) int {
	switch {
	case total <= 1_000:
		return total
	case total <= 5_000:
		return 2_000
	case total <= 10_000:
		return 3_000
	case total <= 50_000:
		return 5_000
	default:
		return 10_000
	}
}

// dedupeByUUID collapses records sharing an identifier, keeping the last
// occurrence at the first occurrence's position. Postgres rejects an
// upsert statement that affects the same row twice, so duplicates must
// never reach one chunk.
func dedupeByUUID(objs []domain.Object) []domain.Object {
	pos := make(map[string]int, len(objs))
	out := make([]domain.Object, 0, len(objs))
	for _, o := range objs {
		if i, dup := pos[o.UUID]; dup {
			out[i] = o
			continue
		}
		pos[o.UUID] = len(out)
		out = append(out, o)
	}
	return out
}

// splitChunks cuts objs into sequential chunks of at most size records.
func splitChunks(objs []domain.Object, size int) [][]domain.Object {
	if len(objs) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(objs)
	}
	chunks := make([][]domain.Object, 0, (len(objs)+size-1)/size)
	for start := 0; start < len(objs); start += size {
		end := start + size
		if end > len(objs) {
			end = len(objs)
		}
		chunks = append(chunks, objs[start:end])
	}
	return chunks
}
