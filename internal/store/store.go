// Package store contains the persistence contracts and backends for the
// ingestion pipeline. Backends must support insert-or-update keyed by
// object UUID, a batched fetch, and a batched update; the Postgres
// backend additionally reports per-object created/updated/unchanged
// classification computed inside the write statement itself.
package store

import (
	"context"

	"objectloader/internal/domain"
)

// Outcome is the store's classification for one upserted object.
type Outcome struct {
	UUID  string
	State domain.WriteState
}

// Store is an upsert-capable object store.
type Store interface {
	// BulkUpsert writes one chunk in a single insert-or-update operation
	// keyed by UUID and returns an outcome per object. Classification must
	// come from the same operation that performs the write; backends that
	// cannot provide the signal degrade every outcome to created.
	BulkUpsert(ctx context.Context, objs []domain.Object) ([]Outcome, error)

	// FetchByUUIDs returns the stored objects for the given identifiers in
	// one call. Unknown identifiers are simply absent from the result.
	FetchByUUIDs(ctx context.Context, uuids []string) ([]domain.Object, error)

	// BulkUpdate persists mutations to already-stored objects in one call.
	BulkUpdate(ctx context.Context, objs []domain.Object) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
