package store

import (
	"context"
	"sync"

	"objectloader/internal/domain"
)

// Memory is an in-process store with full classification fidelity. It
// backs hermetic tests and the -db_driver=memory dry-run mode.
type Memory struct {
	mu      sync.Mutex
	objects map[string]domain.Object
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]domain.Object)}
}

// Seed inserts objects directly, bypassing classification. Test helper.
func (m *Memory) Seed(objs ...domain.Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range objs {
		m.objects[o.UUID] = o
	}
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// BulkUpsert implements Store. The content hash decides updated versus
// unchanged, mirroring the Postgres backend's write-statement predicate.
func (m *Memory) BulkUpsert(_ context.Context, objs []domain.Object) ([]Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcomes := make([]Outcome, 0, len(objs))
	for _, o := range objs {
		prior, exists := m.objects[o.UUID]
		switch {
		case !exists:
			m.objects[o.UUID] = o
			outcomes = append(outcomes, Outcome{UUID: o.UUID, State: domain.StateCreated})
		case prior.Hash == o.Hash:
			outcomes = append(outcomes, Outcome{UUID: o.UUID, State: domain.StateUnchanged})
		default:
			m.objects[o.UUID] = o
			outcomes = append(outcomes, Outcome{UUID: o.UUID, State: domain.StateUpdated})
		}
	}
	return outcomes, nil
}

// FetchByUUIDs implements Store.
func (m *Memory) FetchByUUIDs(_ context.Context, uuids []string) ([]domain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Object, 0, len(uuids))
	for _, id := range uuids {
		if o, ok := m.objects[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// BulkUpdate implements Store.
func (m *Memory) BulkUpdate(_ context.Context, objs []domain.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range objs {
		m.objects[o.UUID] = o
	}
	return nil
}

// Get returns a stored object. Test helper.
func (m *Memory) Get(uuid string) (domain.Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[uuid]
	return o, ok
}

// Close implements Store.
func (m *Memory) Close(context.Context) error { return nil }
