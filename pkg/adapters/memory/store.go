package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
)

// Store implements ports.InstanceStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[domain.EntityID]*machine.Instance
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[domain.EntityID]*machine.Instance),
	}
}

// Save persists the instance in memory.
func (s *Store) Save(ctx context.Context, inst *machine.Instance) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := inst.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[inst.Entity] = copied
	return nil
}

// Load retrieves the instance from memory.
func (s *Store) Load(ctx context.Context, entity domain.EntityID) (*machine.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.data[entity]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}

	// Copy on read so callers can't mutate store state through the pointer
	return inst.Clone(), nil
}

// Delete removes the instance.
func (s *Store) Delete(ctx context.Context, entity domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, entity)
	return nil
}

// List returns the attached entities, sorted.
func (s *Store) List(ctx context.Context) ([]domain.EntityID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities := make([]domain.EntityID, 0, len(s.data))
	for id := range s.data {
		entities = append(entities, id)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })
	return entities, nil
}
