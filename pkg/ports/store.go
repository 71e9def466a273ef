package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
)

// InstanceStore defines the external key-value store of state machine instances,
// keyed by entity.
type InstanceStore interface {
	// Save persists the instance under inst.Entity.
	Save(ctx context.Context, inst *machine.Instance) error

	// Load retrieves the instance of an entity.
	// Returns domain.ErrInstanceNotFound if the entity is not attached.
	Load(ctx context.Context, entity domain.EntityID) (*machine.Instance, error)

	// Delete removes the instance of an entity. Deleting a missing entity is not an error.
	Delete(ctx context.Context, entity domain.EntityID) error

	// List returns the attached entities.
	List(ctx context.Context) ([]domain.EntityID, error)
}
