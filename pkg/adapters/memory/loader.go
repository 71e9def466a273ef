package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.TreeLoader over a fixed list of declarations.
type Loader struct {
	specs []domain.StateSpec
}

// NewLoader creates a new Loader returning specs in the given order.
func NewLoader(specs ...domain.StateSpec) *Loader {
	return &Loader{specs: append([]domain.StateSpec(nil), specs...)}
}

// Load returns a copy of the declarations.
func (l *Loader) Load(ctx context.Context) ([]domain.StateSpec, error) {
	for i, s := range l.specs {
		if s.ID == "" {
			return nil, fmt.Errorf("declaration #%d missing ID", i)
		}
	}
	return append([]domain.StateSpec(nil), l.specs...), nil
}
