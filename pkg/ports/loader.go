package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// TreeLoader defines how the engine retrieves state declarations.
// This allows the declaration source (Go DSL, files, Loam) to be decoupled.
type TreeLoader interface {
	// Load returns the declarations in declaration order. The order matters:
	// it breaks priority ties between siblings.
	Load(ctx context.Context) ([]domain.StateSpec, error)
}
