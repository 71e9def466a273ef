package dsl

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

// Builder collects state declarations in declaration order.
type Builder struct {
	order  []domain.StateID
	states map[domain.StateID]*StateBuilder
}

// New creates an empty tree builder.
func New() *Builder {
	return &Builder{
		states: make(map[domain.StateID]*StateBuilder),
	}
}

// State declares a new state in the tree.
// If the state already exists, it returns the existing builder so the
// declaration can be amended.
func (b *Builder) State(id domain.StateID) *StateBuilder {
	if sb, ok := b.states[id]; ok {
		return sb
	}
	sb := &StateBuilder{
		spec:    domain.StateSpec{ID: id},
		builder: b,
	}
	b.states[id] = sb
	b.order = append(b.order, id)
	return sb
}

// Specs returns the declarations in the order they were first declared.
func (b *Builder) Specs() []domain.StateSpec {
	specs := make([]domain.StateSpec, 0, len(b.order))
	for _, id := range b.order {
		specs = append(specs, b.states[id].spec)
	}
	return specs
}

// Build compiles the declarations into a validated tree.
func (b *Builder) Build() (*tree.Tree, error) {
	t, err := tree.Build(b.Specs())
	if err != nil {
		return nil, fmt.Errorf("failed to build state tree: %w", err)
	}
	return t, nil
}
