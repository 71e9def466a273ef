package dsl

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	spec    domain.StateSpec
	builder *Builder
}

// Parent nests the state under another state.
func (s *StateBuilder) Parent(parent domain.StateID) *StateBuilder {
	s.spec.Parent = parent
	return s
}

// Priority sets the priority among siblings. Higher wins.
func (s *StateBuilder) Priority(p int) *StateBuilder {
	s.spec.Priority = p
	return s
}

// Enter sets the enter condition, e.g. "and(has_target, not(low_health))".
func (s *StateBuilder) Enter(expr string) *StateBuilder {
	s.spec.Enter = expr
	return s
}

// Exit sets the exit condition.
func (s *StateBuilder) Exit(expr string) *StateBuilder {
	s.spec.Exit = expr
	return s
}

// Strategy sets how the parent is re-entered when a transition bubbles
// through the edge from this state.
func (s *StateBuilder) Strategy(st domain.Strategy) *StateBuilder {
	s.spec.Strategy = st
	return s
}

// Continue is shorthand for Strategy(domain.StrategyContinue).
func (s *StateBuilder) Continue() *StateBuilder {
	return s.Strategy(domain.StrategyContinue)
}

// State starts the next declaration on the owning builder.
func (s *StateBuilder) State(id domain.StateID) *StateBuilder {
	return s.builder.State(id)
}

// Build compiles the owning builder.
func (s *StateBuilder) Build() (*tree.Tree, error) {
	return s.builder.Build()
}

// Spec returns the underlying declaration.
func (s *StateBuilder) Spec() domain.StateSpec {
	return s.spec
}
