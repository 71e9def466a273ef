package condition

import (
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Predicate decides a named condition for one entity at one tick.
// It must be side-effect free.
type Predicate func(scope domain.Scope) bool

// Registry maps predicate names to predicates and evaluates expressions over them.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
	frozen     bool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		predicates: make(map[string]Predicate),
	}
}

// Register adds a predicate to the registry.
// If a predicate with the same name exists, it is overwritten.
// Registering after Freeze panics with a *domain.ProgrammingError.
func (r *Registry) Register(name string, fn Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(&domain.ProgrammingError{Op: "register condition", Msg: "registry is frozen: " + name})
	}
	r.predicates[name] = fn
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	_, ok := r.predicates[name]
	r.mu.RUnlock()
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.predicates))
	for name := range r.predicates {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Check reports the first leaf of expr that is not registered.
func (r *Registry) Check(expr Expr) error {
	for _, name := range expr.Leaves() {
		if !r.Has(name) {
			return &domain.UnknownConditionError{Name: name}
		}
	}
	return nil
}

// Evaluate computes expr against scope. And and Or short-circuit left to right.
// An unregistered leaf fails with *domain.UnknownConditionError; it is never
// treated as false.
func (r *Registry) Evaluate(expr Expr, scope domain.Scope) (bool, error) {
	switch expr.Kind {
	case KindLeaf:
		r.mu.RLock()
		fn, ok := r.predicates[expr.Name]
		r.mu.RUnlock()
		if !ok {
			return false, &domain.UnknownConditionError{Name: expr.Name}
		}
		return fn(scope), nil

	case KindNot:
		if len(expr.Args) != 1 {
			return false, &domain.ProgrammingError{Op: "evaluate", Msg: "not requires exactly one argument"}
		}
		v, err := r.Evaluate(expr.Args[0], scope)
		if err != nil {
			return false, err
		}
		return !v, nil

	case KindAnd:
		for _, arg := range expr.Args {
			v, err := r.Evaluate(arg, scope)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil

	case KindOr:
		for _, arg := range expr.Args {
			v, err := r.Evaluate(arg, scope)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	}
	return false, &domain.ProgrammingError{Op: "evaluate", Msg: "unknown expression kind " + expr.Kind.String()}
}
