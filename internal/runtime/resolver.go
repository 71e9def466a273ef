package runtime

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/history"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/aretw0/arbor/pkg/tree"
)

// Plan is the fully resolved effect of one tick, computed before any hook runs.
type Plan struct {
	Outcome domain.Outcome
	// Exits lists states to leave, child to parent.
	Exits []domain.StateID
	// Enters lists states to enter, parent to child.
	Enters []domain.StateID
}

// Resolver decides the outcome of a tick from a snapshot of an instance.
// It evaluates every condition the tick needs; the Driver evaluates none.
type Resolver struct {
	tree       *tree.Tree
	conditions *condition.Registry

	// ImplicitExit treats an absent exit condition as true.
	// By default a leaf without an exit condition never leaves on its own.
	ImplicitExit bool
}

// NewResolver creates a resolver over a built tree and a condition registry.
func NewResolver(t *tree.Tree, conditions *condition.Registry) *Resolver {
	return &Resolver{tree: t, conditions: conditions}
}

// Resolve computes the plan for inst at tick. inst is not modified.
// A condition failure aborts the tick: the returned plan is Stay.
func (r *Resolver) Resolve(inst *machine.Instance, tick domain.Tick) (Plan, error) {
	stay := Plan{Outcome: domain.Stay(inst.Current)}
	if inst.Stationary || inst.Terminated {
		return stay, nil
	}

	if inst.Pending != "" {
		plan, err := r.resolvePending(inst, tick)
		if err != nil {
			return stay, err
		}
		return plan, nil
	}

	leaf, ok := r.tree.Node(inst.Current)
	if !ok {
		return stay, &domain.ProgrammingError{
			Op:     "resolve",
			Entity: inst.Entity,
			Msg:    fmt.Sprintf("current state %q", inst.Current),
			Err:    domain.ErrUnknownState,
		}
	}

	leaving, err := r.wantsExit(inst.Entity, leaf, tick)
	if err != nil {
		return stay, err
	}
	if !leaving {
		return stay, nil
	}

	plan, err := r.propagate(inst, leaf, tick)
	if err != nil {
		return stay, err
	}
	return plan, nil
}

func (r *Resolver) wantsExit(entity domain.EntityID, leaf tree.Node, tick domain.Tick) (bool, error) {
	if leaf.Exit == nil {
		return r.ImplicitExit, nil
	}
	ok, err := r.conditions.Evaluate(*leaf.Exit, domain.Scope{Entity: entity, State: leaf.ID, Tick: tick})
	if err != nil {
		return false, fmt.Errorf("exit condition of %q: %w", leaf.ID, err)
	}
	return ok, nil
}

// eligible reports whether a candidate's enter condition holds. An absent
// enter condition always holds.
func (r *Resolver) eligible(entity domain.EntityID, id domain.StateID, tick domain.Tick) (bool, error) {
	node, ok := r.tree.Node(id)
	if !ok || node.Enter == nil {
		return ok, nil
	}
	ok, err := r.conditions.Evaluate(*node.Enter, domain.Scope{Entity: entity, State: id, Tick: tick})
	if err != nil {
		return false, fmt.Errorf("enter condition of %q: %w", id, err)
	}
	return ok, nil
}

func (r *Resolver) resolvePending(inst *machine.Instance, tick domain.Tick) (Plan, error) {
	if !r.tree.Has(inst.Pending) {
		return Plan{}, &domain.ProgrammingError{
			Op:     "resolve",
			Entity: inst.Entity,
			Msg:    fmt.Sprintf("pending state %q", inst.Pending),
			Err:    domain.ErrUnknownState,
		}
	}

	enters := reversed(r.tree.Lineage(inst.Pending))
	enters, err := r.descend(inst.Entity, enters, tick)
	if err != nil {
		return Plan{}, err
	}
	to := enters[len(enters)-1]
	return Plan{
		Outcome: domain.Outcome{
			Kind:     domain.OutcomeTransition,
			From:     inst.Current,
			To:       to,
			Target:   inst.Pending,
			Strategy: domain.StrategyReset,
		},
		Enters: enters,
	}, nil
}

// descend extends path from its last state through the first eligible child
// at every level, until a state has no eligible child.
func (r *Resolver) descend(entity domain.EntityID, path []domain.StateID, tick domain.Tick) ([]domain.StateID, error) {
	current := path[len(path)-1]
	for {
		next := domain.StateID("")
		for _, child := range r.tree.ChildrenOf(current) {
			ok, err := r.eligible(entity, child, tick)
			if err != nil {
				return nil, err
			}
			if ok {
				next = child
				break
			}
		}
		if next == "" {
			return path, nil
		}
		path = append(path, next)
		current = next
	}
}

// propagate walks up from the exiting leaf. At every level the exited branch
// node is excluded from the candidates unless it is the only eligible one.
func (r *Resolver) propagate(inst *machine.Instance, leaf tree.Node, tick domain.Tick) (Plan, error) {
	lineage := r.tree.Lineage(leaf.ID)

	for i, exited := range lineage {
		var pivot domain.StateID
		var candidates []domain.StateID
		if i+1 < len(lineage) {
			pivot = lineage[i+1]
			candidates = r.tree.ChildrenOf(pivot)
		} else {
			candidates = r.tree.Roots()
		}

		target, err := r.selectCandidate(inst.Entity, candidates, exited, tick)
		if err != nil {
			return Plan{}, err
		}
		if target == "" {
			continue
		}

		strategy := domain.StrategyReset
		if pivot != "" {
			node, _ := r.tree.Node(exited)
			strategy = node.Strategy
		}
		exits := append([]domain.StateID(nil), lineage[:i+1]...)
		return r.apply(inst, leaf.ID, exits, pivot, exited, target, strategy, tick)
	}

	return Plan{
		Outcome: domain.Outcome{Kind: domain.OutcomeTerminate, From: leaf.ID},
		Exits:   lineage,
	}, nil
}

func (r *Resolver) selectCandidate(entity domain.EntityID, candidates []domain.StateID, exited domain.StateID, tick domain.Tick) (domain.StateID, error) {
	exitedEligible := false
	for _, id := range candidates {
		ok, err := r.eligible(entity, id, tick)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if id != exited {
			return id, nil
		}
		exitedEligible = true
	}
	if exitedEligible {
		return exited, nil
	}
	return "", nil
}

func (r *Resolver) apply(inst *machine.Instance, from domain.StateID, exits []domain.StateID, pivot, exited, target domain.StateID, strategy domain.Strategy, tick domain.Tick) (Plan, error) {
	outcome := domain.Outcome{
		Kind:     domain.OutcomeTransition,
		From:     from,
		Target:   target,
		Pivot:    pivot,
		Strategy: strategy,
	}

	var enters []domain.StateID
	switch strategy {
	case domain.StrategyExit:
		outcome.To = pivot
		return Plan{Outcome: outcome, Exits: exits}, nil

	case domain.StrategyContinue:
		skip := func(id domain.StateID) bool {
			return id == exited || r.tree.IsDescendant(id, exited)
		}
		resumed, ok := history.MostRecentUnder(inst.History, r.tree.AncestorsOf, pivot, skip)
		if ok {
			enters = r.pathBelow(pivot, resumed)
			outcome.Target = enters[0]
			break
		}
		outcome.Strategy = domain.StrategyReset
		enters = []domain.StateID{target}

	default:
		enters = []domain.StateID{target}
	}

	enters, err := r.descend(inst.Entity, enters, tick)
	if err != nil {
		return Plan{}, err
	}
	outcome.To = enters[len(enters)-1]
	return Plan{Outcome: outcome, Exits: exits, Enters: enters}, nil
}

// pathBelow returns the states strictly below ancestor down to id, parent to child.
func (r *Resolver) pathBelow(ancestor, id domain.StateID) []domain.StateID {
	var path []domain.StateID
	for _, s := range r.tree.Lineage(id) {
		if s == ancestor {
			break
		}
		path = append(path, s)
	}
	return reversed(path)
}

func reversed(ids []domain.StateID) []domain.StateID {
	out := make([]domain.StateID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
