package tree

import (
	"fmt"
	"sort"

	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
)

// Node is a built state: its declaration plus parsed conditions and resolved children.
type Node struct {
	ID       domain.StateID
	Parent   domain.StateID
	Priority int
	Strategy domain.Strategy
	Depth    int

	// Enter and Exit are nil when the declaration left them empty.
	Enter *condition.Expr
	Exit  *condition.Expr

	children []domain.StateID
}

// Children returns a copy of the node's children, highest priority first.
func (n Node) Children() []domain.StateID {
	return append([]domain.StateID(nil), n.children...)
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool { return n.Parent == "" }

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return len(n.children) == 0 }

// clone detaches the copy from the tree: conditions and children are copied.
func (n *Node) clone() Node {
	cp := *n
	cp.Enter = cloneExpr(n.Enter)
	cp.Exit = cloneExpr(n.Exit)
	cp.children = n.Children()
	return cp
}

func cloneExpr(e *condition.Expr) *condition.Expr {
	if e == nil {
		return nil
	}
	cp := e.Clone()
	return &cp
}

// Tree is an immutable forest of states.
type Tree struct {
	nodes     map[domain.StateID]*Node
	order     []domain.StateID
	roots     []domain.StateID
	ancestors map[domain.StateID][]domain.StateID
	specs     []domain.StateSpec
}

// Build validates the declarations and produces a Tree.
//
// Siblings are ordered by priority, highest first; equal priorities keep the
// order in which they were declared.
func Build(specs []domain.StateSpec) (*Tree, error) {
	t := &Tree{
		nodes:     make(map[domain.StateID]*Node, len(specs)),
		order:     make([]domain.StateID, 0, len(specs)),
		ancestors: make(map[domain.StateID][]domain.StateID, len(specs)),
		specs:     append([]domain.StateSpec(nil), specs...),
	}

	for i, spec := range specs {
		if spec.ID == "" {
			return nil, &domain.InvalidTreeError{Reason: fmt.Sprintf("declaration #%d has an empty id", i)}
		}
		if _, dup := t.nodes[spec.ID]; dup {
			return nil, &domain.InvalidTreeError{State: spec.ID, Reason: "duplicate id"}
		}
		if spec.Parent == spec.ID {
			return nil, &domain.InvalidTreeError{State: spec.ID, Reason: "state is its own parent"}
		}

		node := &Node{
			ID:       spec.ID,
			Parent:   spec.Parent,
			Priority: spec.Priority,
			Strategy: spec.Strategy,
		}
		var err error
		if node.Enter, err = parseOptional(spec.Enter); err != nil {
			return nil, &domain.InvalidTreeError{State: spec.ID, Reason: "malformed enter condition", Err: err}
		}
		if node.Exit, err = parseOptional(spec.Exit); err != nil {
			return nil, &domain.InvalidTreeError{State: spec.ID, Reason: "malformed exit condition", Err: err}
		}

		t.nodes[spec.ID] = node
		t.order = append(t.order, spec.ID)
	}

	for _, id := range t.order {
		node := t.nodes[id]
		if node.IsRoot() {
			t.roots = append(t.roots, id)
			continue
		}
		parent, ok := t.nodes[node.Parent]
		if !ok {
			return nil, &domain.InvalidTreeError{State: id, Reason: fmt.Sprintf("unknown parent %q", node.Parent)}
		}
		parent.children = append(parent.children, id)
	}

	for _, id := range t.order {
		chain, err := t.walkAncestors(id)
		if err != nil {
			return nil, err
		}
		t.ancestors[id] = chain
		t.nodes[id].Depth = len(chain)
	}

	t.sortByPriority(t.roots)
	for _, node := range t.nodes {
		t.sortByPriority(node.children)
	}

	return t, nil
}

func parseOptional(text string) (*condition.Expr, error) {
	if text == "" {
		return nil, nil
	}
	expr, err := condition.Parse(text)
	if err != nil {
		return nil, err
	}
	return &expr, nil
}

func (t *Tree) walkAncestors(id domain.StateID) ([]domain.StateID, error) {
	chain := []domain.StateID{}
	seen := map[domain.StateID]bool{id: true}
	current := t.nodes[id].Parent
	for current != "" {
		if seen[current] {
			return nil, &domain.InvalidTreeError{State: id, Reason: fmt.Sprintf("cycle through %q", current)}
		}
		seen[current] = true
		chain = append(chain, current)
		current = t.nodes[current].Parent
	}
	return chain, nil
}

func (t *Tree) sortByPriority(ids []domain.StateID) {
	sort.SliceStable(ids, func(i, j int) bool {
		return t.nodes[ids[i]].Priority > t.nodes[ids[j]].Priority
	})
}

// Node returns a copy of the built node for id. Changing the copy does not
// affect the tree.
func (t *Tree) Node(id domain.StateID) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Has reports whether id is declared in the tree.
func (t *Tree) Has(id domain.StateID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Len returns the number of states.
func (t *Tree) Len() int { return len(t.order) }

// Roots returns the top-level states, highest priority first.
func (t *Tree) Roots() []domain.StateID {
	return append([]domain.StateID(nil), t.roots...)
}

// ChildrenOf returns the children of id, highest priority first.
// The slice is empty for leaves and unknown ids.
func (t *Tree) ChildrenOf(id domain.StateID) []domain.StateID {
	n, ok := t.nodes[id]
	if !ok {
		return []domain.StateID{}
	}
	return n.Children()
}

// AncestorsOf returns the chain of ancestors of id, closest first.
// It excludes id itself and is empty for roots and unknown ids.
func (t *Tree) AncestorsOf(id domain.StateID) []domain.StateID {
	return append([]domain.StateID{}, t.ancestors[id]...)
}

// Lineage returns id followed by its ancestors, closest first.
func (t *Tree) Lineage(id domain.StateID) []domain.StateID {
	if !t.Has(id) {
		return []domain.StateID{}
	}
	return append([]domain.StateID{id}, t.ancestors[id]...)
}

// IsDescendant reports whether id sits strictly below ancestor.
func (t *Tree) IsDescendant(id, ancestor domain.StateID) bool {
	for _, a := range t.ancestors[id] {
		if a == ancestor {
			return true
		}
	}
	return false
}

// Nodes returns the state ids in declaration order.
func (t *Tree) Nodes() []domain.StateID {
	return append([]domain.StateID(nil), t.order...)
}

// Specs returns a copy of the declarations the tree was built from.
func (t *Tree) Specs() []domain.StateSpec {
	return append([]domain.StateSpec(nil), t.specs...)
}

// Expressions returns every parsed enter and exit condition, keyed by state.
func (t *Tree) Expressions() map[domain.StateID][]condition.Expr {
	out := make(map[domain.StateID][]condition.Expr)
	for _, id := range t.order {
		n := t.nodes[id]
		if n.Enter != nil {
			out[id] = append(out[id], n.Enter.Clone())
		}
		if n.Exit != nil {
			out[id] = append(out[id], n.Exit.Clone())
		}
	}
	return out
}

// Validate checks that every condition leaf is registered in r.
func (t *Tree) Validate(r *condition.Registry) error {
	for _, id := range t.order {
		n := t.nodes[id]
		for _, expr := range []*condition.Expr{n.Enter, n.Exit} {
			if expr == nil {
				continue
			}
			if err := r.Check(*expr); err != nil {
				return fmt.Errorf("state %q: %w", id, err)
			}
		}
	}
	return nil
}
