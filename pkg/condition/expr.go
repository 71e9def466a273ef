package condition

import "strings"

// Kind tags the variant held by an Expr.
type Kind int

const (
	KindLeaf Kind = iota
	KindAnd
	KindOr
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	}
	return "unknown"
}

// Expr is a boolean combinator over named predicates.
// Leaf uses Name; And and Or use Args (possibly empty); Not has exactly one Arg.
type Expr struct {
	Kind Kind
	Name string
	Args []Expr
}

// Clone returns a deep copy that shares no argument slices with e.
func (e Expr) Clone() Expr {
	cp := Expr{Kind: e.Kind, Name: e.Name}
	if e.Args != nil {
		cp.Args = make([]Expr, len(e.Args))
		for i, arg := range e.Args {
			cp.Args[i] = arg.Clone()
		}
	}
	return cp
}

// Leaf references a registered predicate by name.
func Leaf(name string) Expr {
	return Expr{Kind: KindLeaf, Name: name}
}

// And is true when every argument is true. And() is true.
func And(args ...Expr) Expr {
	return Expr{Kind: KindAnd, Args: args}
}

// Or is true when any argument is true. Or() is false.
func Or(args ...Expr) Expr {
	return Expr{Kind: KindOr, Args: args}
}

// Not negates a single expression.
func Not(arg Expr) Expr {
	return Expr{Kind: KindNot, Args: []Expr{arg}}
}

// String renders the canonical text form, which Parse accepts back.
func (e Expr) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e Expr) write(sb *strings.Builder) {
	if e.Kind == KindLeaf {
		sb.WriteString(e.Name)
		return
	}
	sb.WriteString(e.Kind.String())
	sb.WriteByte('(')
	for i, arg := range e.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		arg.write(sb)
	}
	sb.WriteByte(')')
}

// Leaves lists the predicate names referenced by e, in order of appearance,
// without duplicates.
func (e Expr) Leaves() []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(Expr)
	walk = func(x Expr) {
		if x.Kind == KindLeaf {
			if !seen[x.Name] {
				seen[x.Name] = true
				names = append(names, x.Name)
			}
			return
		}
		for _, arg := range x.Args {
			walk(arg)
		}
	}
	walk(e)
	return names
}
