package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render, nil
}

// TreeMarkdown describes a tree as a markdown document: one table row per
// state, depth-first in resolution order.
func TreeMarkdown(name string, t *tree.Tree) string {
	var sb strings.Builder
	if name == "" {
		name = "tree"
	}
	fmt.Fprintf(&sb, "# %s\n\n", name)
	fmt.Fprintf(&sb, "%d states, %d roots.\n\n", t.Len(), len(t.Roots()))
	sb.WriteString("| State | Priority | Enter | Exit | Strategy |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	var walk func(ids []domain.StateID, depth int)
	walk = func(ids []domain.StateID, depth int) {
		for _, id := range ids {
			n, ok := t.Node(id)
			if !ok {
				continue
			}
			label := strings.Repeat("&nbsp;&nbsp;", depth) + "`" + string(id) + "`"
			fmt.Fprintf(&sb, "| %s | %d | %s | %s | %s |\n",
				label, n.Priority, cell(n.Enter), cell(n.Exit), n.Strategy)
			walk(t.ChildrenOf(id), depth+1)
		}
	}
	walk(t.Roots(), 0)
	return sb.String()
}

func cell(expr *condition.Expr) string {
	if expr == nil {
		return "-"
	}
	return "`" + expr.String() + "`"
}
