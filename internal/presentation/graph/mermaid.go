package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

// GraphOverlay contains dynamic instance data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []domain.StateID
	CurrentState  domain.StateID
	Terminated    bool
}

// OverlayFromHistory builds an overlay from an instance's transition records.
func OverlayFromHistory(records []domain.HistoryRecord, current domain.StateID, terminated bool) *GraphOverlay {
	o := &GraphOverlay{CurrentState: current, Terminated: terminated}
	for _, r := range records {
		if r.From != "" {
			o.VisitedStates = append(o.VisitedStates, r.From)
		}
		o.VisitedStates = append(o.VisitedStates, r.To)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the state tree.
// It applies semantic styling:
// - Root: ((Circle))
// - Composite (has children): [[Subroutine]]
// - Leaf: [Rectangle]
// Edges run parent to child and are labelled with the child's priority and
// strategy. Node labels carry the enter and exit conditions.
func GenerateMermaid(t *tree.Tree, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range t.Nodes() {
		node, _ := t.Node(id)
		safeID := sanitizeMermaidID(string(id))

		opener, closer := "[", "]"
		switch {
		case node.IsRoot():
			opener, closer = "((", "))"
		case !node.IsLeaf():
			opener, closer = "[[", "]]"
		}

		label := string(id)
		if node.Enter != nil {
			label += " <br/> enter: " + escapeLabel(node.Enter.String())
		}
		if node.Exit != nil {
			label += " <br/> exit: " + escapeLabel(node.Exit.String())
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
	}

	for _, id := range t.Nodes() {
		node, _ := t.Node(id)
		for _, child := range node.Children() {
			c, _ := t.Node(child)
			arrow := fmt.Sprintf("-- \"%d, %s\" -->", c.Priority, c.Strategy)
			if c.Strategy == domain.StrategyContinue {
				arrow = fmt.Sprintf("-. \"%d, %s\" .->", c.Priority, c.Strategy)
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(string(id)), arrow, sanitizeMermaidID(string(child))))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef terminated fill:#eeeeee,stroke:#616161,stroke-dasharray:4,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			// Only style states that still exist in the tree.
			if !t.Has(id) {
				continue
			}
			safeID := sanitizeMermaidID(string(id))
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentState != "" && t.Has(overlay.CurrentState) {
			class := "current"
			if overlay.Terminated {
				class = "terminated"
			}
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", sanitizeMermaidID(string(overlay.CurrentState)), class))
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
