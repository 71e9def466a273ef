package domain

import (
	"fmt"
	"strings"
)

// StateID identifies a state node. It is opaque and unique within one tree.
// The empty StateID means "no state".
type StateID string

// EntityID is the host handle of the entity that owns a state machine instance.
type EntityID string

// StateSpec is the declaration of a single state, as written by an author
// (Go DSL, YAML file, Loam document) before the tree is built.
type StateSpec struct {
	ID     StateID `json:"id" yaml:"id"`
	Parent StateID `json:"parent,omitempty" yaml:"parent,omitempty"`

	// Priority orders siblings, highest first. Equal priorities keep
	// declaration order.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// Enter and Exit hold combinator expressions such as "and(ready, not(busy))".
	// Empty means the condition is absent.
	Enter string `json:"enter,omitempty" yaml:"enter,omitempty"`
	Exit  string `json:"exit,omitempty" yaml:"exit,omitempty"`

	// Strategy applies to the edge from this state up to its parent.
	Strategy Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// Strategy decides how an ancestor is re-entered when a transition bubbles up to it.
type Strategy int

const (
	// StrategyReset re-enters the ancestor's highest-priority eligible child.
	StrategyReset Strategy = iota
	// StrategyContinue re-enters the child most recently recorded under the ancestor.
	StrategyContinue
	// StrategyExit enters no child: the ancestor itself becomes the leaf.
	StrategyExit
)

var strategyNames = map[Strategy]string{
	StrategyReset:    "reset",
	StrategyContinue: "continue",
	StrategyExit:     "exit",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy converts the textual form ("reset", "continue", "exit").
// An empty string yields StrategyReset.
func ParseStrategy(text string) (Strategy, error) {
	clean := strings.ToLower(strings.TrimSpace(text))
	if clean == "" {
		return StrategyReset, nil
	}
	for s, name := range strategyNames {
		if name == clean {
			return s, nil
		}
	}
	return StrategyReset, fmt.Errorf("unknown strategy %q (expected reset, continue or exit)", text)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if _, ok := strategyNames[s]; !ok {
		return nil, fmt.Errorf("invalid strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Phase is one of the three lifecycle moments of a state.
type Phase int

const (
	PhaseEnter Phase = iota
	PhaseUpdate
	PhaseExit
)

func (p Phase) String() string {
	switch p {
	case PhaseEnter:
		return "enter"
	case PhaseUpdate:
		return "update"
	case PhaseExit:
		return "exit"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase converts "enter", "update" or "exit" into a Phase.
func ParsePhase(text string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "enter":
		return PhaseEnter, nil
	case "update":
		return PhaseUpdate, nil
	case "exit":
		return PhaseExit, nil
	}
	return PhaseEnter, fmt.Errorf("unknown phase %q", text)
}
