package domain

import "fmt"

// Tick is the host-supplied input of one evaluation round.
// World is a read-only view of host data; predicates must not mutate it.
type Tick struct {
	Seq   uint64
	World any
}

// Scope is what predicates and hooks receive.
type Scope struct {
	Entity EntityID
	State  StateID
	Tick   Tick
}

// HistoryRecord is one committed transition. From is empty for the initial entry.
type HistoryRecord struct {
	From StateID `json:"from"`
	To   StateID `json:"to"`
	Tick uint64  `json:"tick"`
}

// OutcomeKind classifies the result of resolving one tick.
type OutcomeKind int

const (
	OutcomeStay OutcomeKind = iota
	OutcomeTransition
	OutcomeTerminate
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStay:
		return "stay"
	case OutcomeTransition:
		return "transition"
	case OutcomeTerminate:
		return "terminate"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for _, candidate := range []OutcomeKind{OutcomeStay, OutcomeTransition, OutcomeTerminate} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", text)
}

// Outcome is the decision of one tick.
//
// For a transition, Target is the candidate selected at Pivot and To is the
// new leaf after descending. Pivot is empty when the transition crossed the
// forest level. Strategy is the one applied at Pivot.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	From     StateID     `json:"from,omitempty"`
	To       StateID     `json:"to,omitempty"`
	Target   StateID     `json:"target,omitempty"`
	Pivot    StateID     `json:"pivot,omitempty"`
	Strategy Strategy    `json:"strategy"`
}

// Stay builds the outcome of a tick that keeps the current leaf.
func Stay(current StateID) Outcome {
	return Outcome{Kind: OutcomeStay, From: current, To: current}
}
