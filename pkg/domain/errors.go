package domain

import (
	"errors"
	"fmt"
)

// ErrInstanceNotFound is returned when an entity has no attached state machine instance.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrAlreadyAttached is returned when Attach is called twice for the same entity.
var ErrAlreadyAttached = errors.New("instance already attached")

// ErrUnknownState is returned when a StateID does not exist in the tree.
var ErrUnknownState = errors.New("unknown state")

// ParseError reports a malformed condition expression.
// Pos is the byte offset where parsing stopped; Fragment is the offending
// token at Pos, empty when the input ended early.
type ParseError struct {
	Input    string
	Pos      int
	Fragment string
	Msg      string
}

func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("parse %q at end of input: %s", e.Input, e.Msg)
	}
	return fmt.Sprintf("parse %q at offset %d (near %q): %s", e.Input, e.Pos, e.Fragment, e.Msg)
}

// InvalidTreeError reports a structural problem in a set of state declarations.
type InvalidTreeError struct {
	State  StateID
	Reason string
	Err    error
}

func (e *InvalidTreeError) Error() string {
	msg := fmt.Sprintf("invalid tree at state %q: %s", e.State, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidTreeError) Unwrap() error { return e.Err }

// UnknownConditionError is raised at evaluation time when an expression leaf
// names a predicate that was never registered. The tick is aborted, the
// instance is left untouched and later ticks may succeed.
type UnknownConditionError struct {
	Name string
}

func (e *UnknownConditionError) Error() string {
	return fmt.Sprintf("condition %q is not registered", e.Name)
}

// ProgrammingError marks misuse of the API: advancing a detached entity,
// registering after the engine started ticking, hooking an unknown state.
type ProgrammingError struct {
	Op     string
	Entity EntityID
	Msg    string
	Err    error
}

func (e *ProgrammingError) Error() string {
	msg := e.Op + ": " + e.Msg
	if e.Entity != "" {
		msg = fmt.Sprintf("%s (entity %q)", msg, e.Entity)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProgrammingError) Unwrap() error { return e.Err }
