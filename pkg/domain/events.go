package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition   EventType = "transition"
	EventTerminate    EventType = "terminate"
	EventResolveError EventType = "resolve_error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Entity    EntityID  `json:"entity"`
	Tick      uint64    `json:"tick"`
}

// TransitionEvent is emitted after a committed TransitionTo or Terminate.
type TransitionEvent struct {
	EventBase
	Outcome Outcome   `json:"outcome"`
	Exited  []StateID `json:"exited,omitempty"`
	Entered []StateID `json:"entered,omitempty"`
}

// ResolveErrorEvent is emitted when a tick is aborted by a failing condition.
type ResolveErrorEvent struct {
	EventBase
	State StateID `json:"state"`
	Err   error   `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// They run after the instance is committed, outside of state hooks.
type LifecycleHooks struct {
	OnTransition   func(context.Context, *TransitionEvent)
	OnTerminate    func(context.Context, *TransitionEvent)
	OnResolveError func(context.Context, *ResolveErrorEvent)
}
