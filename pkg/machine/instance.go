// Package machine holds the per-entity state machine instance.
package machine

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/history"
)

// Instance is the per-entity runtime record.
//
// Pending holds a state that has been selected but not entered yet; Attach
// sets it to Initial and the first Advance enters it. Current is the active
// leaf and stays set after termination so hosts can inspect where it ended.
type Instance struct {
	Entity     domain.EntityID `json:"entity"`
	Initial    domain.StateID  `json:"initial"`
	Current    domain.StateID  `json:"current,omitempty"`
	Pending    domain.StateID  `json:"pending,omitempty"`
	Stationary bool            `json:"stationary,omitempty"`
	Terminated bool            `json:"terminated,omitempty"`
	History    *history.Log    `json:"history"`
}

// New creates an instance that will enter initial on its first tick.
func New(entity domain.EntityID, initial domain.StateID, historyLimit int) *Instance {
	return &Instance{
		Entity:  entity,
		Initial: initial,
		Pending: initial,
		History: history.New(historyLimit),
	}
}

// Entered reports whether the instance has entered any state yet.
func (i *Instance) Entered() bool {
	return i.Current != ""
}

// Reset puts a (possibly terminated) instance back to its initial state.
// The history is kept.
func (i *Instance) Reset() {
	i.Current = ""
	i.Pending = i.Initial
	i.Terminated = false
}

// Clone returns a deep copy.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	cp := *i
	cp.History = i.History.Clone()
	return &cp
}
