package runtime

import (
	"context"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Hook is a lifecycle callback bound to a state and a phase.
//
// A hook must not call back into the engine for the entity it is running
// for: the entity stays locked until every hook of the tick returned.
type Hook func(ctx context.Context, scope domain.Scope)

type hookKey struct {
	state domain.StateID
	phase domain.Phase
}

// HookTable maps (state, phase) to hooks, run in registration order.
type HookTable struct {
	mu     sync.RWMutex
	hooks  map[hookKey][]Hook
	frozen bool
}

// NewHookTable creates an empty table.
func NewHookTable() *HookTable {
	return &HookTable{hooks: make(map[hookKey][]Hook)}
}

// Register appends fn to the hooks of state for phase.
func (h *HookTable) Register(state domain.StateID, phase domain.Phase, fn Hook) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.frozen {
		return &domain.ProgrammingError{Op: "register hook", Msg: "hook table is frozen: " + string(state)}
	}
	key := hookKey{state, phase}
	h.hooks[key] = append(h.hooks[key], fn)
	return nil
}

// Freeze makes the table read-only.
func (h *HookTable) Freeze() {
	h.mu.Lock()
	h.frozen = true
	h.mu.Unlock()
}

// Count returns how many hooks are registered for state and phase.
func (h *HookTable) Count(state domain.StateID, phase domain.Phase) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hooks[hookKey{state, phase}])
}

func (h *HookTable) run(ctx context.Context, phase domain.Phase, scope domain.Scope) {
	h.mu.RLock()
	fns := h.hooks[hookKey{scope.State, phase}]
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, scope)
	}
}
