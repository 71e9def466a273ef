package runtime

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/history"
	"github.com/aretw0/arbor/pkg/machine"
)

// Driver applies resolved plans: it runs hooks and mutates the instance.
type Driver struct {
	hooks *HookTable
}

// NewDriver creates a driver running the hooks of table.
func NewDriver(table *HookTable) *Driver {
	return &Driver{hooks: table}
}

// Apply executes plan on inst.
//
// Stay runs the update hooks of the current leaf. A transition runs exit
// hooks child to parent, then enter hooks parent to child, then records the
// move. Terminate runs exit hooks up to the root and flags the instance.
func (d *Driver) Apply(ctx context.Context, inst *machine.Instance, plan Plan, tick domain.Tick) {
	scope := func(id domain.StateID) domain.Scope {
		return domain.Scope{Entity: inst.Entity, State: id, Tick: tick}
	}

	switch plan.Outcome.Kind {
	case domain.OutcomeStay:
		if inst.Terminated || !inst.Entered() {
			return
		}
		d.hooks.run(ctx, domain.PhaseUpdate, scope(inst.Current))

	case domain.OutcomeTransition:
		for _, id := range plan.Exits {
			d.hooks.run(ctx, domain.PhaseExit, scope(id))
		}
		for _, id := range plan.Enters {
			d.hooks.run(ctx, domain.PhaseEnter, scope(id))
		}
		from := inst.Current
		inst.Current = plan.Outcome.To
		inst.Pending = ""
		if inst.History == nil {
			inst.History = history.New(0)
		}
		inst.History.Record(from, inst.Current, tick.Seq)

	case domain.OutcomeTerminate:
		for _, id := range plan.Exits {
			d.hooks.run(ctx, domain.PhaseExit, scope(id))
		}
		inst.Terminated = true
	}
}
