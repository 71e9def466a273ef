package runtime_test

import (
	"testing"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flags is a mutable predicate assignment used across ticks.
type flags map[string]bool

func (f flags) registry() *condition.Registry {
	r := condition.NewRegistry()
	for name := range f {
		name := name
		r.Register(name, func(domain.Scope) bool { return f[name] })
	}
	return r
}

func mustTree(t *testing.T, specs ...domain.StateSpec) *tree.Tree {
	t.Helper()
	tr, err := tree.Build(specs)
	require.NoError(t, err)
	return tr
}

// entered builds an instance already sitting at current.
func entered(current domain.StateID) *machine.Instance {
	inst := machine.New("e1", current, 0)
	inst.Pending = ""
	inst.Current = current
	inst.History.Record("", current, 0)
	return inst
}

func TestResolve_PendingEntersChainAndDescends(t *testing.T) {
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "a", Parent: "root", Priority: 2},
		domain.StateSpec{ID: "b", Parent: "root", Priority: 1},
	)
	res := runtime.NewResolver(tr, condition.NewRegistry())

	plan, err := res.Resolve(machine.New("e1", "root", 0), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTransition, plan.Outcome.Kind)
	assert.Equal(t, domain.StateID("a"), plan.Outcome.To)
	assert.Equal(t, []domain.StateID{"root", "a"}, plan.Enters)
	assert.Empty(t, plan.Exits)
}

func TestResolve_PendingInnerStateEntersAncestorsFirst(t *testing.T) {
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "mid", Parent: "root"},
		domain.StateSpec{ID: "leaf", Parent: "mid"},
	)
	res := runtime.NewResolver(tr, condition.NewRegistry())

	plan, err := res.Resolve(machine.New("e1", "mid", 0), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, []domain.StateID{"root", "mid", "leaf"}, plan.Enters)
}

func TestResolve_StationaryAndTerminatedStay(t *testing.T) {
	tr := mustTree(t, domain.StateSpec{ID: "a", Exit: "missing"})
	res := runtime.NewResolver(tr, condition.NewRegistry())

	pending := machine.New("e1", "a", 0)
	pending.Stationary = true
	plan, err := res.Resolve(pending, domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStay, plan.Outcome.Kind)

	done := entered("a")
	done.Terminated = true
	plan, err = res.Resolve(done, domain.Tick{})
	require.NoError(t, err, "terminated instances evaluate nothing")
	assert.Equal(t, domain.OutcomeStay, plan.Outcome.Kind)
}

func TestResolve_ExitFalseStays(t *testing.T) {
	f := flags{"leave": false}
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "a", Parent: "root", Exit: "leave"},
		domain.StateSpec{ID: "b", Parent: "root"},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("a"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.Stay("a"), plan.Outcome)
}

func TestResolve_AbsentExitCondition(t *testing.T) {
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "a", Parent: "root", Priority: 2},
		domain.StateSpec{ID: "b", Parent: "root", Priority: 1},
	)
	res := runtime.NewResolver(tr, condition.NewRegistry())

	plan, err := res.Resolve(entered("a"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStay, plan.Outcome.Kind)

	res.ImplicitExit = true
	plan, err = res.Resolve(entered("a"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTransition, plan.Outcome.Kind)
	assert.Equal(t, domain.StateID("b"), plan.Outcome.To)
}

func TestResolve_ExitedStateExcluded(t *testing.T) {
	// Root -> {A(2), B(1)}: A always exits, B always enterable, A has no
	// enter condition. B wins although A has the higher priority.
	f := flags{"a_exit": true, "b_enter": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "a", Parent: "root", Priority: 2, Exit: "a_exit"},
		domain.StateSpec{ID: "b", Parent: "root", Priority: 1, Enter: "b_enter"},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("a"), domain.Tick{Seq: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTransition, plan.Outcome.Kind)
	assert.Equal(t, domain.StateID("b"), plan.Outcome.To)
	assert.Equal(t, domain.StateID("root"), plan.Outcome.Pivot)
	assert.Equal(t, []domain.StateID{"a"}, plan.Exits)
	assert.Equal(t, []domain.StateID{"b"}, plan.Enters)
}

func TestResolve_ExitedStateReenteredWhenOnlyCandidate(t *testing.T) {
	f := flags{"a_exit": true, "b_enter": false}
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "a", Parent: "root", Exit: "a_exit"},
		domain.StateSpec{ID: "b", Parent: "root", Enter: "b_enter"},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("a"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("a"), plan.Outcome.To)
	assert.Equal(t, []domain.StateID{"a"}, plan.Exits)
	assert.Equal(t, []domain.StateID{"a"}, plan.Enters)
}

func TestResolve_TieBreakByDeclarationOrder(t *testing.T) {
	f := flags{"leave": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "start", Parent: "root", Priority: 9, Exit: "leave"},
		domain.StateSpec{ID: "first", Parent: "root", Priority: 3},
		domain.StateSpec{ID: "second", Parent: "root", Priority: 3},
	)
	res := runtime.NewResolver(tr, f.registry())

	for i := 0; i < 10; i++ {
		plan, err := res.Resolve(entered("start"), domain.Tick{})
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("first"), plan.Outcome.To)
	}
}

func TestResolve_BubblesUpThroughAncestors(t *testing.T) {
	// root -> {work -> {w1}, rest}; w1 exits, work has no other child,
	// so the transition bubbles up to root and picks rest.
	f := flags{"done": true, "never": false}
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "work", Parent: "root", Priority: 5},
		domain.StateSpec{ID: "w1", Parent: "work", Exit: "done", Enter: "never"},
		domain.StateSpec{ID: "rest", Parent: "root"},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("w1"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("rest"), plan.Outcome.To)
	assert.Equal(t, domain.StateID("root"), plan.Outcome.Pivot)
	assert.Equal(t, []domain.StateID{"w1", "work"}, plan.Exits)
	assert.Equal(t, []domain.StateID{"rest"}, plan.Enters)
}

func TestResolve_ResetDescendsToFirstEligibleChild(t *testing.T) {
	f := flags{"leave": true, "c1_enter": false}
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "a", Parent: "root", Exit: "leave"},
		domain.StateSpec{ID: "b", Parent: "root"},
		domain.StateSpec{ID: "b1", Parent: "b", Priority: 2, Enter: "c1_enter"},
		domain.StateSpec{ID: "b2", Parent: "b", Priority: 1},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("a"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("b"), plan.Outcome.Target)
	assert.Equal(t, domain.StateID("b2"), plan.Outcome.To)
	assert.Equal(t, []domain.StateID{"b", "b2"}, plan.Enters)
}

func TestResolve_ContinueResumesHistory(t *testing.T) {
	// P -> {x (priority 9), childA (5), childB (1)}; x bubbles up with
	// Continue, history says childB was last entered under P.
	f := flags{"x_exit": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "P"},
		domain.StateSpec{ID: "x", Parent: "P", Priority: 9, Exit: "x_exit", Strategy: domain.StrategyContinue},
		domain.StateSpec{ID: "childA", Parent: "P", Priority: 5},
		domain.StateSpec{ID: "childB", Parent: "P", Priority: 1},
	)
	res := runtime.NewResolver(tr, f.registry())

	inst := entered("childA")
	inst.History.Record("childA", "childB", 5)
	inst.History.Record("childB", "x", 6)
	inst.Current = "x"

	plan, err := res.Resolve(inst, domain.Tick{Seq: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyContinue, plan.Outcome.Strategy)
	assert.Equal(t, domain.StateID("childB"), plan.Outcome.To)
	assert.Equal(t, []domain.StateID{"childB"}, plan.Enters)
}

func TestResolve_ContinueResumesDeepHistory(t *testing.T) {
	f := flags{"x_exit": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "P"},
		domain.StateSpec{ID: "x", Parent: "P", Priority: 9, Exit: "x_exit", Strategy: domain.StrategyContinue},
		domain.StateSpec{ID: "b", Parent: "P"},
		domain.StateSpec{ID: "b1", Parent: "b", Priority: 2},
		domain.StateSpec{ID: "b2", Parent: "b", Priority: 1},
	)
	res := runtime.NewResolver(tr, f.registry())

	inst := entered("b2")
	inst.History.Record("b2", "x", 3)
	inst.Current = "x"

	plan, err := res.Resolve(inst, domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, []domain.StateID{"b", "b2"}, plan.Enters)
	assert.Equal(t, domain.StateID("b2"), plan.Outcome.To)
}

func TestResolve_ContinueFallsBackToReset(t *testing.T) {
	f := flags{"x_exit": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "P"},
		domain.StateSpec{ID: "x", Parent: "P", Priority: 9, Exit: "x_exit", Strategy: domain.StrategyContinue},
		domain.StateSpec{ID: "childA", Parent: "P", Priority: 5},
		domain.StateSpec{ID: "childB", Parent: "P", Priority: 1},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("x"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyReset, plan.Outcome.Strategy)
	assert.Equal(t, domain.StateID("childA"), plan.Outcome.To)
}

func TestResolve_ContinueIgnoresStatesNoLongerInTree(t *testing.T) {
	f := flags{"x_exit": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "P"},
		domain.StateSpec{ID: "x", Parent: "P", Priority: 9, Exit: "x_exit", Strategy: domain.StrategyContinue},
		domain.StateSpec{ID: "childA", Parent: "P", Priority: 5},
	)
	res := runtime.NewResolver(tr, f.registry())

	inst := entered("x")
	inst.History.Record("x", "removed", 2)
	inst.History.Record("removed", "x", 3)

	plan, err := res.Resolve(inst, domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("childA"), plan.Outcome.To)
}

func TestResolve_ResetWinsOverHistory(t *testing.T) {
	f := flags{"x_exit": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "P"},
		domain.StateSpec{ID: "x", Parent: "P", Priority: 9, Exit: "x_exit"},
		domain.StateSpec{ID: "childA", Parent: "P", Priority: 5},
		domain.StateSpec{ID: "childB", Parent: "P", Priority: 1},
	)
	res := runtime.NewResolver(tr, f.registry())

	inst := entered("childB")
	inst.History.Record("childB", "x", 4)
	inst.Current = "x"

	plan, err := res.Resolve(inst, domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("childA"), plan.Outcome.To)
}

func TestResolve_ExitStrategyStopsAtPivot(t *testing.T) {
	f := flags{"x_exit": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "P"},
		domain.StateSpec{ID: "x", Parent: "P", Priority: 9, Exit: "x_exit", Strategy: domain.StrategyExit},
		domain.StateSpec{ID: "y", Parent: "P"},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("x"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTransition, plan.Outcome.Kind)
	assert.Equal(t, domain.StateID("P"), plan.Outcome.To)
	assert.Equal(t, []domain.StateID{"x"}, plan.Exits)
	assert.Empty(t, plan.Enters)
}

func TestResolve_Terminate(t *testing.T) {
	f := flags{"leave": true, "never": false}
	tr := mustTree(t,
		domain.StateSpec{ID: "root", Enter: "never"},
		domain.StateSpec{ID: "a", Parent: "root", Enter: "never", Exit: "leave"},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("a"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTerminate, plan.Outcome.Kind)
	assert.Equal(t, []domain.StateID{"a", "root"}, plan.Exits)
	assert.Empty(t, plan.Enters)
}

func TestResolve_ForestLevelUsesOtherRoot(t *testing.T) {
	f := flags{"leave": true}
	tr := mustTree(t,
		domain.StateSpec{ID: "r1", Exit: "leave", Strategy: domain.StrategyExit},
		domain.StateSpec{ID: "r2"},
	)
	res := runtime.NewResolver(tr, f.registry())

	plan, err := res.Resolve(entered("r1"), domain.Tick{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("r2"), plan.Outcome.To)
	assert.Equal(t, domain.StrategyReset, plan.Outcome.Strategy)
	assert.Empty(t, plan.Outcome.Pivot)
}

func TestResolve_UnknownConditionAbortsTick(t *testing.T) {
	tr := mustTree(t,
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "a", Parent: "root", Exit: "ghost"},
	)
	res := runtime.NewResolver(tr, condition.NewRegistry())

	plan, err := res.Resolve(entered("a"), domain.Tick{})
	var uerr *domain.UnknownConditionError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "ghost", uerr.Name)
	assert.Equal(t, domain.OutcomeStay, plan.Outcome.Kind)
}

func TestResolve_UnknownCurrentState(t *testing.T) {
	tr := mustTree(t, domain.StateSpec{ID: "a"})
	res := runtime.NewResolver(tr, condition.NewRegistry())

	_, err := res.Resolve(entered("gone"), domain.Tick{})
	assert.ErrorIs(t, err, domain.ErrUnknownState)
}
