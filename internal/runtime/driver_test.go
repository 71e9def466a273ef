package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) hook(tag string) runtime.Hook {
	return func(_ context.Context, s domain.Scope) {
		r.calls = append(r.calls, tag+":"+string(s.State))
	}
}

func (r *recorder) register(t *testing.T, table *runtime.HookTable, states ...domain.StateID) {
	t.Helper()
	for _, s := range states {
		require.NoError(t, table.Register(s, domain.PhaseEnter, r.hook("enter")))
		require.NoError(t, table.Register(s, domain.PhaseUpdate, r.hook("update")))
		require.NoError(t, table.Register(s, domain.PhaseExit, r.hook("exit")))
	}
}

func TestDriver_TransitionOrder(t *testing.T) {
	table := runtime.NewHookTable()
	rec := &recorder{}
	rec.register(t, table, "root", "a", "a1", "b", "b1")
	d := runtime.NewDriver(table)

	inst := entered("a1")
	plan := runtime.Plan{
		Outcome: domain.Outcome{Kind: domain.OutcomeTransition, From: "a1", To: "b1"},
		Exits:   []domain.StateID{"a1", "a"},
		Enters:  []domain.StateID{"b", "b1"},
	}
	d.Apply(context.Background(), inst, plan, domain.Tick{Seq: 4})

	assert.Equal(t, []string{"exit:a1", "exit:a", "enter:b", "enter:b1"}, rec.calls)
	assert.Equal(t, domain.StateID("b1"), inst.Current)
	last, ok := inst.History.Last()
	require.True(t, ok)
	assert.Equal(t, domain.HistoryRecord{From: "a1", To: "b1", Tick: 4}, last)
}

func TestDriver_InitialEntryRecordsEmptyFrom(t *testing.T) {
	table := runtime.NewHookTable()
	rec := &recorder{}
	rec.register(t, table, "root", "a")
	d := runtime.NewDriver(table)

	inst := machine.New("e1", "root", 0)
	plan := runtime.Plan{
		Outcome: domain.Outcome{Kind: domain.OutcomeTransition, To: "a"},
		Enters:  []domain.StateID{"root", "a"},
	}
	d.Apply(context.Background(), inst, plan, domain.Tick{})

	assert.Equal(t, []string{"enter:root", "enter:a"}, rec.calls)
	assert.Empty(t, inst.Pending)
	assert.Equal(t, []domain.HistoryRecord{{From: "", To: "a", Tick: 0}}, inst.History.Records())
}

func TestDriver_StayRunsUpdate(t *testing.T) {
	table := runtime.NewHookTable()
	rec := &recorder{}
	rec.register(t, table, "a")
	d := runtime.NewDriver(table)

	inst := entered("a")
	d.Apply(context.Background(), inst, runtime.Plan{Outcome: domain.Stay("a")}, domain.Tick{})
	assert.Equal(t, []string{"update:a"}, rec.calls)
	assert.Equal(t, 1, inst.History.Len())

	// Never-entered and terminated instances get no update.
	d.Apply(context.Background(), machine.New("e2", "a", 0), runtime.Plan{Outcome: domain.Stay("")}, domain.Tick{})
	inst.Terminated = true
	d.Apply(context.Background(), inst, runtime.Plan{Outcome: domain.Stay("a")}, domain.Tick{})
	assert.Len(t, rec.calls, 1)
}

func TestDriver_Terminate(t *testing.T) {
	table := runtime.NewHookTable()
	rec := &recorder{}
	rec.register(t, table, "root", "a")
	d := runtime.NewDriver(table)

	inst := entered("a")
	plan := runtime.Plan{
		Outcome: domain.Outcome{Kind: domain.OutcomeTerminate, From: "a"},
		Exits:   []domain.StateID{"a", "root"},
	}
	d.Apply(context.Background(), inst, plan, domain.Tick{Seq: 2})

	assert.Equal(t, []string{"exit:a", "exit:root"}, rec.calls)
	assert.True(t, inst.Terminated)
	assert.Equal(t, domain.StateID("a"), inst.Current)
	assert.Equal(t, 1, inst.History.Len())
}

func TestHookTable_AppendsAndFreezes(t *testing.T) {
	table := runtime.NewHookTable()
	var order []int
	require.NoError(t, table.Register("a", domain.PhaseEnter, func(context.Context, domain.Scope) { order = append(order, 1) }))
	require.NoError(t, table.Register("a", domain.PhaseEnter, func(context.Context, domain.Scope) { order = append(order, 2) }))
	assert.Equal(t, 2, table.Count("a", domain.PhaseEnter))

	d := runtime.NewDriver(table)
	d.Apply(context.Background(), machine.New("e", "a", 0), runtime.Plan{
		Outcome: domain.Outcome{Kind: domain.OutcomeTransition, To: "a"},
		Enters:  []domain.StateID{"a"},
	}, domain.Tick{})
	assert.Equal(t, []int{1, 2}, order)

	table.Freeze()
	err := table.Register("a", domain.PhaseExit, func(context.Context, domain.Scope) {})
	var perr *domain.ProgrammingError
	assert.ErrorAs(t, err, &perr)
}
