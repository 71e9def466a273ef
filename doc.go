/*
Package arbor is a hierarchical state machine engine that resolves, every tick,
which state an entity should occupy inside a tree of nested states.

Each state may declare an enter condition and an exit condition written as
boolean combinators over named predicates (for example
"and(has_target, not(low_health))"). When the current leaf's exit condition
holds, the engine looks for a replacement among its siblings in priority order
and, when none is eligible, bubbles the transition up through the ancestors.
The edge a transition bubbles through decides how the ancestor is re-entered:
Reset picks its highest-priority eligible child, Continue resumes the child
recorded most recently in the transition history, and Exit leaves the ancestor
itself as the leaf.

# Concept

The host owns scheduling and world data. It calls Advance once per entity per
tick and hands in a read-only view of the world that predicates evaluate
against. The engine computes the full outcome from a snapshot first, then runs
exit hooks child to parent, enter hooks parent to child (or the update hook
when nothing changes), and finally commits the instance to its store.

# Usage

	t, err := dsl.New().
		State("alive").
		State("idle").Parent("alive").Priority(1).Exit("sees_enemy").
		State("chase").Parent("alive").Enter("sees_enemy").Exit("not(sees_enemy)").
		Build()
	if err != nil {
		log.Fatal(err)
	}

	eng := arbor.New(t)
	_ = eng.RegisterCondition("sees_enemy", func(s domain.Scope) bool {
		return s.Tick.World.(*World).Visible(s.Entity)
	})
	_ = eng.RegisterHook("chase", domain.PhaseEnter, func(ctx context.Context, s domain.Scope) {
		log.Println(s.Entity, "starts chasing")
	})

	_ = eng.Attach(ctx, "orc-1", "alive")
	for seq := uint64(0); ; seq++ {
		out, err := eng.Advance(ctx, "orc-1", domain.Tick{Seq: seq, World: world})
		...
	}
*/
package arbor
