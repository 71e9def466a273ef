package dsl

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleTree(t *testing.T) {
	tr, err := New().
		State("alive").
		State("idle").Parent("alive").Priority(1).Exit("sees_enemy").
		State("chase").Parent("alive").Priority(2).Enter("sees_enemy").Exit("not(sees_enemy)").
		State("flee").Parent("alive").Priority(2).Enter("low_health").Continue().
		Build()
	require.NoError(t, err)

	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, []domain.StateID{"chase", "flee", "idle"}, tr.ChildrenOf("alive"))

	flee, ok := tr.Node("flee")
	require.True(t, ok)
	assert.Equal(t, domain.StrategyContinue, flee.Strategy)
	assert.Equal(t, "low_health", flee.Enter.String())
	assert.Nil(t, flee.Exit)

	chase, _ := tr.Node("chase")
	assert.Equal(t, "not(sees_enemy)", chase.Exit.String())
}

func TestBuilder_AmendExistingState(t *testing.T) {
	b := New()
	b.State("root")
	b.State("a").Parent("root")
	b.State("a").Priority(7).Strategy(domain.StrategyExit)

	specs := b.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, domain.StateSpec{ID: "a", Parent: "root", Priority: 7, Strategy: domain.StrategyExit}, specs[1])
	assert.Equal(t, specs[1], b.State("a").Spec())
}

func TestBuilder_InvalidTree(t *testing.T) {
	_, err := New().
		State("a").Parent("ghost").
		Build()
	var treeErr *domain.InvalidTreeError
	require.ErrorAs(t, err, &treeErr)
	assert.Equal(t, domain.StateID("a"), treeErr.State)

	_, err = New().
		State("a").Exit("and(x").
		Build()
	var parseErr *domain.ParseError
	assert.ErrorAs(t, err, &parseErr)
}
