package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunInstanceStoreContract runs a suite of tests to verify that an InstanceStore
// implementation adheres to the defined interface contract.
func RunInstanceStoreContract(t *testing.T, store InstanceStore) {
	ctx := context.Background()
	entity := domain.EntityID("contract-entity-" + time.Now().Format("20060102150405"))

	t.Run("Save and Load", func(t *testing.T) {
		inst := machine.New(entity, "idle", 4)
		inst.Current = "walk"
		inst.Pending = ""
		inst.Stationary = true
		inst.History.Record("", "idle", 1)
		inst.History.Record("idle", "walk", 2)

		err := store.Save(ctx, inst)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, entity)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, inst.Entity, loaded.Entity)
		assert.Equal(t, inst.Initial, loaded.Initial)
		assert.Equal(t, inst.Current, loaded.Current)
		assert.True(t, loaded.Stationary)
		assert.Equal(t, 4, loaded.History.Limit)
		assert.Equal(t, inst.History.Records(), loaded.History.Records())
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, entity)
		require.NoError(t, err)
		loaded.Current = "mutated"
		loaded.History.Record("walk", "mutated", 3)

		again, err := store.Load(ctx, entity)
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("walk"), again.Current)
		assert.Equal(t, 2, again.History.Len())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+entity)
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, machine.New(entity, "idle", 0))
		require.NoError(t, err)

		err = store.Delete(ctx, entity)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, entity)
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound, "Load after Delete should return ErrInstanceNotFound")

		assert.NoError(t, store.Delete(ctx, entity), "Delete of a missing entity should succeed")
	})

	t.Run("List", func(t *testing.T) {
		id1 := entity + "-1"
		id2 := entity + "-2"
		_ = store.Save(ctx, machine.New(id1, "idle", 0))
		_ = store.Save(ctx, machine.New(id2, "idle", 0))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		entities, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, entities, id1)
		assert.Contains(t, entities, id2)
	})
}
