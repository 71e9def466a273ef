package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_KeepsDeclarationOrder(t *testing.T) {
	loader := memory.NewLoader(
		domain.StateSpec{ID: "root"},
		domain.StateSpec{ID: "b", Parent: "root"},
		domain.StateSpec{ID: "a", Parent: "root"},
	)

	specs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, domain.StateID("b"), specs[1].ID)

	specs[0].ID = "mutated"
	again, _ := loader.Load(context.Background())
	assert.Equal(t, domain.StateID("root"), again[0].ID)
}

func TestLoader_RejectsMissingID(t *testing.T) {
	_, err := memory.NewLoader(domain.StateSpec{Parent: "x"}).Load(context.Background())
	assert.Error(t, err)
}
