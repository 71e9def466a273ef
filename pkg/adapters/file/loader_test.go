package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.TreeLoader = (*file.Loader)(nil)

const orcYAML = `name: orc
states:
  - id: alive
  - id: combat
    parent: alive
    priority: 5
    enter: sees_enemy
    exit: not(sees_enemy)
  - id: idle
    parent: alive
    priority: 1
    strategy: continue
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_YAML(t *testing.T) {
	specs, err := file.NewLoader(writeFile(t, "orc.yaml", orcYAML)).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.StateSpec{
		{ID: "alive"},
		{ID: "combat", Parent: "alive", Priority: 5, Enter: "sees_enemy", Exit: "not(sees_enemy)"},
		{ID: "idle", Parent: "alive", Priority: 1, Strategy: domain.StrategyContinue},
	}, specs)
}

func TestLoader_JSON(t *testing.T) {
	path := writeFile(t, "tree.json", `{"states":[{"id":"root"},{"id":"a","parent":"root","priority":2,"strategy":"exit"}]}`)
	specs, err := file.NewLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.StateSpec{
		{ID: "root"},
		{ID: "a", Parent: "root", Priority: 2, Strategy: domain.StrategyExit},
	}, specs)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown key", "t.yaml", "states:\n  - id: a\n    transitions: []\n", "transitions"},
		{"missing id", "t.yaml", "states:\n  - parent: a\n", "no id"},
		{"bad strategy", "t.yaml", "states:\n  - id: a\n    strategy: sideways\n", "unknown strategy"},
		{"bad yaml", "t.yaml", "states: [", "parse tree yaml"},
		{"bad json", "t.json", "{", "parse tree json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := file.NewLoader(writeFile(t, tt.file, tt.content)).Load(context.Background())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := file.NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load(context.Background())
	assert.ErrorContains(t, err, "read tree file")
}

func TestWrite_RoundTrip(t *testing.T) {
	specs, err := file.NewLoader(writeFile(t, "orc.yaml", orcYAML)).Load(context.Background())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "copy.yml")
	require.NoError(t, file.Write(out, "orc", specs))

	l := file.NewLoader(out)
	doc, err := l.Document()
	require.NoError(t, err)
	assert.Equal(t, "orc", doc.Name)

	again, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, specs, again)
}
