package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guardYAML = `name: guard
states:
  - id: alive
  - id: patrol
    parent: alive
    priority: 5
    exit: tired
  - id: rest
    parent: alive
    priority: 1
    exit: not(tired)
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeGuard(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(guardYAML), 0644))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeGuard(t)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, `Tree "guard" is valid: 3 states, 1 conditions`)

	_, err = execute(t, "validate", path, "--conditions", "sleepy")
	assert.ErrorContains(t, err, `"tired"`)
}

func TestSimulateAndGraphCommands(t *testing.T) {
	path := writeGuard(t)
	store := t.TempDir()

	out, err := execute(t, "simulate", path, "--ticks", "3", "--at", "1:tired=true", "--store", store, "--entity", "g1")
	require.NoError(t, err)
	assert.Equal(t, "tick 0: transition - -> patrol\ntick 1: transition patrol -> rest via alive (reset)\ntick 2: stay in rest\n", out)

	out, err = execute(t, "graph", path, "--store", store, "--entity", "g1")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "class patrol visited;")
	assert.Contains(t, out, "class rest current;")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "arbor version dev\n", out)
}

func TestDescribeCommand(t *testing.T) {
	out, err := execute(t, "describe", writeGuard(t))
	require.NoError(t, err)
	assert.Contains(t, out, "# guard")
	assert.Contains(t, out, "| &nbsp;&nbsp;`patrol` | 5 | - | `tired` | reset |")
}
