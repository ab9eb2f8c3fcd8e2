package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: first_load
description: a first load settles in Idle
steps:
  - respond:
      - {kind: newest, items: [P1, P2], cursor: c1}
    command: refresh
    expect: {state: Idle, snapshot: "[P1 P2 <loading>]"}
`

const failingScenario = `name: wrong_state
description: expects the wrong state
steps:
  - respond:
      - {kind: newest, items: [P1]}
    command: refresh
    expect: {state: Idle}
`

func TestTestCommand_HarnessSuite(t *testing.T) {
	out, _, err := execute(t, "test", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ gap_open_and_fill\n")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scenarios/first_load.yaml", passingScenario)

	out, _, err := execute(t, "test", filepath.Join(dir, "scenarios"), "--update")
	require.NoError(t, err, out)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "first_load.golden"))
	require.NoError(t, err)
	assert.Equal(t, "scenario first_load\n"+
		"step 1: refresh\n"+
		"  state Initial -> Reloading\n"+
		"  state Reloading -> Loading\n"+
		"  state Loading -> Idle\n"+
		"  snapshot [P1 P2 <loading>]\n"+
		"  => Idle [P1 P2 <loading>]\n", string(golden))

	_, _, err = execute(t, "test", filepath.Join(dir, "scenarios"))
	require.NoError(t, err)

	writeFile(t, dir, "golden/first_load.golden", "scenario first_load\n")
	out, _, err = execute(t, "test", filepath.Join(dir, "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scenarios/first_load.yaml", passingScenario)
	writeFile(t, dir, "scenarios/wrong_state.yml", failingScenario)

	out, _, err := execute(t, "test", filepath.Join(dir, "scenarios"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, []ScenarioResult{
		{Name: "first_load", Pass: true},
		{Name: "wrong_state", Errors: []string{"step 1 (refresh): state: expected Idle, got NoMore"}},
	}, resp.Data.Scenarios)
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scenarios/first_load.yaml", passingScenario)
	writeFile(t, dir, "scenarios/wrong_state.yaml", failingScenario)

	out, _, err := execute(t, "test", filepath.Join(dir, "scenarios"), "--filter", "first_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scenarios/typo.yaml", "name: typo\ndescription: d\nsteps: [{command: refresh, expct: {}}]\n")

	out, _, err := execute(t, "test", filepath.Join(dir, "scenarios"))
	require.Error(t, err)
	assert.Contains(t, out, "✗ typo.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_Empty(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
