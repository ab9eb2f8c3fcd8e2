package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		s, err := LoadScenario(file)
		require.NoError(t, err, file)
		t.Run(s.Name, func(t *testing.T) {
			result := RunWithGolden(t, s)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: expectations that do not hold
steps:
  - respond:
      - {kind: newest, items: [P1], cursor: c1}
    command: refresh
    expect:
      state: NoMore
      snapshot: "[P9]"
      gap: P1
      failure: TRANSPORT
  - command: resolve_gap
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		"step 1 (refresh): state: expected NoMore, got Idle",
		"step 1 (refresh): snapshot: expected [P9], got [P1 <loading>]",
		"step 1 (refresh): gap: expected P1, got none",
		"step 1 (refresh): failure: expected TRANSPORT, got none",
	}, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.False(t, result.Trace[1].Accepted, "steps without expectations are traced but not checked")
}

func TestRun_RejectionMismatch(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: rejection
description: rejected flags are compared both ways
steps:
  - command: load_older
  - command: dismiss_gap
    expect: {rejected: false}
  - respond:
      - {kind: newest, items: [P1]}
    command: refresh
    expect: {rejected: true}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"step 2 (dismiss_gap): command was rejected",
		"step 3 (refresh): expected command to be rejected",
	}, result.Errors)
}

func TestRun_MissingResponseIsTransportFailure(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: unscripted
description: a call nobody scripted fails like a transport error
steps:
  - command: refresh
    expect: {state: Fail, failure: TRANSPORT}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{
		"state Initial -> Reloading",
		"state Reloading -> Loading",
		"state Loading -> Fail",
		"failure TRANSPORT reload",
	}, result.Trace[0].Events)
}

func TestRun_CancelledContext(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: cancelled
description: a cancelled run stops at the first step
steps:
  - command: refresh
`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, s)
	assert.Error(t, err)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: a\ndescription: b\nstep: []\n", "field step not found"},
		{"missing name", "description: b\nsteps: [{command: refresh}]\n", "name is required"},
		{"missing description", "name: a\nsteps: [{command: refresh}]\n", "description is required"},
		{"no steps", "name: a\ndescription: b\n", "steps list is required"},
		{"missing command", "name: a\ndescription: b\nsteps: [{expect: {state: Idle}}]\n", "steps[0]: command is required"},
		{"unknown command", "name: a\ndescription: b\nsteps: [{command: jump}]\n", "steps[0]"},
		{"feed outside reset", "name: a\ndescription: b\nsteps: [{command: refresh, feed: {timeline: x}}]\n", "feed is only allowed on reset"},
		{"unknown kind", "name: a\ndescription: b\nsteps: [{command: refresh, respond: [{kind: sideways}]}]\n", `unknown kind "sideways"`},
		{"unknown error", "name: a\ndescription: b\nsteps: [{command: refresh, respond: [{kind: newest, error: boom}]}]\n", `unknown error "boom"`},
		{"error with items", "name: a\ndescription: b\nsteps: [{command: refresh, respond: [{kind: newest, error: logical, items: [P1]}]}]\n", "carry no items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestRender(t *testing.T) {
	r := &Result{Trace: []StepTrace{
		{Step: 1, Command: "refresh", Accepted: true, Events: []string{"state Initial -> Reloading"}, State: "Loading", Snapshot: "[]"},
		{Step: 2, Command: "retry", State: "Loading", Snapshot: "[]"},
	}}
	want := strings.Join([]string{
		"scenario demo",
		"step 1: refresh",
		"  state Initial -> Reloading",
		"  => Loading []",
		"step 2: retry (rejected)",
		"  => Loading []",
		"",
	}, "\n")
	assert.Equal(t, want, string(Render("demo", r)))
}

func TestGoldenFiles(t *testing.T) {
	path := GoldenPath(filepath.Join("suite", "scenarios", "gap.yaml"))
	assert.Equal(t, filepath.Join("suite", "golden", "gap.golden"), path)

	dir := t.TempDir()
	golden := GoldenPath(filepath.Join(dir, "scenarios", "x.yml"))

	_, err := CompareGolden(golden, []byte("a\n"))
	require.Error(t, err, "missing golden file")

	require.NoError(t, WriteGolden(golden, []byte("a\n")))
	match, err := CompareGolden(golden, []byte("a\n"))
	require.NoError(t, err)
	assert.True(t, match)

	match, err = CompareGolden(golden, []byte("b\n"))
	require.NoError(t, err)
	assert.False(t, match)
}
