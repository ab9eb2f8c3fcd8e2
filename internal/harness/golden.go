package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where goldie keeps traces, relative to the test package.
const GoldenDir = "testdata/golden"

// Render formats a result's trace as the text stored in golden files.
//
//	scenario gap_open_and_fill
//	step 1: refresh
//	  state Initial -> Reloading
//	  ...
//	  => Idle [P3 P4 P5 <loading>]
func Render(name string, r *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario %s\n", name)
	for _, st := range r.Trace {
		if st.Accepted {
			fmt.Fprintf(&buf, "step %d: %s\n", st.Step, st.Command)
		} else {
			fmt.Fprintf(&buf, "step %d: %s (rejected)\n", st.Step, st.Command)
		}
		for _, ev := range st.Events {
			fmt.Fprintf(&buf, "  %s\n", ev)
		}
		fmt.Fprintf(&buf, "  => %s %s\n", st.State, st.Snapshot)
	}
	return buf.Bytes()
}

// RunWithGolden runs the scenario, fails the test on unmet expectations and
// compares the trace against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("scenario %s: %v", s.Name, err)
	}
	for _, e := range result.Errors {
		t.Errorf("scenario %s: %s", s.Name, e)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, Render(s.Name, result))
	return result
}

// GoldenPath returns the golden file of a scenario file: scenarios live in
// <dir>/scenarios, traces in <dir>/golden.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(filepath.Dir(scenarioFile)), "golden", name+".golden")
}

// WriteGolden stores the rendered trace at path.
func WriteGolden(path string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, trace, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the trace equals the golden file at path.
// A missing golden file is reported through os.ErrNotExist.
func CompareGolden(path string, trace []byte) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, trace), nil
}
