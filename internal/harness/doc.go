// Package harness runs feed controller scenarios described in YAML.
//
// A scenario is a list of steps. Each step queues scripted gateway
// responses, issues one controller command, waits until no fetch is in
// flight and then checks the resulting state, snapshot, gap and failure
// against the step's expectations.
//
// Every run also produces a trace: the events each step emitted followed by
// the settled state and snapshot. Traces are compared against golden files
// so any change in event order or content shows up as a diff.
//
//	name: refresh_then_load_older
//	description: first load then paging to the end
//	steps:
//	  - respond:
//	      - {kind: newest, items: [P1, P2, P3], cursor: c1}
//	    command: refresh
//	    expect: {state: Idle, snapshot: "[P1 P2 P3 <loading>]"}
//
// Runs are deterministic: the store is a fresh in-memory SQLite database,
// network dates come from a manual clock and the controller handle is fixed.
package harness
