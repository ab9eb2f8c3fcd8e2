// Package engine implements the Feed Controller: the single-writer owner of
// one feed's pagination state, ordered list and latest snapshot.
//
// Single-writer loop:
// Every mutation of a controller's list and state machines happens in its
// Run goroutine. Commands (Refresh, LoadOlder, ResolveGap, ...) are queued
// and decided in FIFO order; the command method returns once the loop has
// accepted or rejected it, never across a fetch.
//
// Fetches:
// Gateway calls run in their own goroutines. A fetch goroutine merges the
// page into the shared Entity Store (the freshness gate makes concurrent
// merges safe) and posts the result back to the queue. It holds only the
// controller's handle: if the controller has been closed the lookup fails
// and the result is dropped.
//
// Flows:
// The reload/load-older flow is one pagination.Machine[State]. Each open gap
// has its own pagination.Machine[GapState] keyed by anchor id. At most one
// gap is open per feed; a newer head gap supersedes the old one.
//
// Output:
// Subscribers receive SnapshotEvent (with an optional scroll adjustment),
// StateEvent, GapEvent and FailureEvent values in sequence order.
package engine
