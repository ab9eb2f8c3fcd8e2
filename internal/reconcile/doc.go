// Package reconcile merges fetched entities into the Entity Store and
// computes the scroll-preserving difference between consecutive snapshots.
//
// Both halves are free of controller state: MergeBatch only needs a store
// and a view of which ids a feed already holds, and Diff is a pure function
// of two snapshots. The engine package composes them.
package reconcile
