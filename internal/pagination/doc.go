// Package pagination models the per-feed pagination flows as closed sets of
// state values with pure transition tables.
//
// The reload/load-older flow:
//
//	Initial   -> Reloading                 (only valid first transition)
//	Reloading -> Loading("")               (reload always clears the cursor)
//	Loading   -> Idle | NoMore | Fail
//	Idle      -> Loading(cursor) | Reloading
//	Fail      -> Loading(cursor) | Reloading
//	NoMore    -> Reloading
//
// The gap-resolution flow, one per open gap, keyed by anchor id:
//
//	Initial -> Loading(anchor) -> Success | Fail
//	Fail    -> Loading(anchor)
//
// Success is terminal. Legality is checkable without any behavior attached:
// Valid and ValidGap are plain functions, and Machine only applies them.
// Effects (fetching, merging) belong to the engine package.
package pagination
