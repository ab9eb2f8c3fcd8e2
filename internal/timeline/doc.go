// Package timeline holds the ordered id list materialized for one feed
// (the OrderedFeedList) and the immutable snapshots derived from it.
//
// A List contains feed item ids and at most one gap marker. It never holds
// the same item id twice: every insert is deduplicated against the list and
// within the inserted batch. The trailing "bottom loading" marker is not part
// of the list; it exists only in snapshots.
//
// List is not safe for concurrent use. It is owned by a single feed
// controller and mutated only from that controller's event loop.
package timeline
