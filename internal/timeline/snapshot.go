package timeline

import (
	"slices"
	"strings"
)

// Snapshot is an immutable ordered view of a feed: items, at most one gap
// marker and an optional trailing bottom loader. Two consecutive snapshots
// are the unit the reconciler diffs.
type Snapshot struct {
	version int64
	entries []Entry
}

// NewSnapshot builds a snapshot from entries. The slice is copied.
func NewSnapshot(version int64, entries ...Entry) Snapshot {
	return Snapshot{version: version, entries: slices.Clone(entries)}
}

// SnapshotFromKeys builds a snapshot from entry keys (see Entry.Key).
func SnapshotFromKeys(version int64, keys ...string) Snapshot {
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = ParseKey(k)
	}
	return Snapshot{version: version, entries: entries}
}

// Version is the snapshot's position in its controller's sequence.
func (s Snapshot) Version() int64 {
	return s.version
}

// Len returns the number of entries.
func (s Snapshot) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the entries.
func (s Snapshot) Entries() []Entry {
	return slices.Clone(s.entries)
}

// At returns the entry at index i.
func (s Snapshot) At(i int) Entry {
	return s.entries[i]
}

// Keys returns the entry keys in order.
func (s Snapshot) Keys() []string {
	keys := make([]string, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.Key()
	}
	return keys
}

// ItemIDs returns item ids only.
func (s Snapshot) ItemIDs() []string {
	var ids []string
	for _, e := range s.entries {
		if e.Kind == EntryItem {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// IndexOfKey returns the position of the entry with the given key, or -1.
func (s Snapshot) IndexOfKey(key string) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.Key() == key })
}

// HasGap reports whether the snapshot contains a gap marker.
func (s Snapshot) HasGap() bool {
	return slices.ContainsFunc(s.entries, func(e Entry) bool { return e.Kind == EntryGap })
}

// HasBottomLoader reports whether the trailing loading marker is present.
func (s Snapshot) HasBottomLoader() bool {
	n := len(s.entries)
	return n > 0 && s.entries[n-1].Kind == EntryBottomLoader
}

// String renders the snapshot as [P1 P2 <gap anchor=P2> P3 <loading>].
func (s Snapshot) String() string {
	parts := make([]string, len(s.entries))
	for i, e := range s.entries {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
