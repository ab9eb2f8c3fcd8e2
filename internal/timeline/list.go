package timeline

import "slices"

// List is the ordered, deduplicated id list of one feed, newest first.
type List struct {
	entries []Entry
	ids     map[string]struct{}
}

// NewList creates an empty list.
func NewList() *List {
	return &List{ids: make(map[string]struct{})}
}

// Len returns the number of entries, gap marker included.
func (l *List) Len() int {
	return len(l.entries)
}

// Contains reports whether id is an item of the list.
func (l *List) Contains(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Entries returns a copy of the entries in order.
func (l *List) Entries() []Entry {
	return slices.Clone(l.entries)
}

// ItemIDs returns the item ids in order, without the gap marker.
func (l *List) ItemIDs() []string {
	ids := make([]string, 0, len(l.ids))
	for _, e := range l.entries {
		if e.Kind == EntryItem {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// LastItemID returns the oldest item id.
func (l *List) LastItemID() (string, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Kind == EntryItem {
			return l.entries[i].ID, true
		}
	}
	return "", false
}

// Dedupe drops ids already in the list and repeated ids within the batch,
// keeping the first occurrence. Order is preserved.
func (l *List) Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || l.Contains(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Prepend inserts ids at the top and returns the ids actually inserted.
func (l *List) Prepend(ids []string) []string {
	return l.InsertAt(0, ids)
}

// Append inserts ids at the bottom and returns the ids actually inserted.
func (l *List) Append(ids []string) []string {
	return l.InsertAt(len(l.entries), ids)
}

// InsertAt inserts ids before position index and returns the ids actually
// inserted. index is clamped to [0, Len()].
func (l *List) InsertAt(index int, ids []string) []string {
	fresh := l.Dedupe(ids)
	if len(fresh) == 0 {
		return fresh
	}
	index = max(0, min(index, len(l.entries)))

	rows := make([]Entry, len(fresh))
	for i, id := range fresh {
		rows[i] = Item(id)
		l.ids[id] = struct{}{}
	}
	l.entries = slices.Insert(l.entries, index, rows...)
	return fresh
}

// MergeHead places a newest-first page onto the list. Unknown ids go to the
// top until the page reaches a known item; after that each unknown id goes
// right after the known item that precedes it in the page, ahead of any gap
// marker there. Repeated and known ids are skipped. Returns the ids
// inserted, in page order.
func (l *List) MergeHead(ids []string) []string {
	var inserted []string
	pos := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if l.Contains(id) {
			pos = l.IndexOf(id) + 1
			continue
		}
		l.entries = slices.Insert(l.entries, pos, Item(id))
		l.ids[id] = struct{}{}
		inserted = append(inserted, id)
		pos++
	}
	return inserted
}

// IndexOf returns the position of item id, or -1.
func (l *List) IndexOf(id string) int {
	if !l.Contains(id) {
		return -1
	}
	return slices.IndexFunc(l.entries, func(e Entry) bool {
		return e.Kind == EntryItem && e.ID == id
	})
}

// Gap returns the anchor and position of the open gap marker.
func (l *List) Gap() (anchor string, index int, ok bool) {
	i := slices.IndexFunc(l.entries, func(e Entry) bool { return e.Kind == EntryGap })
	if i < 0 {
		return "", -1, false
	}
	return l.entries[i].Anchor, i, true
}

// OpenGap places a gap marker immediately after the anchor item. An
// existing marker is removed first so at most one gap is ever open; its
// anchor is returned as superseded. OpenGap is a no-op returning false if the
// anchor is not an item of the list or is the last item.
func (l *List) OpenGap(anchorID string) (superseded string, ok bool) {
	i := l.IndexOf(anchorID)
	if i < 0 || i == len(l.entries)-1 {
		return "", false
	}
	if prev, _, had := l.Gap(); had {
		if prev == anchorID {
			return "", true
		}
		l.RemoveGap()
		superseded = prev
		i = l.IndexOf(anchorID)
	}
	l.entries = slices.Insert(l.entries, i+1, Gap(anchorID))
	return superseded, true
}

// RemoveGap drops the open gap marker. Returns false if none is open.
func (l *List) RemoveGap() bool {
	_, i, ok := l.Gap()
	if !ok {
		return false
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	return true
}

// ItemIDsAround returns the item ids immediately above and below the gap
// marker: the bounds of the missing range.
func (l *List) ItemIDsAround() (newer, older string, ok bool) {
	_, i, had := l.Gap()
	if !had || i == 0 || i == len(l.entries)-1 {
		return "", "", false
	}
	return l.entries[i-1].ID, l.entries[i+1].ID, true
}

// Reset empties the list.
func (l *List) Reset() {
	l.entries = nil
	l.ids = make(map[string]struct{})
}

// Snapshot freezes the list. withLoader appends the bottom loading marker,
// but only to a non-empty list.
func (l *List) Snapshot(version int64, withLoader bool) Snapshot {
	entries := l.Entries()
	if withLoader && len(entries) > 0 {
		entries = append(entries, BottomLoader())
	}
	return Snapshot{version: version, entries: entries}
}
