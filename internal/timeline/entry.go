package timeline

import "strings"

// EntryKind distinguishes snapshot rows.
type EntryKind int

const (
	// EntryItem is a feed item.
	EntryItem EntryKind = iota + 1
	// EntryGap is the synthetic "load more between" marker.
	EntryGap
	// EntryBottomLoader is the trailing "loading older" marker.
	EntryBottomLoader
)

// String returns the kind name.
func (k EntryKind) String() string {
	switch k {
	case EntryItem:
		return "item"
	case EntryGap:
		return "gap"
	case EntryBottomLoader:
		return "bottom_loader"
	default:
		return "unknown"
	}
}

const (
	gapKeyPrefix    = "gap:"
	bottomLoaderKey = "bottom-loader"

	// escapedItemPrefix marks item keys whose id would read as a reserved
	// key (or already starts with the escape).
	escapedItemPrefix = `\`
)

// Entry is one row of a list or snapshot.
type Entry struct {
	Kind EntryKind

	// ID is the item id for EntryItem.
	ID string

	// Anchor is the id of the newest item above the gap, for EntryGap.
	Anchor string
}

// Item returns an item entry.
func Item(id string) Entry {
	return Entry{Kind: EntryItem, ID: id}
}

// Gap returns a gap marker anchored at anchorID.
func Gap(anchorID string) Entry {
	return Entry{Kind: EntryGap, Anchor: anchorID}
}

// BottomLoader returns the trailing loading marker.
func BottomLoader() Entry {
	return Entry{Kind: EntryBottomLoader}
}

// Key is the entry's identity within a snapshot. Items use their id; gap
// markers and the bottom loader use reserved keys. An item id that looks
// like a reserved key is prefixed with a backslash, so distinct entries
// never share a key.
func (e Entry) Key() string {
	switch e.Kind {
	case EntryGap:
		return gapKeyPrefix + e.Anchor
	case EntryBottomLoader:
		return bottomLoaderKey
	default:
		if reservedLooking(e.ID) {
			return escapedItemPrefix + e.ID
		}
		return e.ID
	}
}

func reservedLooking(id string) bool {
	return id == bottomLoaderKey ||
		strings.HasPrefix(id, gapKeyPrefix) ||
		strings.HasPrefix(id, escapedItemPrefix)
}

// ParseKey is the inverse of Key.
func ParseKey(key string) Entry {
	switch {
	case strings.HasPrefix(key, escapedItemPrefix):
		return Item(strings.TrimPrefix(key, escapedItemPrefix))
	case key == bottomLoaderKey:
		return BottomLoader()
	case strings.HasPrefix(key, gapKeyPrefix):
		return Gap(strings.TrimPrefix(key, gapKeyPrefix))
	default:
		return Item(key)
	}
}

// String renders the entry for traces: the id, <gap anchor=X> or <loading>.
func (e Entry) String() string {
	switch e.Kind {
	case EntryGap:
		return "<gap anchor=" + e.Anchor + ">"
	case EntryBottomLoader:
		return "<loading>"
	default:
		return e.ID
	}
}
