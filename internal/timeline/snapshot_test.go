package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntry_KeyRoundTrip(t *testing.T) {
	for _, e := range []Entry{Item("P1"), Gap("P2"), BottomLoader()} {
		assert.Equal(t, e, ParseKey(e.Key()))
	}
}

func TestEntry_ReservedLookingIDsDoNotCollide(t *testing.T) {
	entries := []Entry{
		Item("gap:P2"), Gap("P2"),
		Item("bottom-loader"), BottomLoader(),
		Item(`\\x`), Item("x"),
	}

	seen := make(map[string]Entry, len(entries))
	for _, e := range entries {
		key := e.Key()
		prev, dup := seen[key]
		assert.False(t, dup, "%v and %v share key %q", prev, e, key)
		seen[key] = e
		assert.Equal(t, e, ParseKey(key))
	}
	assert.Equal(t, `\gap:P2`, Item("gap:P2").Key())
	assert.Equal(t, "P1", Item("P1").Key(), "ordinary ids are their own key")

	s := NewSnapshot(1, Item("bottom-loader"), Gap("bottom-loader"), BottomLoader())
	assert.Equal(t, 0, s.IndexOfKey(Item("bottom-loader").Key()))
	assert.Equal(t, 2, s.IndexOfKey(BottomLoader().Key()))
	assert.Equal(t, []string{"bottom-loader"}, s.ItemIDs())
}

func TestSnapshot_Accessors(t *testing.T) {
	s := SnapshotFromKeys(7, "P1", "P2", "gap:P2", "P3", "bottom-loader")

	assert.Equal(t, 5, s.Len())
	assert.True(t, s.HasGap())
	assert.True(t, s.HasBottomLoader())
	assert.Equal(t, []string{"P1", "P2", "P3"}, s.ItemIDs())
	assert.Equal(t, 2, s.IndexOfKey("gap:P2"))
	assert.Equal(t, -1, s.IndexOfKey("P9"))
	assert.Equal(t, EntryGap, s.At(2).Kind)
	assert.Equal(t, "[P1 P2 <gap anchor=P2> P3 <loading>]", s.String())
}

func TestSnapshot_IsImmutable(t *testing.T) {
	entries := []Entry{Item("P1")}
	s := NewSnapshot(1, entries...)
	entries[0] = Item("X")

	got := s.Entries()
	got[0] = Item("Y")

	assert.Equal(t, []string{"P1"}, s.Keys())
}
