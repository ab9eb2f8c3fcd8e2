package reconcile

import (
	"github.com/mastodon/mastodon-ios-sub005/internal/timeline"
)

// Geometry reports the rendered height of a snapshot entry. It is supplied
// by the presentation layer; the engine never measures anything itself.
type Geometry interface {
	Height(e timeline.Entry) float64
}

// GeometryFunc adapts a function to Geometry.
type GeometryFunc func(e timeline.Entry) float64

// Height implements Geometry.
func (f GeometryFunc) Height(e timeline.Entry) float64 {
	return f(e)
}

// ScrollAdjustment tells the presentation layer how to keep the viewport
// stationary: apply the new snapshot without animation, jump to
// TargetIndex, then subtract the offset of the Inserted entries from the
// scroll offset.
type ScrollAdjustment struct {
	// AnchorKey is the key of the entry the viewport was anchored to
	// (the first entry of the old snapshot).
	AnchorKey string

	// TargetIndex is the anchor's index in the new snapshot.
	TargetIndex int

	// Inserted are the keys of the entries that now precede the anchor.
	Inserted []string

	inserted []timeline.Entry
}

// Offset returns the cumulative height of the inserted leading entries.
// A nil Geometry yields 0.
func (a *ScrollAdjustment) Offset(g Geometry) float64 {
	if a == nil || g == nil {
		return 0
	}
	total := 0.0
	for _, e := range a.inserted {
		total += g.Height(e)
	}
	return total
}

// Diff computes the scroll adjustment between two snapshots, for the case
// where items were prepended or a gap was inserted at the top of old to
// produce next.
//
// The anchor is the first entry of old. Diff returns nil, meaning nothing
// to preserve, when old is empty, when the anchor is missing from next or
// when it is still first.
func Diff(old, next timeline.Snapshot) *ScrollAdjustment {
	if old.Len() == 0 {
		return nil
	}
	anchor := old.At(0).Key()
	target := next.IndexOfKey(anchor)
	if target <= 0 {
		return nil
	}

	adj := &ScrollAdjustment{
		AnchorKey:   anchor,
		TargetIndex: target,
		Inserted:    make([]string, target),
		inserted:    make([]timeline.Entry, target),
	}
	for i := 0; i < target; i++ {
		e := next.At(i)
		adj.inserted[i] = e
		adj.Inserted[i] = e.Key()
	}
	return adj
}
