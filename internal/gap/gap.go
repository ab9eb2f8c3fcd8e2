// Package gap decides whether a freshly fetched head page is contiguous with
// the items a feed already holds.
//
// A feed may grow by more items than one page holds between refreshes. When
// the oldest item of the new head page is not already known, the engine
// cannot assume the head connects to the known list and marks a gap right
// after the head so the missing range can be fetched later.
package gap

import "slices"

// DecisionKind enumerates Detect outcomes.
type DecisionKind int

const (
	// NoChange means the fresh head was empty: nothing is inserted and no gap
	// is introduced or removed.
	NoChange DecisionKind = iota
	// Contiguous means the head connects to the known list (or the list was
	// empty): prepend without a marker.
	Contiguous
	// Open means a gap exists after the head.
	Open
)

// String returns the decision name.
func (k DecisionKind) String() string {
	switch k {
	case NoChange:
		return "no_change"
	case Contiguous:
		return "contiguous"
	case Open:
		return "gap"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Detect.
type Decision struct {
	Kind DecisionKind

	// Index is the position, within the merged prepended list, of the last
	// fresh head item. The gap marker belongs immediately after it.
	// Only set when Kind == Open.
	Index int

	// AnchorID is the id of the last fresh head item: the newer bound of
	// the missing range. Only set when Kind == Open.
	AnchorID string
}

// IsGap reports whether the decision opens a gap.
func (d Decision) IsGap() bool {
	return d.Kind == Open
}

// MarkerIndex returns where the gap marker is inserted in the merged list.
func (d Decision) MarkerIndex() int {
	return d.Index + 1
}

// Detect compares a fresh "fetch newest" page with the previously known
// ordered ids.
//
//   - empty fresh head: NoChange
//   - empty previous list (first load): Contiguous
//   - last fresh id already known: Contiguous
//   - otherwise: Open at len(freshHeadIDs)-1, anchored at the last fresh id
func Detect(previousIDs, freshHeadIDs []string) Decision {
	if len(freshHeadIDs) == 0 {
		return Decision{Kind: NoChange}
	}
	if len(previousIDs) == 0 {
		return Decision{Kind: Contiguous}
	}

	last := freshHeadIDs[len(freshHeadIDs)-1]
	if slices.Contains(previousIDs, last) {
		return Decision{Kind: Contiguous}
	}

	return Decision{
		Kind:     Open,
		Index:    len(freshHeadIDs) - 1,
		AnchorID: last,
	}
}
