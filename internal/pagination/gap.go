package pagination

import "fmt"

// GapPhase enumerates the gap-resolution states.
type GapPhase int

const (
	GapInitial GapPhase = iota
	GapLoading
	GapSuccess
	GapFail
)

// String returns the phase name.
func (p GapPhase) String() string {
	switch p {
	case GapInitial:
		return "Initial"
	case GapLoading:
		return "Loading"
	case GapSuccess:
		return "Success"
	case GapFail:
		return "Fail"
	default:
		return fmt.Sprintf("GapPhase(%d)", int(p))
	}
}

// GapState is one value of a gap-resolution flow.
type GapState struct {
	Phase  GapPhase
	Anchor string
}

// String renders the state as Phase(anchor).
func (s GapState) String() string {
	return fmt.Sprintf("%s(%s)", s.Phase, s.Anchor)
}

// ValidGap reports whether from -> to is a legal gap transition.
// The anchor never changes within one flow.
func ValidGap(from, to GapState) bool {
	if from.Anchor != to.Anchor {
		return false
	}
	switch from.Phase {
	case GapInitial, GapFail:
		return to.Phase == GapLoading
	case GapLoading:
		return to.Phase == GapSuccess || to.Phase == GapFail
	default:
		return false
	}
}

// NewGapMachine starts a gap-resolution flow for anchor.
func NewGapMachine(anchor string) *Machine[GapState] {
	return NewMachine(GapState{Phase: GapInitial, Anchor: anchor}, ValidGap)
}

// NewFeedMachine starts a reload/load-older flow in Initial.
func NewFeedMachine() *Machine[State] {
	return NewMachine(Initial(), Valid)
}
