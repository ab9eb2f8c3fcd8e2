package pagination

import "fmt"

// Phase enumerates the reload/load-older states.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseReloading
	PhaseLoading
	PhaseIdle
	PhaseFail
	PhaseNoMore
)

var phaseNames = map[Phase]string{
	PhaseInitial:   "Initial",
	PhaseReloading: "Reloading",
	PhaseLoading:   "Loading",
	PhaseIdle:      "Idle",
	PhaseFail:      "Fail",
	PhaseNoMore:    "NoMore",
}

// String returns the phase name.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown pagination phase %q", s)
}

// State is one value of the reload/load-older flow.
//
// Cursor is meaningful in two phases: in Loading it is the older-cursor
// being fetched ("" means fetch newest), in Fail it is the cursor of the
// attempt that failed so a retry can resume it.
type State struct {
	Phase  Phase
	Cursor string
}

// Initial is the state of a fresh feed.
func Initial() State { return State{Phase: PhaseInitial} }

// Reloading is entered by refresh.
func Reloading() State { return State{Phase: PhaseReloading} }

// Loading fetches the page at cursor, or the newest page for "".
func Loading(cursor string) State { return State{Phase: PhaseLoading, Cursor: cursor} }

// Idle means older pages exist and nothing is in flight.
func Idle() State { return State{Phase: PhaseIdle} }

// Fail records a failed fetch of cursor.
func Fail(cursor string) State { return State{Phase: PhaseFail, Cursor: cursor} }

// NoMore means the feed is exhausted.
func NoMore() State { return State{Phase: PhaseNoMore} }

// IsHead reports whether a Loading state fetches the newest page. Only head
// fetches can open gaps.
func (s State) IsHead() bool {
	return s.Phase == PhaseLoading && s.Cursor == ""
}

// String renders the state as Phase or Phase(cursor).
func (s State) String() string {
	if (s.Phase == PhaseLoading || s.Phase == PhaseFail) && s.Cursor != "" {
		return fmt.Sprintf("%s(%s)", s.Phase, s.Cursor)
	}
	return s.Phase.String()
}

// Valid reports whether from -> to is a legal transition.
func Valid(from, to State) bool {
	switch from.Phase {
	case PhaseInitial:
		return to.Phase == PhaseReloading
	case PhaseReloading:
		return to.Phase == PhaseLoading && to.Cursor == ""
	case PhaseLoading:
		return to.Phase == PhaseIdle || to.Phase == PhaseNoMore || to.Phase == PhaseFail
	case PhaseIdle:
		return (to.Phase == PhaseLoading && to.Cursor != "") || to.Phase == PhaseReloading
	case PhaseFail:
		return to.Phase == PhaseLoading || to.Phase == PhaseReloading
	case PhaseNoMore:
		return to.Phase == PhaseReloading
	default:
		return false
	}
}

// Command is a caller request against the reload/load-older flow.
type Command int

const (
	CmdRefresh Command = iota + 1
	CmdLoadOlder
	CmdRetry
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdRefresh:
		return "refresh"
	case CmdLoadOlder:
		return "load_older"
	case CmdRetry:
		return "retry"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Target returns the state a command moves s to. olderCursor is the feed's
// last known older-cursor, used by CmdLoadOlder. ok is false when the
// command is not accepted in s, including a load-older with no known cursor.
func Target(s State, cmd Command, olderCursor string) (State, bool) {
	var to State
	switch cmd {
	case CmdRefresh:
		to = Reloading()
	case CmdLoadOlder:
		if olderCursor == "" {
			return s, false
		}
		to = Loading(olderCursor)
	case CmdRetry:
		if s.Phase != PhaseFail {
			return s, false
		}
		to = Loading(s.Cursor)
	default:
		return s, false
	}
	if !Valid(s, to) {
		return s, false
	}
	return to, true
}

// Settle returns the state a Loading state ends in: Fail on error, Idle when
// an older page exists, NoMore otherwise.
func Settle(s State, olderCursor string, err error) State {
	switch {
	case err != nil:
		return Fail(s.Cursor)
	case olderCursor != "":
		return Idle()
	default:
		return NoMore()
	}
}
