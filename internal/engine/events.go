package engine

import (
	"fmt"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/pagination"
	"github.com/mastodon/mastodon-ios-sub005/internal/reconcile"
	"github.com/mastodon/mastodon-ios-sub005/internal/timeline"
)

// Event is a value delivered to subscribers.
type Event interface {
	EventSeq() int64
}

// SnapshotEvent carries a new snapshot of the feed.
//
// Adjustment is nil when the viewport needs no correction. Otherwise the
// presentation layer applies Snapshot without animation, jumps to
// Adjustment.TargetIndex and subtracts OffsetDelta from its scroll offset.
type SnapshotEvent struct {
	Seq         int64
	Snapshot    timeline.Snapshot
	Adjustment  *reconcile.ScrollAdjustment
	OffsetDelta float64
}

// StateEvent reports a reload/load-older transition.
type StateEvent struct {
	Seq  int64
	From pagination.State
	To   pagination.State
}

// GapEvent reports a gap-resolution transition.
type GapEvent struct {
	Seq  int64
	From pagination.GapState
	To   pagination.GapState
}

// FailureEvent reports a failed flow. The matching StateEvent or GapEvent
// carries the Fail state.
type FailureEvent struct {
	Seq int64
	Err *feed.Error
}

func (e SnapshotEvent) EventSeq() int64 { return e.Seq }
func (e StateEvent) EventSeq() int64    { return e.Seq }
func (e GapEvent) EventSeq() int64      { return e.Seq }
func (e FailureEvent) EventSeq() int64  { return e.Seq }

func (e SnapshotEvent) String() string {
	if e.Adjustment == nil {
		return fmt.Sprintf("#%d snapshot %s", e.Seq, e.Snapshot)
	}
	return fmt.Sprintf("#%d snapshot %s target=%d inserted=%v", e.Seq, e.Snapshot, e.Adjustment.TargetIndex, e.Adjustment.Inserted)
}

func (e StateEvent) String() string {
	return fmt.Sprintf("#%d state %s -> %s", e.Seq, e.From, e.To)
}

func (e GapEvent) String() string {
	return fmt.Sprintf("#%d gap %s -> %s", e.Seq, e.From, e.To)
}

func (e FailureEvent) String() string {
	return fmt.Sprintf("#%d failure %s", e.Seq, e.Err)
}

// CommandKind names a controller command.
type CommandKind int

const (
	CommandRefresh CommandKind = iota + 1
	CommandLoadOlder
	CommandResolveGap
	CommandRetry
	CommandDismissGap
	CommandReset
)

var commandNames = map[CommandKind]string{
	CommandRefresh:    "refresh",
	CommandLoadOlder:  "load_older",
	CommandResolveGap: "resolve_gap",
	CommandRetry:      "retry",
	CommandDismissGap: "dismiss_gap",
	CommandReset:      "reset",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// ParseCommand is the inverse of CommandKind.String.
func ParseCommand(s string) (CommandKind, error) {
	for k, name := range commandNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// flowKind identifies which fetch a result belongs to.
type flowKind int

const (
	flowHead flowKind = iota + 1
	flowOlder
	flowGap
)

// flow describes one gateway call.
type flow struct {
	kind   flowKind
	cursor string // flowOlder
	anchor string // flowGap: the gap's key
	above  string // flowGap: the item above the marker (olderThan)
	below  string // flowGap: the item below the marker (newerThan)
}

// key identifies the flow slot: one main fetch and one fetch per gap.
func (f flow) key() string {
	if f.kind == flowGap {
		return "gap:" + f.anchor
	}
	return "main"
}

// op names the flow in errors and logs.
func (f flow) op() string {
	switch f.kind {
	case flowHead:
		return "reload"
	case flowOlder:
		return "load_older"
	default:
		return "load_gap"
	}
}
