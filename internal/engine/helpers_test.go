package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/gateway"
	"github.com/mastodon/mastodon-ios-sub005/internal/store"
	"github.com/mastodon/mastodon-ios-sub005/internal/testutil"
)

var homeParams = feed.Params{Domain: testutil.Domain, Timeline: "home"}

type fixture struct {
	engine *Engine
	ctrl   *Controller
	store  store.EntityStore
	events <-chan Event
	cancel context.CancelFunc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// start runs a controller over gw and a fresh memory store.
func start(t *testing.T, gw gateway.Gateway, opts ...EngineOption) *fixture {
	t.Helper()
	return startWithStore(t, store.NewMemory(), gw, opts...)
}

func startWithStore(t *testing.T, s store.EntityStore, gw gateway.Gateway, opts ...EngineOption) *fixture {
	t.Helper()
	base := []EngineOption{
		WithLogger(quietLogger()),
		WithClock(testutil.NewManualClock(time.Time{})),
		WithHandleGenerator(testutil.NewFixedIDs("feed-1", "feed-2")),
	}
	e := New(s, gw, append(base, opts...)...)
	c := e.Open(homeParams)
	events, _ := c.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})

	return &fixture{engine: e, ctrl: c, store: s, events: events, cancel: cancel}
}

// drain waits until the controller has nothing in flight.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.ctrl.Drain(ctx))
}

// collect returns every event delivered so far.
func (f *fixture) collect() []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-f.events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (f *fixture) snapshot() string {
	return f.ctrl.Snapshot().String()
}

func snapshotsOf(events []Event) []SnapshotEvent {
	var out []SnapshotEvent
	for _, ev := range events {
		if s, ok := ev.(SnapshotEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

func failuresOf(events []Event) []FailureEvent {
	var out []FailureEvent
	for _, ev := range events {
		if s, ok := ev.(FailureEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

func statesOf(events []Event) []string {
	var out []string
	for _, ev := range events {
		if s, ok := ev.(StateEvent); ok {
			out = append(out, s.To.String())
		}
	}
	return out
}

// failingStore fails every upsert of one id.
type failingStore struct {
	*store.Memory
	failID string
}

func (s *failingStore) Upsert(ctx context.Context, e feed.RawEntity, networkDate time.Time) (feed.FeedItem, bool, error) {
	if e.ID == s.failID {
		return feed.FeedItem{}, false, io.ErrUnexpectedEOF
	}
	return s.Memory.Upsert(ctx, e, networkDate)
}
