package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mastodon/mastodon-ios-sub005/internal/engine"
	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/gateway"
	"github.com/mastodon/mastodon-ios-sub005/internal/store"
	"github.com/mastodon/mastodon-ios-sub005/internal/testutil"
)

// DefaultStepTimeout bounds how long a step may take to settle.
const DefaultStepTimeout = 5 * time.Second

// Harness runs scenarios.
type Harness struct {
	logger      *slog.Logger
	stepTimeout time.Duration
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger routes controller logs. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithStepTimeout overrides DefaultStepTimeout.
func WithStepTimeout(d time.Duration) Option {
	return func(h *Harness) {
		h.stepTimeout = d
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		stepTimeout: DefaultStepTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with default options.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	return New().Run(ctx, s)
}

// Run executes the scenario against a fresh controller.
//
// The returned error reports a broken run (store unavailable, controller
// gone, a step that never settled). Failed expectations are reported in the
// Result instead.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	gw := gateway.NewScripted()
	eng := engine.New(st, gw,
		engine.WithLogger(h.logger),
		engine.WithClock(testutil.NewManualClock(time.Time{})),
		engine.WithHandleGenerator(testutil.NewFixedIDs(s.Name)),
	)

	params := defaultParams(s.Feed)
	ctrl := eng.Open(params)
	events, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	go ctrl.Run(runCtx)
	defer func() {
		cancel()
		<-ctrl.Done()
	}()

	result := NewResult()
	for i, step := range s.Steps {
		number := i + 1
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("step %d (%s): %w", number, step.Command, err)
		}
		for _, r := range step.Respond {
			queue(gw, r)
		}

		accepted := h.dispatch(ctrl, step, params)
		if err := h.settle(ctx, ctrl); err != nil {
			return result, fmt.Errorf("step %d (%s): %w", number, step.Command, err)
		}

		trace := StepTrace{
			Step:     number,
			Command:  step.Command,
			Accepted: accepted,
			State:    ctrl.State().String(),
			Snapshot: ctrl.Snapshot().String(),
			Gap:      ctrl.Stats().GapAnchor,
		}
		var lastFailure string
		for _, ev := range pending(events) {
			trace.Events = append(trace.Events, describe(ev))
			if f, ok := ev.(engine.FailureEvent); ok {
				lastFailure = string(f.Err.Code)
			}
		}
		result.Trace = append(result.Trace, trace)

		if step.Expect != nil {
			for _, msg := range check(*step.Expect, trace, lastFailure) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", number, step.Command, msg))
			}
		}
	}
	return result, nil
}

func defaultParams(p *feed.Params) feed.Params {
	if p == nil {
		return feed.Params{Domain: testutil.Domain, Timeline: "home"}
	}
	out := *p
	if out.Domain == "" {
		out.Domain = testutil.Domain
	}
	return out
}

func queue(gw *gateway.Scripted, r Response) {
	kind := gateway.CallKind(r.Kind)
	switch r.Error {
	case ErrorTransport:
		gw.PushError(kind, errors.New("scripted transport failure"))
	case ErrorLogical:
		gw.PushError(kind, fmt.Errorf("scripted rejection: %w", feed.ErrLogical))
	default:
		gw.PushPage(kind, testutil.Posts(r.Items...), r.Cursor)
	}
}

func (h *Harness) dispatch(c *engine.Controller, step Step, params feed.Params) bool {
	kind, _ := engine.ParseCommand(step.Command)
	switch kind {
	case engine.CommandRefresh:
		return c.Refresh()
	case engine.CommandLoadOlder:
		return c.LoadOlder()
	case engine.CommandResolveGap:
		return c.ResolveGap()
	case engine.CommandRetry:
		return c.Retry()
	case engine.CommandDismissGap:
		return c.DismissGap()
	case engine.CommandReset:
		if step.Feed != nil {
			params = defaultParams(step.Feed)
		}
		return c.Reset(params)
	default:
		return false
	}
}

func (h *Harness) settle(ctx context.Context, c *engine.Controller) error {
	ctx, cancel := context.WithTimeout(ctx, h.stepTimeout)
	defer cancel()
	return c.Drain(ctx)
}

// pending returns the events already delivered.
func pending(events <-chan engine.Event) []engine.Event {
	var out []engine.Event
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// describe renders an event without its sequence number.
func describe(ev engine.Event) string {
	switch e := ev.(type) {
	case engine.StateEvent:
		return fmt.Sprintf("state %s -> %s", e.From, e.To)
	case engine.GapEvent:
		return fmt.Sprintf("gap %s -> %s", e.From, e.To)
	case engine.SnapshotEvent:
		if e.Adjustment == nil {
			return "snapshot " + e.Snapshot.String()
		}
		return fmt.Sprintf("snapshot %s anchor=%s target=%d", e.Snapshot, e.Adjustment.AnchorKey, e.Adjustment.TargetIndex)
	case engine.FailureEvent:
		return fmt.Sprintf("failure %s %s", e.Err.Code, e.Err.Op)
	default:
		return fmt.Sprintf("event %T", ev)
	}
}

func check(want Expect, got StepTrace, lastFailure string) []string {
	var errs []string
	if want.Rejected == got.Accepted {
		if want.Rejected {
			errs = append(errs, "expected command to be rejected")
		} else {
			errs = append(errs, "command was rejected")
		}
	}
	if want.State != "" && want.State != got.State {
		errs = append(errs, fmt.Sprintf("state: expected %s, got %s", want.State, got.State))
	}
	if want.Snapshot != "" && want.Snapshot != got.Snapshot {
		errs = append(errs, fmt.Sprintf("snapshot: expected %s, got %s", want.Snapshot, got.Snapshot))
	}
	if want.Gap != "" {
		if g := orNone(got.Gap); want.Gap != g {
			errs = append(errs, fmt.Sprintf("gap: expected %s, got %s", want.Gap, g))
		}
	}
	if want.Failure != "" {
		if f := orNone(lastFailure); want.Failure != f {
			errs = append(errs, fmt.Sprintf("failure: expected %s, got %s", want.Failure, f))
		}
	}
	return errs
}

func orNone(s string) string {
	if s == "" {
		return NoneExpected
	}
	return s
}
