package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/gap"
	"github.com/mastodon/mastodon-ios-sub005/internal/pagination"
	"github.com/mastodon/mastodon-ios-sub005/internal/reconcile"
	"github.com/mastodon/mastodon-ios-sub005/internal/timeline"
)

// Stats is a point-in-time summary of a controller.
type Stats struct {
	State     pagination.State
	Items     int
	GapOpen   bool
	GapAnchor string
	InFlight  int

	// Merge counters accumulated over all settled fetches.
	Inserted  int
	Refreshed int
	Stale     int
	Invalid   int

	// Rejected counts commands the current state did not accept.
	Rejected int
	// Dropped counts events lost to full subscriber channels.
	Dropped int64
}

type inflightFetch struct {
	attempt int64
	cancel  context.CancelFunc
}

// Controller drives one feed.
//
// Thread-safety model:
//   - command methods, Drain, Subscribe, State, Snapshot, Stats, Close:
//     safe from any goroutine
//   - Run: exactly one goroutine
//
// Fields below the queue are owned by the Run goroutine.
type Controller struct {
	engine  *Engine
	handle  string
	logger  *slog.Logger
	queue   *messageQueue
	stopped chan struct{}
	running atomic.Bool

	runCtx      context.Context
	params      feed.Params
	machine     *pagination.Machine[pagination.State]
	list        *timeline.List
	olderCursor string
	gaps        map[string]*pagination.Machine[pagination.GapState]
	snapshot    timeline.Snapshot
	generation  int64
	inflight    map[string]inflightFetch
	drainers    []chan bool
	stats       Stats
	seq         sequence
	attempts    sequence

	viewMu       sync.RWMutex
	view         Stats
	viewSnapshot timeline.Snapshot
	viewParams   feed.Params

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	closed  bool
	dropped atomic.Int64
}

func newController(e *Engine, handle string, params feed.Params) *Controller {
	c := &Controller{
		engine:   e,
		handle:   handle,
		logger:   e.logger.With("feed", params.String(), "handle", handle),
		queue:    newMessageQueue(),
		stopped:  make(chan struct{}),
		params:   params,
		list:     timeline.NewList(),
		gaps:     make(map[string]*pagination.Machine[pagination.GapState]),
		inflight: make(map[string]inflightFetch),
		subs:     make(map[int]chan Event),
	}
	c.machine = c.newFeedMachine()
	c.snapshot = c.list.Snapshot(0, false)
	c.publishView()
	return c
}

// Handle returns the controller's registry handle.
func (c *Controller) Handle() string {
	return c.handle
}

// Refresh reloads the newest page. The returned bool reports whether the
// current state accepted the command.
func (c *Controller) Refresh() bool {
	return c.submit(command{Kind: CommandRefresh})
}

// LoadOlder fetches the page after the last known older-cursor. Rejected
// when no cursor is known or a fetch is in flight.
func (c *Controller) LoadOlder() bool {
	return c.submit(command{Kind: CommandLoadOlder})
}

// ResolveGap fetches the items missing behind the open gap marker.
func (c *Controller) ResolveGap() bool {
	return c.submit(command{Kind: CommandResolveGap})
}

// Retry resumes a failed reload or load-older with the same cursor.
func (c *Controller) Retry() bool {
	return c.submit(command{Kind: CommandRetry})
}

// DismissGap removes the open gap marker without fetching.
func (c *Controller) DismissGap() bool {
	return c.submit(command{Kind: CommandDismissGap})
}

// Reset drops the list, cursors and gap flows, switches to params and
// reloads. Use it after sign-out or a feed parameter change.
func (c *Controller) Reset(params feed.Params) bool {
	return c.submit(command{Kind: CommandReset, Params: params})
}

// submit queues cmd and waits for the run loop's verdict. Before Run starts
// it waits; Close answers it with false.
func (c *Controller) submit(cmd command) bool {
	reply := make(chan bool, 1)
	if !c.queue.Enqueue(message{Type: msgCommand, Command: &cmd, Reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-c.stopped:
		return false
	}
}

// Drain blocks until no fetch is in flight.
func (c *Controller) Drain(ctx context.Context) error {
	reply := make(chan bool, 1)
	if !c.queue.Enqueue(message{Type: msgDrain, Reply: reply}) {
		return ErrClosed
	}
	select {
	case ok := <-reply:
		if !ok {
			return ErrClosed
		}
		return nil
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the controller down. In-flight fetches are cancelled and
// their results dropped. Run returns once teardown is complete.
func (c *Controller) Close() {
	c.engine.registry.remove(c.handle)
	answer(c.queue.Close())
}

// Done is closed when Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.stopped
}

// Run processes commands and fetch results until ctx is cancelled or Close
// is called.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.stopped)

	c.runCtx = ctx
	c.logger.Debug("controller starting")

	for {
		m, ok := c.queue.TryDequeue()
		if ok {
			c.process(m)
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.Debug("controller stopping: context cancelled")
			c.teardown()
			return ctx.Err()

		case <-c.queue.Wait():
			if c.queue.IsClosed() && c.queue.Len() == 0 {
				c.logger.Debug("controller stopping: closed")
				c.teardown()
				return nil
			}
		}
	}
}

// process handles one message. Replies are sent after the view is
// published so a caller that was answered observes the new state.
func (c *Controller) process(m message) {
	var reply chan bool
	var accepted bool

	switch m.Type {
	case msgCommand:
		accepted = c.handleCommand(*m.Command)
		if !accepted {
			c.stats.Rejected++
			c.logger.Debug("command rejected",
				"command", m.Command.Kind.String(),
				"state", c.machine.State().String(),
			)
		}
		reply = m.Reply

	case msgResult:
		c.handleResult(m.Result)

	case msgDrain:
		c.drainers = append(c.drainers, m.Reply)
	}

	c.publishView()
	if reply != nil {
		reply <- accepted
	}
	c.notifyDrainers()
}

func (c *Controller) handleCommand(cmd command) bool {
	switch cmd.Kind {
	case CommandRefresh:
		return c.refresh()
	case CommandLoadOlder:
		return c.runCommand(pagination.CmdLoadOlder)
	case CommandRetry:
		return c.runCommand(pagination.CmdRetry)
	case CommandResolveGap:
		return c.resolveGap()
	case CommandDismissGap:
		return c.dismissGap()
	case CommandReset:
		c.reset(cmd.Params)
		return true
	default:
		return false
	}
}

func (c *Controller) refresh() bool {
	to, ok := pagination.Target(c.machine.State(), pagination.CmdRefresh, "")
	if !ok {
		return false
	}
	c.machine.Enter(to)
	c.machine.Enter(pagination.Loading(""))
	c.startFetch(flow{kind: flowHead})
	return true
}

// runCommand handles load-older and retry, which both enter Loading(cursor).
func (c *Controller) runCommand(cmd pagination.Command) bool {
	to, ok := pagination.Target(c.machine.State(), cmd, c.olderCursor)
	if !ok {
		return false
	}
	c.machine.Enter(to)
	if to.IsHead() {
		c.startFetch(flow{kind: flowHead})
	} else {
		c.startFetch(flow{kind: flowOlder, cursor: to.Cursor})
	}
	return true
}

func (c *Controller) resolveGap() bool {
	anchor, _, open := c.list.Gap()
	if !open {
		return false
	}
	newer, older, ok := c.list.ItemIDsAround()
	if !ok {
		return false
	}
	m, ok := c.gaps[anchor]
	if !ok {
		m = c.newGapMachine(anchor)
		c.gaps[anchor] = m
	}
	if !m.Enter(pagination.GapState{Phase: pagination.GapLoading, Anchor: anchor}) {
		return false
	}
	c.startFetch(flow{kind: flowGap, anchor: anchor, above: newer, below: older})
	return true
}

func (c *Controller) dismissGap() bool {
	anchor, _, open := c.list.Gap()
	if !open {
		return false
	}
	c.cancelFetch(flow{kind: flowGap, anchor: anchor}.key())
	delete(c.gaps, anchor)
	c.list.RemoveGap()
	c.logger.Info("gap dismissed", "anchor", anchor)
	c.emitSnapshot()
	return true
}

func (c *Controller) reset(params feed.Params) {
	for key := range c.inflight {
		c.cancelFetch(key)
	}
	c.generation++
	c.params = params
	c.logger = c.engine.logger.With("feed", params.String(), "handle", c.handle)
	c.list.Reset()
	c.gaps = make(map[string]*pagination.Machine[pagination.GapState])
	c.olderCursor = ""

	from := c.machine.State()
	c.machine = c.newFeedMachine()
	c.publish(StateEvent{Seq: c.seq.Next(), From: from, To: c.machine.State()})
	c.logger.Info("feed reset")
	c.emitSnapshot()
	c.refresh()
}

func (c *Controller) startFetch(f flow) {
	key := f.key()
	c.cancelFetch(key)

	ctx, cancel := context.WithCancel(c.runCtx)
	attempt := c.attempts.Next()
	c.inflight[key] = inflightFetch{attempt: attempt, cancel: cancel}

	c.logger.Debug("fetch started", "op", f.op(), "cursor", f.cursor, "anchor", f.anchor)
	go c.engine.fetch(ctx, c.handle, c.params, f, c.generation, attempt)
}

func (c *Controller) cancelFetch(key string) {
	if inf, ok := c.inflight[key]; ok {
		inf.cancel()
		delete(c.inflight, key)
	}
}

func (c *Controller) handleResult(res *fetchResult) {
	key := res.Flow.key()
	inf, ok := c.inflight[key]
	if !ok || inf.attempt != res.Attempt || res.Generation != c.generation {
		c.logger.Debug("stale fetch result ignored", "op", res.Flow.op())
		return
	}
	inf.cancel()
	delete(c.inflight, key)

	c.stats.Inserted += res.Merge.Inserted
	c.stats.Refreshed += res.Merge.Refreshed
	c.stats.Stale += res.Merge.Stale
	c.stats.Invalid += res.Merge.Invalid

	if res.Flow.kind == flowGap {
		c.settleGap(res)
		return
	}
	c.settleMain(res)
}

func (c *Controller) failure(res *fetchResult) *feed.Error {
	op, name := res.Flow.op(), c.params.String()
	switch {
	case res.Err != nil:
		return feed.Classify(op, name, res.Err)
	case res.StoreErr != nil:
		return feed.StoreError(op, name, res.StoreErr)
	default:
		return nil
	}
}

func (c *Controller) settleMain(res *fetchResult) {
	st := c.machine.State()

	if fe := c.failure(res); fe != nil {
		c.machine.Enter(pagination.Settle(st, "", fe))
		c.logger.Info("fetch failed", "op", fe.Op, "cursor", st.Cursor, "error", fe.Error())
		c.publish(FailureEvent{Seq: c.seq.Next(), Err: fe})
		return
	}

	var inserted []string
	if res.Flow.kind == flowHead {
		inserted = c.applyHead(res.Merge.IDs, res.Page.OlderCursor)
	} else {
		inserted = c.list.Append(res.Merge.IDs)
		c.olderCursor = res.Page.OlderCursor
	}

	c.machine.Enter(pagination.Settle(st, c.olderCursor, nil))
	c.logger.Info("fetch settled",
		"op", res.Flow.op(),
		"items", len(res.Page.Items),
		"inserted", len(inserted),
		"cursor", c.olderCursor,
	)
	c.emitSnapshot()
}

// applyHead places a newest page. The older-cursor is taken from the page
// only on a first load; a refresh onto a known list keeps the tail cursor,
// which still describes what lies below the oldest known item.
func (c *Controller) applyHead(ids []string, pageCursor string) []string {
	prev := c.list.ItemIDs()
	if len(prev) == 0 {
		c.olderCursor = pageCursor
	}

	d := gap.Detect(prev, ids)
	switch d.Kind {
	case gap.NoChange:
		return nil
	case gap.Contiguous:
		inserted := c.list.MergeHead(ids)
		c.closeCoveredGap(ids)
		return inserted
	default:
		inserted := c.list.MergeHead(ids)
		c.openGap(d.AnchorID)
		return inserted
	}
}

// closeCoveredGap removes the open gap when a contiguous head page reached
// the item below it: the page itself filled the missing range.
func (c *Controller) closeCoveredGap(ids []string) {
	anchor, _, open := c.list.Gap()
	if !open {
		return
	}
	_, below, ok := c.list.ItemIDsAround()
	if !ok || !slices.Contains(ids, below) {
		return
	}
	c.cancelFetch(flow{kind: flowGap, anchor: anchor}.key())
	delete(c.gaps, anchor)
	c.list.RemoveGap()
	c.logger.Info("gap closed by refresh", "anchor", anchor)
}

func (c *Controller) openGap(anchor string) {
	superseded, ok := c.list.OpenGap(anchor)
	if !ok {
		return
	}
	if superseded != "" {
		c.cancelFetch(flow{kind: flowGap, anchor: superseded}.key())
		delete(c.gaps, superseded)
		c.logger.Warn("gap superseded", "anchor", superseded, "by", anchor)
	}
	if _, exists := c.gaps[anchor]; !exists {
		c.gaps[anchor] = c.newGapMachine(anchor)
	}
	_, index, _ := c.list.Gap()
	c.logger.Info("gap opened", "anchor", anchor, "index", index)
}

func (c *Controller) settleGap(res *fetchResult) {
	anchor := res.Flow.anchor
	m, ok := c.gaps[anchor]
	if !ok {
		c.logger.Warn("gap result dropped", "anchor", anchor)
		return
	}

	if fe := c.failure(res); fe != nil {
		m.Enter(pagination.GapState{Phase: pagination.GapFail, Anchor: anchor})
		c.logger.Info("gap fill failed", "anchor", anchor, "error", fe.Error())
		c.publish(FailureEvent{Seq: c.seq.Next(), Err: fe})
		return
	}

	current, index, open := c.list.Gap()
	m.Enter(pagination.GapState{Phase: pagination.GapSuccess, Anchor: anchor})
	if !open || current != anchor {
		c.logger.Warn("gap result dropped", "anchor", anchor)
		return
	}

	inserted := c.list.InsertAt(index, res.Merge.IDs)
	c.list.RemoveGap()

	more := res.Page.OlderCursor != ""
	switch {
	case more && len(inserted) > 0:
		c.openGap(inserted[len(inserted)-1])
	case more:
		c.logger.Warn("gap fill made no progress, closing gap", "anchor", anchor)
	}

	c.logger.Info("gap filled", "anchor", anchor, "inserted", len(inserted), "more", more)
	c.emitSnapshot()
}

func (c *Controller) showLoader() bool {
	p := c.machine.State().Phase
	return p != pagination.PhaseNoMore && p != pagination.PhaseInitial
}

func (c *Controller) emitSnapshot() {
	next := c.list.Snapshot(c.seq.Next(), c.showLoader())
	if slices.Equal(next.Keys(), c.snapshot.Keys()) {
		return
	}
	adj := reconcile.Diff(c.snapshot, next)
	c.snapshot = next
	c.publish(SnapshotEvent{
		Seq:         next.Version(),
		Snapshot:    next,
		Adjustment:  adj,
		OffsetDelta: adj.Offset(c.engine.geometry),
	})
}

func (c *Controller) newFeedMachine() *pagination.Machine[pagination.State] {
	m := pagination.NewFeedMachine()
	m.OnTransition(func(t pagination.Transition[pagination.State]) {
		c.logger.Debug("transition", "from", t.From.String(), "state", t.To.String())
		c.publish(StateEvent{Seq: c.seq.Next(), From: t.From, To: t.To})
	})
	return m
}

func (c *Controller) newGapMachine(anchor string) *pagination.Machine[pagination.GapState] {
	m := pagination.NewGapMachine(anchor)
	m.OnTransition(func(t pagination.Transition[pagination.GapState]) {
		c.logger.Debug("gap transition", "from", t.From.String(), "state", t.To.String())
		c.publish(GapEvent{Seq: c.seq.Next(), From: t.From, To: t.To})
	})
	return m
}

func (c *Controller) notifyDrainers() {
	if len(c.inflight) > 0 || len(c.drainers) == 0 {
		return
	}
	for _, r := range c.drainers {
		r <- true
	}
	c.drainers = nil
}

// teardown leaves every flow in a terminal-safe state: an in-flight load
// becomes Fail with CANCELLED, an in-flight gap fill becomes Fail.
func (c *Controller) teardown() {
	c.engine.registry.remove(c.handle)
	answer(c.queue.Close())

	for key := range c.inflight {
		c.cancelFetch(key)
	}

	if st := c.machine.State(); st.Phase == pagination.PhaseLoading {
		c.machine.Enter(pagination.Fail(st.Cursor))
		fe := &feed.Error{Code: feed.ErrCodeCancelled, Op: "teardown", Feed: c.params.String(), Err: context.Canceled}
		c.publish(FailureEvent{Seq: c.seq.Next(), Err: fe})
	}
	for anchor, m := range c.gaps {
		if m.State().Phase == pagination.GapLoading {
			m.Enter(pagination.GapState{Phase: pagination.GapFail, Anchor: anchor})
		}
	}

	for _, r := range c.drainers {
		r <- false
	}
	c.drainers = nil
	c.publishView()
	c.closeSubscribers()
}

// answer rejects the commands and drains left in a closed queue.
func answer(rest []message) {
	for _, m := range rest {
		if m.Reply != nil {
			m.Reply <- false
		}
	}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. The channel is closed on cancel or teardown.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	ch := make(chan Event, c.engine.bufferSize)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(s)
		}
	}
}

func (c *Controller) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.dropped.Add(1)
			c.logger.Warn("subscriber lagging, event dropped", "seq", ev.EventSeq())
		}
	}
}

func (c *Controller) closeSubscribers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.closed = true
}

func (c *Controller) publishView() {
	s := c.stats
	s.State = c.machine.State()
	s.Items = len(c.list.ItemIDs())
	s.GapAnchor, _, s.GapOpen = c.list.Gap()
	s.InFlight = len(c.inflight)

	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	c.view = s
	c.viewSnapshot = c.snapshot
	c.viewParams = c.params
}

// State returns the current reload/load-older state.
func (c *Controller) State() pagination.State {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.view.State
}

// Snapshot returns the latest emitted snapshot.
func (c *Controller) Snapshot() timeline.Snapshot {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.viewSnapshot
}

// Params returns the feed the controller currently mirrors.
func (c *Controller) Params() feed.Params {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.viewParams
}

// Stats returns counters and the current shape of the feed.
func (c *Controller) Stats() Stats {
	c.viewMu.RLock()
	s := c.view
	c.viewMu.RUnlock()
	s.Dropped = c.dropped.Load()
	return s
}
