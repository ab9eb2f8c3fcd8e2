package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/gateway"
	"github.com/mastodon/mastodon-ios-sub005/internal/reconcile"
	"github.com/mastodon/mastodon-ios-sub005/internal/store"
)

// DefaultBufferSize is the default capacity of a subscriber channel.
const DefaultBufferSize = 128

// Engine holds what feed controllers share: the Entity Store, the Fetch
// Gateway and the handle registry.
//
// Thread-safety: all Engine methods are safe for concurrent use.
type Engine struct {
	store      store.EntityStore
	gateway    gateway.Gateway
	registry   *registry
	logger     *slog.Logger
	clock      Clock
	geometry   reconcile.Geometry
	handles    HandleGenerator
	bufferSize int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the source of network dates. Default: SystemClock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithGeometry sets the geometry used to size scroll adjustments. Without
// one, SnapshotEvent.OffsetDelta is always 0.
func WithGeometry(g reconcile.Geometry) EngineOption {
	return func(e *Engine) {
		e.geometry = g
	}
}

// WithHandleGenerator sets how controller handles are minted.
// Default: UUIDv7Handles.
func WithHandleGenerator(g HandleGenerator) EngineOption {
	return func(e *Engine) {
		e.handles = g
	}
}

// WithBufferSize sets the subscriber channel capacity. A subscriber that
// falls further behind loses events.
func WithBufferSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.bufferSize = n
		}
	}
}

// New creates an Engine over a shared store and gateway.
func New(s store.EntityStore, gw gateway.Gateway, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      s,
		gateway:    gw,
		registry:   newRegistry(),
		logger:     slog.Default(),
		clock:      SystemClock{},
		handles:    UUIDv7Handles{},
		bufferSize: DefaultBufferSize,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Open creates a controller for params. The caller must start it with Run
// or end it with Close: commands issued before Run wait in the queue, and
// without either they block forever.
func (e *Engine) Open(params feed.Params) *Controller {
	c := newController(e, e.handles.Generate(), params)
	e.registry.add(c)
	return c
}

// Lookup returns the live controller with the given handle.
func (e *Engine) Lookup(handle string) (*Controller, bool) {
	return e.registry.lookup(handle)
}

// Live returns the number of controllers that have not been closed.
func (e *Engine) Live() int {
	return e.registry.len()
}

// fetch performs one gateway call and merges the page into the store, then
// posts the result to the controller named by handle.
//
// Runs in its own goroutine. It must not touch controller state: the only
// way back is the registry lookup, which fails once the controller is gone.
func (e *Engine) fetch(ctx context.Context, handle string, p feed.Params, f flow, generation, attempt int64) {
	res := &fetchResult{Flow: f, Generation: generation, Attempt: attempt}

	// Fixed at issue time, so a late response never outranks a later request.
	issued := e.clock.Now()

	var page feed.Page
	var err error
	switch f.kind {
	case flowHead:
		page, err = e.gateway.FetchNewest(ctx, p)
	case flowOlder:
		page, err = e.gateway.FetchOlder(ctx, p, f.cursor)
	case flowGap:
		page, err = e.gateway.FetchBetween(ctx, p, f.below, f.above)
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	res.Page, res.Err = page, err

	if err == nil {
		res.Merge, res.StoreErr = reconcile.MergeBatch(ctx, e.store, page.Items, networkDate(page, issued), nil)
	}

	c, ok := e.registry.lookup(handle)
	if !ok || !c.queue.Enqueue(message{Type: msgResult, Result: res}) {
		e.logger.Warn("fetch result dropped",
			"handle", handle,
			"feed", p.String(),
			"op", f.op(),
		)
	}
}

// networkDate is the freshness stamp for page: the gateway's own date when
// it has one, otherwise the time the request was issued.
func networkDate(page feed.Page, issued time.Time) time.Time {
	if page.NetworkDate.IsZero() {
		return issued
	}
	return page.NetworkDate.UTC()
}
