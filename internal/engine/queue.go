package engine

import (
	"sync"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/reconcile"
)

// messageType distinguishes the kinds of work the run loop consumes.
type messageType int

const (
	// msgCommand is a caller command (refresh, load older, ...).
	msgCommand messageType = iota + 1
	// msgResult is a finished fetch reported by a fetch goroutine.
	msgResult
	// msgDrain asks to be told when nothing is in flight.
	msgDrain
)

// message wraps commands and fetch results for the controller queue.
type message struct {
	Type    messageType
	Command *command
	Result  *fetchResult
	Reply   chan bool
}

// command is one caller request.
type command struct {
	Kind   CommandKind
	Params feed.Params // Reset only
}

// fetchResult carries a gateway page, already merged into the store.
type fetchResult struct {
	Flow       flow
	Generation int64
	Attempt    int64
	Page       feed.Page
	Merge      reconcile.MergeResult
	Err        error
	StoreErr   error
}

// messageQueue is a thread-safe FIFO of messages.
//
// Callers and fetch goroutines enqueue from anywhere; only the controller's
// Run loop dequeues. The queue is unbounded so a fetch goroutine never blocks
// on a busy controller.
//
// The buffered signal channel (size 1) coalesces wakeups and lets the Run
// loop wait on it together with ctx.Done().
type messageQueue struct {
	mu       sync.Mutex
	messages []message
	closed   bool
	signal   chan struct{}
}

func newMessageQueue() *messageQueue {
	return &messageQueue{
		messages: make([]message, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a message to the back of the queue.
// Returns false if the queue is closed.
func (q *messageQueue) Enqueue(m message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.messages = append(q.messages, m)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front message without blocking.
func (q *messageQueue) TryDequeue() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return message{}, false
	}

	m := q.messages[0]

	// Clear the slot so the backing array does not pin pages.
	q.messages[0] = message{}
	if len(q.messages) == 1 {
		q.messages = q.messages[:0]
	} else {
		q.messages = q.messages[1:]
	}

	return m, true
}

// Wait returns a channel that signals when messages may be available. The
// channel is closed by Close.
func (q *messageQueue) Wait() <-chan struct{} {
	return q.signal
}

// IsClosed reports whether Close has been called.
func (q *messageQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current queue length.
func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Close stops further enqueues and wakes the waiter. Messages still queued
// are returned so their reply channels can be answered.
func (q *messageQueue) Close() []message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	// The returned messages take any pending wakeup with them: after Close
	// the only thing Wait delivers is the closed channel.
	select {
	case <-q.signal:
	default:
	}
	close(q.signal)
	rest := q.messages
	q.messages = nil
	return rest
}
