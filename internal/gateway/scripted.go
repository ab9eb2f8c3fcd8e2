package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

// CallKind identifies a gateway method.
type CallKind string

const (
	CallNewest  CallKind = "newest"
	CallOlder   CallKind = "older"
	CallBetween CallKind = "between"
)

// Call records one request received by a Scripted gateway.
type Call struct {
	Kind      CallKind
	Params    feed.Params
	Cursor    string
	NewerThan string
	OlderThan string
}

// Response is one scripted answer.
type Response struct {
	Page feed.Page
	Err  error

	// Gate, when non-nil, holds the response until it is closed or the
	// call's context ends.
	Gate <-chan struct{}
}

// ErrNoResponse is returned when a call arrives with nothing scripted.
var ErrNoResponse = errors.New("no scripted response")

// Scripted answers calls from per-method FIFO queues. Used by tests and
// the scenario harness.
type Scripted struct {
	mu     sync.Mutex
	queues map[CallKind][]Response
	calls  []Call
}

var _ Gateway = (*Scripted)(nil)

// NewScripted creates a gateway with empty queues.
func NewScripted() *Scripted {
	return &Scripted{queues: make(map[CallKind][]Response)}
}

// Push queues a response for kind.
func (s *Scripted) Push(kind CallKind, r Response) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[kind] = append(s.queues[kind], r)
	return s
}

// PushPage queues a successful page.
func (s *Scripted) PushPage(kind CallKind, items []feed.RawEntity, olderCursor string) *Scripted {
	return s.Push(kind, Response{Page: feed.Page{Items: items, OlderCursor: olderCursor}})
}

// PushError queues a failure.
func (s *Scripted) PushError(kind CallKind, err error) *Scripted {
	return s.Push(kind, Response{Err: err})
}

// Calls returns the calls received so far.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Pending returns the number of unconsumed responses for kind.
func (s *Scripted) Pending(kind CallKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[kind])
}

func (s *Scripted) FetchNewest(ctx context.Context, p feed.Params) (feed.Page, error) {
	return s.answer(ctx, Call{Kind: CallNewest, Params: p})
}

func (s *Scripted) FetchOlder(ctx context.Context, p feed.Params, cursor string) (feed.Page, error) {
	return s.answer(ctx, Call{Kind: CallOlder, Params: p, Cursor: cursor})
}

func (s *Scripted) FetchBetween(ctx context.Context, p feed.Params, newerThan, olderThan string) (feed.Page, error) {
	return s.answer(ctx, Call{Kind: CallBetween, Params: p, NewerThan: newerThan, OlderThan: olderThan})
}

func (s *Scripted) answer(ctx context.Context, c Call) (feed.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	q := s.queues[c.Kind]
	if len(q) == 0 {
		s.mu.Unlock()
		return feed.Page{}, fmt.Errorf("%s: %w", c.Kind, ErrNoResponse)
	}
	r := q[0]
	s.queues[c.Kind] = q[1:]
	s.mu.Unlock()

	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return feed.Page{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return feed.Page{}, err
	}
	return r.Page, r.Err
}
