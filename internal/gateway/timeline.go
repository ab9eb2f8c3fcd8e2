package gateway

import (
	"context"
	"slices"
	"sync"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

// DefaultPageSize is used when neither the gateway nor the params set a limit.
const DefaultPageSize = 20

// Timeline simulates a remote paginated feed held in memory. Published
// entities appear at the top; cursors are item ids (max_id style).
type Timeline struct {
	mu       sync.RWMutex
	items    []feed.RawEntity // newest first
	pageSize int
}

var _ Gateway = (*Timeline)(nil)

// NewTimeline creates a remote feed holding items (newest first).
func NewTimeline(pageSize int, items ...feed.RawEntity) *Timeline {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Timeline{items: slices.Clone(items), pageSize: pageSize}
}

// Publish adds entities to the top of the remote feed. The first argument
// becomes the newest item.
func (t *Timeline) Publish(items ...feed.RawEntity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(slices.Clone(items), t.items...)
}

// Len returns the number of remote items.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

func (t *Timeline) limit(p feed.Params) int {
	if p.Limit > 0 {
		return p.Limit
	}
	return t.pageSize
}

func (t *Timeline) indexOf(id string) int {
	return slices.IndexFunc(t.items, func(e feed.RawEntity) bool { return e.ID == id })
}

// page returns up to n items of t.items[from:to] and a cursor when more of
// that range remains.
func (t *Timeline) page(from, to, n int) feed.Page {
	if from >= to {
		return feed.Page{}
	}
	end := min(from+n, to)
	p := feed.Page{Items: slices.Clone(t.items[from:end])}
	if end < to {
		p.OlderCursor = t.items[end-1].ID
	}
	return p
}

func (t *Timeline) FetchNewest(ctx context.Context, p feed.Params) (feed.Page, error) {
	if err := ctx.Err(); err != nil {
		return feed.Page{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.page(0, len(t.items), t.limit(p)), nil
}

// FetchOlder returns items strictly older than the item named by cursor.
// An unknown cursor yields an empty final page.
func (t *Timeline) FetchOlder(ctx context.Context, p feed.Params, cursor string) (feed.Page, error) {
	if err := ctx.Err(); err != nil {
		return feed.Page{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	i := t.indexOf(cursor)
	if i < 0 {
		return feed.Page{}, nil
	}
	return t.page(i+1, len(t.items), t.limit(p)), nil
}

func (t *Timeline) FetchBetween(ctx context.Context, p feed.Params, newerThan, olderThan string) (feed.Page, error) {
	if err := ctx.Err(); err != nil {
		return feed.Page{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	top := t.indexOf(olderThan)
	bottom := t.indexOf(newerThan)
	if top < 0 || bottom < 0 {
		return feed.Page{}, nil
	}
	return t.page(top+1, bottom, t.limit(p)), nil
}
