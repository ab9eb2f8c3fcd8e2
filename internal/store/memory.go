package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

// Memory is an in-process EntityStore.
//
// Records live behind pointers in a sync.Map and are never mutated in place:
// an accepted write swaps in a new pointer with CompareAndSwap, retrying if a
// concurrent writer won the race. Readers therefore always see a complete
// record.
type Memory struct {
	records sync.Map // feed.Ref -> *feed.FeedItem
}

var _ EntityStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Upsert merges e under the freshness gate. It never fails.
func (m *Memory) Upsert(_ context.Context, e feed.RawEntity, networkDate time.Time) (feed.FeedItem, bool, error) {
	next := feed.ItemFromEntity(e, networkDate)
	ref := next.Ref

	for {
		cur, loaded := m.records.LoadOrStore(ref, &next)
		if !loaded {
			return next, true, nil
		}
		stored := cur.(*feed.FeedItem)
		if !networkDate.After(stored.LastUpdated) {
			return *stored, false, nil
		}
		if m.records.CompareAndSwap(ref, cur, &next) {
			return next, false, nil
		}
	}
}

// Get returns the stored item for (domain, id).
func (m *Memory) Get(_ context.Context, domain, id string) (feed.FeedItem, bool, error) {
	v, ok := m.records.Load(feed.NewRef(domain, id))
	if !ok {
		return feed.FeedItem{}, false, nil
	}
	return *v.(*feed.FeedItem), true, nil
}

// List returns up to limit items of a domain, newest first, with the same
// ordering as Store.List.
func (m *Memory) List(_ context.Context, domain string, limit int) ([]feed.FeedItem, error) {
	domain = feed.NewRef(domain, "").Domain
	items := []feed.FeedItem{}
	m.records.Range(func(_, v any) bool {
		item := *v.(*feed.FeedItem)
		if item.Domain == domain {
			items = append(items, item)
		}
		return true
	})
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Count returns the number of stored items across all domains.
func (m *Memory) Count(context.Context) (int, error) {
	n := 0
	m.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n, nil
}

// Catalog is an EntityStore that can also enumerate its records.
// Both Memory and Store implement it.
type Catalog interface {
	EntityStore
	List(ctx context.Context, domain string, limit int) ([]feed.FeedItem, error)
	Count(ctx context.Context) (int, error)
}

var (
	_ Catalog = (*Memory)(nil)
	_ Catalog = (*Store)(nil)
)
