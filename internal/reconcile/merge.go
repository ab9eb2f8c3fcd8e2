package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/store"
)

// Known reports whether an id is already materialized in a feed.
// *timeline.List implements it.
type Known interface {
	Contains(id string) bool
}

// MergeResult summarizes one MergeBatch call.
type MergeResult struct {
	// IDs are the top-level ids of the batch, in fetch order, minus ids the
	// feed already holds and repeats within the batch.
	IDs []string

	// Items are the stored records for IDs, in the same order.
	Items []feed.FeedItem

	// Inserted counts records created by this batch, embedded ones included.
	Inserted int

	// Refreshed counts existing records whose stored LastUpdated equals the
	// batch's network date afterwards (applied, or replayed at the same date).
	Refreshed int

	// Stale counts writes the freshness gate rejected because the stored
	// record is newer.
	Stale int

	// Invalid counts entities dropped by validation.
	Invalid int
}

// Merged returns the number of records the batch touched.
func (r MergeResult) Merged() int {
	return r.Inserted + r.Refreshed + r.Stale
}

// MergeBatch upserts entities into s in fetch order and returns the id
// fragment to add to the feed.
//
// Embedded entities (a reblogged post, an author) are merged before the
// entity that embeds them so a reference is never stored ahead of its
// target. Entities failing Validate are skipped and counted in Invalid.
//
// A store error aborts the batch. Writes that already happened stay; the
// freshness gate makes re-merging the same batch harmless.
func MergeBatch(ctx context.Context, s store.EntityStore, entities []feed.RawEntity, networkDate time.Time, known Known) (MergeResult, error) {
	var res MergeResult
	seen := make(map[string]struct{}, len(entities))

	for _, e := range entities {
		if err := e.Validate(); err != nil {
			res.Invalid++
			continue
		}

		for _, emb := range e.Embedded {
			if _, err := upsert(ctx, s, emb, networkDate, &res); err != nil {
				return res, err
			}
		}

		stored, err := upsert(ctx, s, e, networkDate, &res)
		if err != nil {
			return res, err
		}

		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		if known != nil && known.Contains(e.ID) {
			continue
		}
		res.IDs = append(res.IDs, e.ID)
		res.Items = append(res.Items, stored)
	}

	return res, nil
}

func upsert(ctx context.Context, s store.EntityStore, e feed.RawEntity, networkDate time.Time, res *MergeResult) (feed.FeedItem, error) {
	stored, inserted, err := s.Upsert(ctx, e, networkDate)
	if err != nil {
		return feed.FeedItem{}, fmt.Errorf("merge %s: %w", e.Ref, err)
	}
	switch {
	case inserted:
		res.Inserted++
	case stored.LastUpdated.Equal(networkDate):
		res.Refreshed++
	default:
		res.Stale++
	}
	return stored, nil
}

// Resolve follows a non-owning reference. A target that has not been
// fetched yet returns ok=false without error.
func Resolve(ctx context.Context, s store.EntityStore, ref feed.Ref) (feed.FeedItem, bool, error) {
	if ref.IsZero() {
		return feed.FeedItem{}, false, nil
	}
	return s.Get(ctx, ref.Domain, ref.ID)
}
