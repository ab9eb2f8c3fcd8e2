package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

// Upsert merges e into the store under the freshness gate.
//
// The write is a single INSERT ... ON CONFLICT DO UPDATE guarded by
// WHERE excluded.last_updated > items.last_updated, so a stale network date
// leaves the row untouched. The surrounding transaction only exists to
// report whether the row was newly inserted and to read back what is
// stored.
func (s *Store) Upsert(ctx context.Context, e feed.RawEntity, networkDate time.Time) (feed.FeedItem, bool, error) {
	item := feed.ItemFromEntity(e, networkDate)

	payload, hash, err := marshalPayload(item.Payload)
	if err != nil {
		return feed.FeedItem{}, false, fmt.Errorf("upsert %s: %w", item.Ref, err)
	}
	refs, err := marshalRefs(item.Refs)
	if err != nil {
		return feed.FeedItem{}, false, fmt.Errorf("upsert %s: %w", item.Ref, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return feed.FeedItem{}, false, fmt.Errorf("upsert %s: begin tx: %w", item.Ref, err)
	}
	defer tx.Rollback() // No-op if committed

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT last_updated FROM items WHERE domain = ? AND id = ?`,
		item.Domain, item.ID,
	).Scan(&existing)
	inserted := errors.Is(err, sql.ErrNoRows)
	if err != nil && !inserted {
		return feed.FeedItem{}, false, fmt.Errorf("upsert %s: read existing: %w", item.Ref, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items
		(domain, id, kind, created_at, last_updated, payload, payload_hash, refs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, id) DO UPDATE SET
			kind = excluded.kind,
			created_at = excluded.created_at,
			last_updated = excluded.last_updated,
			payload = excluded.payload,
			payload_hash = excluded.payload_hash,
			refs = excluded.refs
		WHERE excluded.last_updated > items.last_updated
	`,
		item.Domain,
		item.ID,
		string(item.Kind),
		toNanos(item.CreatedAt),
		toNanos(networkDate),
		payload,
		hash,
		refs,
	)
	if err != nil {
		return feed.FeedItem{}, false, fmt.Errorf("upsert %s: %w", item.Ref, err)
	}

	stored, err := scanItemRow(tx.QueryRowContext(ctx, selectItemSQL+` WHERE domain = ? AND id = ?`, item.Domain, item.ID))
	if err != nil {
		return feed.FeedItem{}, false, fmt.Errorf("upsert %s: read back: %w", item.Ref, err)
	}

	if err := tx.Commit(); err != nil {
		return feed.FeedItem{}, false, fmt.Errorf("upsert %s: commit: %w", item.Ref, err)
	}

	return stored, inserted, nil
}
