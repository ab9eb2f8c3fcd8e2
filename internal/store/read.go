package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

const selectItemSQL = `
	SELECT domain, id, kind, created_at, last_updated, payload, refs
	FROM items`

// Get returns the stored item for (domain, id).
// Returns ok=false if no record exists.
func (s *Store) Get(ctx context.Context, domain, id string) (feed.FeedItem, bool, error) {
	ref := feed.NewRef(domain, id)
	item, err := scanItemRow(s.db.QueryRowContext(ctx, selectItemSQL+` WHERE domain = ? AND id = ?`, ref.Domain, ref.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return feed.FeedItem{}, false, nil
	}
	if err != nil {
		return feed.FeedItem{}, false, fmt.Errorf("get %s: %w", ref, err)
	}
	return item, true, nil
}

// List returns up to limit items of a domain, newest first.
// Ties on created_at are broken by id descending for deterministic output.
// A limit <= 0 returns every item.
func (s *Store) List(ctx context.Context, domain string, limit int) ([]feed.FeedItem, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectItemSQL+`
		WHERE domain = ?
		ORDER BY created_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, feed.NewRef(domain, "").Domain, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", domain, err)
	}
	defer rows.Close()

	items := []feed.FeedItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Count returns the number of stored items across all domains.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(rows *sql.Rows) (feed.FeedItem, error) {
	item, err := scanInto(rows)
	if err != nil {
		return feed.FeedItem{}, fmt.Errorf("scan item: %w", err)
	}
	return item, nil
}

// scanItemRow keeps sql.ErrNoRows unwrapped so callers can test for it.
func scanItemRow(row *sql.Row) (feed.FeedItem, error) {
	return scanInto(row)
}

func scanInto(sc scanner) (feed.FeedItem, error) {
	var (
		item                  feed.FeedItem
		kind                  string
		createdAt, updatedAt  int64
		payloadJSON, refsJSON string
	)
	if err := sc.Scan(&item.Domain, &item.ID, &kind, &createdAt, &updatedAt, &payloadJSON, &refsJSON); err != nil {
		return feed.FeedItem{}, err
	}
	item.Kind = feed.Kind(kind)
	item.CreatedAt = fromNanos(createdAt)
	item.LastUpdated = fromNanos(updatedAt)

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return feed.FeedItem{}, err
	}
	item.Payload = payload

	refs, err := unmarshalRefs(refsJSON)
	if err != nil {
		return feed.FeedItem{}, err
	}
	item.Refs = refs
	return item, nil
}
