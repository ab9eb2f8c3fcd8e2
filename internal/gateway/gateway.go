// Package gateway defines the Fetch Gateway contract the engine consumes and
// ships in-memory implementations of it.
//
// A gateway returns ordered pages of raw entities, newest first. Transport,
// auth, timeouts and retry policy all live behind this interface; the engine
// only reacts to a page or an error.
package gateway

import (
	"context"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

// Gateway fetches pages of a remote feed.
type Gateway interface {
	// FetchNewest returns the newest page and the cursor of the next older one.
	FetchNewest(ctx context.Context, p feed.Params) (feed.Page, error)

	// FetchOlder returns the page older than cursor.
	FetchOlder(ctx context.Context, p feed.Params, cursor string) (feed.Page, error)

	// FetchBetween returns items strictly newer than newerThan and strictly
	// older than olderThan, newest first, starting right below olderThan.
	// A non-empty OlderCursor on the result means the range holds more
	// items than were returned.
	FetchBetween(ctx context.Context, p feed.Params, newerThan, olderThan string) (feed.Page, error)
}
