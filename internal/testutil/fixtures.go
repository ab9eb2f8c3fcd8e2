package testutil

import (
	"fmt"
	"time"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

// Domain is the domain fixtures are created on.
const Domain = "example.social"

// Post builds a post entity on Domain.
func Post(id string) feed.RawEntity {
	return feed.RawEntity{
		Ref:       feed.NewRef(Domain, id),
		Kind:      feed.KindPost,
		CreatedAt: Epoch,
		Payload:   feed.Payload{"text": fmt.Sprintf("post %s", id)},
	}
}

// Posts builds one post per id, newest first.
func Posts(ids ...string) []feed.RawEntity {
	out := make([]feed.RawEntity, len(ids))
	for i, id := range ids {
		p := Post(id)
		p.CreatedAt = Epoch.Add(-time.Duration(i) * time.Minute)
		out[i] = p
	}
	return out
}

// Reblog builds a reblog of target, embedding it.
func Reblog(id string, target feed.RawEntity) feed.RawEntity {
	return feed.RawEntity{
		Ref:       feed.NewRef(Domain, id),
		Kind:      feed.KindReblog,
		CreatedAt: target.CreatedAt,
		Refs:      []feed.Ref{target.Ref},
		Embedded:  []feed.RawEntity{target},
	}
}
