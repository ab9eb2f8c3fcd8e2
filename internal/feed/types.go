package feed

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Ref identifies one record in the Entity Store.
//
// Domain scopes ids to a tenant or server: the same id on two domains names
// two unrelated records.
type Ref struct {
	Domain string `json:"domain" yaml:"domain"`
	ID     string `json:"id" yaml:"id"`
}

// NewRef builds a Ref with an NFC-normalized domain.
func NewRef(domain, id string) Ref {
	return Ref{Domain: norm.NFC.String(domain), ID: id}
}

// String renders the ref as domain/id.
func (r Ref) String() string {
	return r.Domain + "/" + r.ID
}

// IsZero reports whether the ref names nothing.
func (r Ref) IsZero() bool {
	return r.Domain == "" && r.ID == ""
}

// Kind classifies an entity.
type Kind string

const (
	// KindPost is a plain post.
	KindPost Kind = "post"
	// KindReblog wraps another post referenced through Refs.
	KindReblog Kind = "reblog"
	// KindNotification is a notification item.
	KindNotification Kind = "notification"
	// KindAuthor is an author record referenced by posts.
	KindAuthor Kind = "author"
)

// Payload is the opaque body of an entity (content, author reference,
// attachments). Values must be JSON-compatible: strings, integers, bools,
// nil, nested []any and map[string]any.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// RawEntity is one entity as returned by the Fetch Gateway.
type RawEntity struct {
	Ref
	Kind      Kind      `json:"kind" yaml:"kind"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Payload   Payload   `json:"payload,omitempty" yaml:"payload,omitempty"`

	// Refs are non-owning references to other entities (reblog-of, author).
	Refs []Ref `json:"refs,omitempty" yaml:"refs,omitempty"`

	// Embedded carries referenced entities delivered in the same response.
	// They are merged into the store before the entity that embeds them.
	Embedded []RawEntity `json:"embedded,omitempty" yaml:"embedded,omitempty"`
}

// ErrInvalidEntity is returned by Validate for entities missing required fields.
var ErrInvalidEntity = errors.New("invalid entity")

// Validate checks the fields the Entity Store requires. Validation is the
// caller's job: Upsert treats a malformed entity as a precondition violation.
func (e RawEntity) Validate() error {
	if e.Domain == "" {
		return fmt.Errorf("%w: missing domain", ErrInvalidEntity)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id (domain=%s)", ErrInvalidEntity, e.Domain)
	}
	for i, emb := range e.Embedded {
		if err := emb.Validate(); err != nil {
			return fmt.Errorf("embedded[%d] of %s: %w", i, e.Ref, err)
		}
	}
	return nil
}

// FeedItem is the normalized, stored form of an entity.
type FeedItem struct {
	Ref
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`

	// LastUpdated is the network date of the fetch whose data is stored.
	// It only ever moves forward.
	LastUpdated time.Time `json:"last_updated"`

	Payload Payload `json:"payload,omitempty"`
	Refs    []Ref   `json:"refs,omitempty"`
}

// ItemFromEntity converts a raw entity into the item stored for it.
func ItemFromEntity(e RawEntity, networkDate time.Time) FeedItem {
	var refs []Ref
	if len(e.Refs) > 0 {
		refs = append([]Ref(nil), e.Refs...)
	}
	return FeedItem{
		Ref:         NewRef(e.Domain, e.ID),
		Kind:        e.Kind,
		CreatedAt:   e.CreatedAt,
		LastUpdated: networkDate,
		Payload:     e.Payload.Clone(),
		Refs:        refs,
	}
}

// Params selects which remote feed a gateway call targets.
type Params struct {
	// Domain is the server the feed lives on.
	Domain string `json:"domain" yaml:"domain"`

	// Timeline names the feed on that server ("home", "local", a hashtag,
	// a feed URL).
	Timeline string `json:"timeline" yaml:"timeline"`

	// Limit caps the page size requested from the remote. Zero lets the
	// gateway pick.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// String renders params as domain:timeline for logs.
func (p Params) String() string {
	return p.Domain + ":" + p.Timeline
}

// Page is the result of a single gateway call.
type Page struct {
	// Items are the fetched entities, newest first.
	Items []RawEntity

	// OlderCursor points at the next older page. Empty means the remote has
	// nothing older. For FetchBetween a non-empty cursor means the range was
	// not exhausted by this page.
	OlderCursor string

	// NetworkDate is when the remote asserted this data, typically the
	// response Date header. Zero means the gateway does not know; the
	// engine then uses the time the request was issued.
	NetworkDate time.Time
}

// IDs returns the ids of the page's items in order.
func (p Page) IDs() []string {
	ids := make([]string, len(p.Items))
	for i, e := range p.Items {
		ids[i] = e.ID
	}
	return ids
}
