// Package rss serves RSS, Atom and JSON feeds through the Fetch Gateway
// contract.
//
// A feed document is one newest-first list. The gateway pages through the
// last fetched document: FetchNewest downloads and parses it, FetchOlder and
// FetchBetween slice the cached copy, downloading again only when nothing is
// cached for the URL. Conditional GETs (ETag, Last-Modified) keep refreshes
// cheap.
package rss

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/gateway"
)

// DefaultTimeout bounds one HTTP request.
const DefaultTimeout = 20 * time.Second

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "feedsync/1.0"

type document struct {
	items        []feed.RawEntity // newest first
	etag         string
	lastModified string
	date         time.Time // server Date, or when the request was issued
}

// page slices the document and stamps the page with its date.
func (d *document) page(from, to, limit int) feed.Page {
	pg := window(d.items, from, to, limit)
	pg.NetworkDate = d.date
	return pg
}

// Gateway fetches feed documents over HTTP.
type Gateway struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
	now       func() time.Time

	mu   sync.Mutex
	docs map[string]*document
}

var _ gateway.Gateway = (*Gateway)(nil)

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		g.client = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.client = &http.Client{Timeout: d}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(g *Gateway) {
		g.userAgent = ua
	}
}

// WithNow sets the clock used for items without a publication date.
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New creates a gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		client:    &http.Client{Timeout: DefaultTimeout},
		parser:    gofeed.NewParser(),
		userAgent: DefaultUserAgent,
		now:       time.Now,
		docs:      make(map[string]*document),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchNewest downloads the document named by p.Timeline and returns its
// first page.
func (g *Gateway) FetchNewest(ctx context.Context, p feed.Params) (feed.Page, error) {
	doc, err := g.download(ctx, p)
	if err != nil {
		return feed.Page{}, err
	}
	return doc.page(0, len(doc.items), p.Limit), nil
}

// FetchOlder returns the items after cursor in the cached document.
func (g *Gateway) FetchOlder(ctx context.Context, p feed.Params, cursor string) (feed.Page, error) {
	doc, err := g.cached(ctx, p)
	if err != nil {
		return feed.Page{}, err
	}
	i := indexOf(doc.items, cursor)
	if i < 0 {
		return feed.Page{}, nil
	}
	return doc.page(i+1, len(doc.items), p.Limit), nil
}

// FetchBetween returns the items strictly between olderThan and newerThan
// in the cached document.
func (g *Gateway) FetchBetween(ctx context.Context, p feed.Params, newerThan, olderThan string) (feed.Page, error) {
	doc, err := g.cached(ctx, p)
	if err != nil {
		return feed.Page{}, err
	}
	top, bottom := indexOf(doc.items, olderThan), indexOf(doc.items, newerThan)
	if top < 0 || bottom < 0 {
		return feed.Page{}, nil
	}
	return doc.page(top+1, bottom, p.Limit), nil
}

func (g *Gateway) cached(ctx context.Context, p feed.Params) (*document, error) {
	g.mu.Lock()
	doc, ok := g.docs[p.Timeline]
	g.mu.Unlock()
	if ok {
		return doc, nil
	}
	return g.download(ctx, p)
}

func (g *Gateway) download(ctx context.Context, p feed.Params) (*document, error) {
	if p.Timeline == "" {
		return nil, fmt.Errorf("rss: no feed url for %s: %w", p.Domain, feed.ErrLogical)
	}

	g.mu.Lock()
	prev := g.docs[p.Timeline]
	g.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Timeline, nil)
	if err != nil {
		return nil, fmt.Errorf("rss: %w: %w", feed.ErrLogical, err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	if prev != nil {
		if prev.etag != "" {
			req.Header.Set("If-None-Match", prev.etag)
		}
		if prev.lastModified != "" {
			req.Header.Set("If-Modified-Since", prev.lastModified)
		}
	}

	issued := g.now().UTC()
	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rss: fetch %s: %w", p.Timeline, err)
	}
	defer res.Body.Close()
	date := responseDate(res.Header, issued)

	switch {
	case res.StatusCode == http.StatusNotModified && prev != nil:
		// Unchanged, but now known to hold as of date.
		doc := *prev
		doc.date = date
		g.mu.Lock()
		g.docs[p.Timeline] = &doc
		g.mu.Unlock()
		return &doc, nil
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("rss: %s: %s: %w", p.Timeline, res.Status, feed.ErrLogical)
	case res.StatusCode != http.StatusOK:
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, res.Body, 4096)
		return nil, fmt.Errorf("rss: %s: unexpected status %s", p.Timeline, res.Status)
	}

	parsed, err := g.parser.Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("rss: parse %s: %w", p.Timeline, err)
	}

	doc := &document{
		items:        g.entities(p, parsed),
		etag:         res.Header.Get("ETag"),
		lastModified: res.Header.Get("Last-Modified"),
		date:         date,
	}

	g.mu.Lock()
	g.docs[p.Timeline] = doc
	g.mu.Unlock()
	return doc, nil
}

// responseDate reads the Date header, falling back to issued when it is
// missing or malformed.
func responseDate(h http.Header, issued time.Time) time.Time {
	if v := h.Get("Date"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return t.UTC()
		}
	}
	return issued
}

// entities converts feed items, newest first. Items without a GUID or link
// cannot be identified and are skipped.
func (g *Gateway) entities(p feed.Params, parsed *gofeed.Feed) []feed.RawEntity {
	domain := cmp.Or(p.Domain, hostOf(p.Timeline))
	now := g.now().UTC()

	out := make([]feed.RawEntity, 0, len(parsed.Items))
	seen := make(map[string]bool, len(parsed.Items))
	for _, item := range parsed.Items {
		id := cmp.Or(item.GUID, item.Link)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, toEntity(domain, id, item, now))
	}

	slices.SortStableFunc(out, func(a, b feed.RawEntity) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func toEntity(domain, id string, item *gofeed.Item, now time.Time) feed.RawEntity {
	created := now
	switch {
	case item.PublishedParsed != nil:
		created = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		created = item.UpdatedParsed.UTC()
	}

	payload := feed.Payload{
		"title":   item.Title,
		"link":    item.Link,
		"content": cmp.Or(item.Content, item.Description),
	}
	if len(item.Authors) > 0 {
		authors := make([]any, 0, len(item.Authors))
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		payload["authors"] = authors
	}
	if len(item.Categories) > 0 {
		categories := make([]any, len(item.Categories))
		for i, c := range item.Categories {
			categories[i] = c
		}
		payload["categories"] = categories
	}

	return feed.RawEntity{
		Ref:       feed.NewRef(domain, id),
		Kind:      feed.KindPost,
		CreatedAt: created,
		Payload:   payload,
	}
}

// window returns up to limit items of items[from:to]; limit <= 0 means all.
// OlderCursor is set when part of the range is left.
func window(items []feed.RawEntity, from, to, limit int) feed.Page {
	if from >= to {
		return feed.Page{}
	}
	end := to
	if limit > 0 {
		end = min(from+limit, to)
	}
	page := feed.Page{Items: slices.Clone(items[from:end])}
	if end < to {
		page.OlderCursor = items[end-1].ID
	}
	return page
}

func indexOf(items []feed.RawEntity, id string) int {
	return slices.IndexFunc(items, func(e feed.RawEntity) bool { return e.ID == id })
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
