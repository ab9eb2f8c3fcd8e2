package rss

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example</title>
  <link>https://example.org/</link>
  <item>
    <title>Second</title>
    <link>https://example.org/2</link>
    <guid>post-2</guid>
    <pubDate>Fri, 02 Jan 2026 10:00:00 GMT</pubDate>
    <description>two</description>
    <category>news</category>
  </item>
  <item>
    <title>Third</title>
    <link>https://example.org/3</link>
    <guid>post-3</guid>
    <pubDate>Sat, 03 Jan 2026 10:00:00 GMT</pubDate>
    <description>three</description>
  </item>
  <item>
    <title>First, no guid</title>
    <link>https://example.org/1</link>
    <pubDate>Thu, 01 Jan 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Undated</title>
    <guid>post-x</guid>
  </item>
  <item>
    <title>Anonymous</title>
  </item>
</channel>
</rss>`

var fixedNow = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func serve(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL + "/feed.xml"
}

func newGateway() *Gateway {
	return New(WithTimeout(5*time.Second), WithNow(func() time.Time { return fixedNow }))
}

func TestFetchNewest_ParsesAndOrders(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(sampleRSS))
	})

	g := newGateway()
	page, err := g.FetchNewest(t.Context(), feed.Params{Domain: "example.org", Timeline: url})
	require.NoError(t, err)

	assert.Equal(t, []string{"post-x", "post-3", "post-2", "https://example.org/1"}, page.IDs(),
		"newest first, undated items stamped now, link as fallback id, anonymous item dropped")
	assert.Empty(t, page.OlderCursor)

	third := page.Items[1]
	assert.Equal(t, "example.org", third.Domain)
	assert.Equal(t, feed.KindPost, third.Kind)
	assert.Equal(t, "Third", third.Payload["title"])
	assert.Equal(t, "three", third.Payload["content"])
	assert.Equal(t, time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC), third.CreatedAt)
	assert.Equal(t, []any{"news"}, page.Items[2].Payload["categories"])
	assert.Equal(t, fixedNow, page.Items[0].CreatedAt)
}

func TestFetch_PagesThroughDocument(t *testing.T) {
	var hits atomic.Int32
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(sampleRSS))
	})

	g := newGateway()
	p := feed.Params{Timeline: url, Limit: 2}

	page, err := g.FetchNewest(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"post-x", "post-3"}, page.IDs())
	assert.Equal(t, "post-3", page.OlderCursor)

	page, err = g.FetchOlder(t.Context(), p, page.OlderCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"post-2", "https://example.org/1"}, page.IDs())
	assert.Empty(t, page.OlderCursor)

	page, err = g.FetchBetween(t.Context(), p, "https://example.org/1", "post-x")
	require.NoError(t, err)
	assert.Equal(t, []string{"post-3", "post-2"}, page.IDs())

	assert.Equal(t, int32(1), hits.Load(), "older pages come from the cached document")
}

func TestFetch_DomainDefaultsToHost(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	})

	page, err := newGateway().FetchNewest(t.Context(), feed.Params{Timeline: url})
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)
	assert.Contains(t, page.Items[0].Domain, "127.0.0.1")
}

func TestFetch_ConditionalGet(t *testing.T) {
	var hits atomic.Int32
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleRSS))
	})

	g := newGateway()
	p := feed.Params{Timeline: url}
	first, err := g.FetchNewest(t.Context(), p)
	require.NoError(t, err)
	second, err := g.FetchNewest(t.Context(), p)
	require.NoError(t, err)

	assert.Equal(t, first.IDs(), second.IDs())
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		logical bool
	}{
		{"unauthorized is logical", http.StatusUnauthorized, true},
		{"forbidden is logical", http.StatusForbidden, true},
		{"server error is transport", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := serve(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := newGateway().FetchNewest(t.Context(), feed.Params{Timeline: url})
			require.Error(t, err)
			assert.Equal(t, tt.logical, feed.IsLogical(feed.Classify("reload", "", err)))
		})
	}
}

func TestFetch_MissingURLIsLogical(t *testing.T) {
	_, err := newGateway().FetchNewest(t.Context(), feed.Params{Domain: "example.org"})
	require.ErrorIs(t, err, feed.ErrLogical)
}

func TestFetch_MalformedDocument(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not a feed"))
	})
	_, err := newGateway().FetchNewest(t.Context(), feed.Params{Timeline: url})
	require.Error(t, err)
	assert.False(t, feed.IsLogical(feed.Classify("reload", "", err)))
}

func TestFetchOlder_UnknownCursor(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	})
	page, err := newGateway().FetchOlder(t.Context(), feed.Params{Timeline: url}, "missing")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestFetch_NetworkDate(t *testing.T) {
	served := time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		date []string
		want time.Time
	}{
		{"date header", []string{served.Format(http.TimeFormat)}, served},
		{"malformed header", []string{"yesterday"}, fixedNow},
		{"no header", nil, fixedNow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := serve(t, func(w http.ResponseWriter, r *http.Request) {
				// A nil entry stops net/http from adding its own Date.
				w.Header()["Date"] = tt.date
				_, _ = w.Write([]byte(sampleRSS))
			})

			g := newGateway()
			p := feed.Params{Timeline: url, Limit: 2}
			page, err := g.FetchNewest(t.Context(), p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.NetworkDate)

			older, err := g.FetchOlder(t.Context(), p, page.OlderCursor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, older.NetworkDate, "cached pages keep the document date")
		})
	}
}
