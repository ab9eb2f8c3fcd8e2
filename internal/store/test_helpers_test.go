package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

// createTestStore opens a fresh SQLite store under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns every EntityStore implementation under test.
func backends(t *testing.T) map[string]Catalog {
	t.Helper()
	return map[string]Catalog{
		"memory": NewMemory(),
		"sqlite": createTestStore(t),
	}
}

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// at returns baseTime shifted by n seconds.
func at(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Second)
}

func post(id, text string) feed.RawEntity {
	return feed.RawEntity{
		Ref:       feed.NewRef("example.social", id),
		Kind:      feed.KindPost,
		CreatedAt: baseTime,
		Payload:   feed.Payload{"text": text},
	}
}
