package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", fmt.Sprintf("%d", schemaVersion)))
}

func TestOpen_MigratesLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := Open(path)
	require.NoError(t, err)
	_, err = legacy.db.Exec(`DROP TABLE items`)
	require.NoError(t, err)
	_, err = legacy.db.Exec(`CREATE TABLE items (
		domain TEXT NOT NULL, id TEXT NOT NULL, kind TEXT NOT NULL,
		created_at INTEGER NOT NULL, last_updated INTEGER NOT NULL,
		payload TEXT NOT NULL, refs TEXT NOT NULL,
		PRIMARY KEY (domain, id))`)
	require.NoError(t, err)
	_, err = legacy.db.Exec(`PRAGMA user_version = 0`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.Upsert(context.Background(), post("1", "hi"), at(1))
	assert.NoError(t, err)
}

func TestUpsert_InsertsMissingRecord(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			stored, inserted, err := s.Upsert(ctx, post("1", "hello"), at(1))
			require.NoError(t, err)
			assert.True(t, inserted)
			assert.Equal(t, "1", stored.ID)
			assert.True(t, at(1).Equal(stored.LastUpdated))
			assert.Equal(t, "hello", stored.Payload["text"])

			got, ok, err := s.Get(ctx, "example.social", "1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "hello", got.Payload["text"])
		})
	}
}

func TestUpsert_IdempotentForSameNetworkDate(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, inserted, err := s.Upsert(ctx, post("1", "hello"), at(1))
			require.NoError(t, err)
			require.True(t, inserted)

			second, inserted, err := s.Upsert(ctx, post("1", "hello"), at(1))
			require.NoError(t, err)
			assert.False(t, inserted)
			assert.Equal(t, first, second)
		})
	}
}

func TestUpsert_StaleWriteIsNoOp(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, _, err := s.Upsert(ctx, post("1", "new"), at(10))
			require.NoError(t, err)

			stored, inserted, err := s.Upsert(ctx, post("1", "old"), at(5))
			require.NoError(t, err)
			assert.False(t, inserted)
			assert.Equal(t, "new", stored.Payload["text"])
			assert.True(t, at(10).Equal(stored.LastUpdated))
		})
	}
}

func TestUpsert_FreshnessMonotonicity(t *testing.T) {
	// Decreasing then increasing network dates: the maximum wins.
	dates := []int{5, 3, 1, 2, 9, 4, 7}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, d := range dates {
				_, _, err := s.Upsert(ctx, post("1", fmt.Sprintf("v%d", d)), at(d))
				require.NoError(t, err)
			}

			got, ok, err := s.Get(ctx, "example.social", "1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, at(9).Equal(got.LastUpdated))
			assert.Equal(t, "v9", got.Payload["text"])
		})
	}
}

func TestUpsert_ConcurrentSameID(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 1; i <= 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, _, err := s.Upsert(ctx, post("race", fmt.Sprintf("v%d", i)), at(i))
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			got, ok, err := s.Get(ctx, "example.social", "race")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "v20", got.Payload["text"])
			assert.True(t, at(20).Equal(got.LastUpdated))
		})
	}
}

func TestUpsert_DomainsAreIsolated(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a := post("1", "a")
			b := post("1", "b")
			b.Domain = "other.social"

			_, inserted, err := s.Upsert(ctx, a, at(1))
			require.NoError(t, err)
			assert.True(t, inserted)
			_, inserted, err = s.Upsert(ctx, b, at(1))
			require.NoError(t, err)
			assert.True(t, inserted)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestGet_Missing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(context.Background(), "example.social", "nope")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestList_NewestFirst(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 3; i++ {
				e := post(fmt.Sprintf("p%d", i), "x")
				e.CreatedAt = at(i)
				_, _, err := s.Upsert(ctx, e, at(100))
				require.NoError(t, err)
			}

			items, err := s.List(ctx, "example.social", 2)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "p3", items[0].ID)
			assert.Equal(t, "p2", items[1].ID)

			all, err := s.List(ctx, "example.social", 0)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestSQLite_RoundTripsPayloadAndRefs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := feed.RawEntity{
		Ref:       feed.NewRef("example.social", "r1"),
		Kind:      feed.KindReblog,
		CreatedAt: baseTime,
		Payload: feed.Payload{
			"count": 3,
			"tags":  []any{"a", "b"},
			"meta":  map[string]any{"sensitive": false},
		},
		Refs: []feed.Ref{feed.NewRef("example.social", "p1")},
	}

	_, _, err := s.Upsert(ctx, e, at(1))
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, "example.social", "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, feed.KindReblog, got.Kind)
	assert.Equal(t, int64(3), got.Payload["count"])
	assert.Equal(t, []any{"a", "b"}, got.Payload["tags"])
	assert.Equal(t, map[string]any{"sensitive": false}, got.Payload["meta"])
	assert.Equal(t, []feed.Ref{{Domain: "example.social", ID: "p1"}}, got.Refs)
	assert.True(t, baseTime.Equal(got.CreatedAt))
}

func TestSQLite_RejectsFloatPayload(t *testing.T) {
	s := createTestStore(t)

	e := post("f", "x")
	e.Payload["score"] = 0.5

	_, _, err := s.Upsert(context.Background(), e, at(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}
