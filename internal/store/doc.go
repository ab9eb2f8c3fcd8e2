// Package store implements the conflict-aware Entity Store: a record store
// keyed by (domain, id) holding normalized feed items.
//
// # Freshness Gate
//
// Every write goes through Upsert. A record that does not exist is inserted
// unconditionally. A record that exists is overwritten only when the
// incoming network date is strictly newer than the stored LastUpdated;
// otherwise Upsert is a no-op that returns the stored record. LastUpdated
// therefore only moves forward and an older response racing a newer one can
// never clobber it.
//
// The compare-and-conditional-write is the only mutation primitive and it is
// idempotent, so stores are safe to share between feed controllers without
// external locking.
//
// # Implementations
//
//   - Memory: sync.Map with a compare-and-swap retry loop
//   - Store: SQLite, with the gate expressed as an upsert guarded by
//     WHERE excluded.last_updated > items.last_updated
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Payloads are stored as canonical JSON (internal/canonical) together with
// a content hash, so identical payloads produce identical rows.
package store
