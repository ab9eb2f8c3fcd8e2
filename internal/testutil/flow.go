package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs returns predetermined handles so logs and golden traces are
// stable across runs. After the list is used up it falls back to
// prefix-N names.
//
// Thread-safety: FixedIDs is safe for concurrent use.
type FixedIDs struct {
	mu     sync.Mutex
	ids    []string
	idx    int
	prefix string
}

// NewFixedIDs creates a generator returning ids in order, then
// "handle-N" names.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids, prefix: "handle"}
}

// Generate returns the next id.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idx++
	if g.idx <= len(g.ids) {
		return g.ids[g.idx-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.idx)
}
