package engine

import (
	"sync"

	"github.com/google/uuid"
)

// HandleGenerator mints controller handles.
// Implemented by UUIDv7Handles (production) and testutil.FixedIDs (tests).
type HandleGenerator interface {
	Generate() string
}

// UUIDv7Handles generates time-sortable UUIDv7 handles, so handles in logs
// sort by controller creation time.
type UUIDv7Handles struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Handles) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// registry maps handles to live controllers.
//
// Fetch goroutines hold a handle, never a *Controller. When a fetch finishes
// it looks its controller up; a controller that has been closed is gone from
// the registry and the result is dropped.
type registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
}

func newRegistry() *registry {
	return &registry{controllers: make(map[string]*Controller)}
}

func (r *registry) add(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[c.handle] = c
}

func (r *registry) remove(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, handle)
}

func (r *registry) lookup(handle string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[handle]
	return c, ok
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}
