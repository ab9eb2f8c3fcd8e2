package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies the network date stamped on every fetched page. The
// freshness gate compares these dates, so tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// sequence is a monotonic counter. Events and snapshots are numbered from
// it so subscribers can order what they receive without wall-clock time.
type sequence struct {
	n atomic.Int64
}

// Next returns the next number, starting at 1.
func (s *sequence) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last number handed out.
func (s *sequence) Current() int64 {
	return s.n.Load()
}
