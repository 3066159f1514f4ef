// Package engine implements the layered audio cue playback engine:
// a buffer-scheduling primary tier, an exec-based media fallback tier,
// and a procedural synthetic tone tier of last resort.
package engine

import "time"

// Clock is the engine's monotonic clock. Zero is engine construction;
// `when` offsets passed to play calls are measured against it.
type Clock interface {
	Now() time.Duration
}

type systemClock struct {
	start time.Time
}

// NewClock returns a monotonic clock starting at zero.
func NewClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() time.Duration {
	return time.Since(c.start)
}
