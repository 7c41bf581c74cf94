// Package clock provides the simulated time source agents read from.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current simulated time.
type Clock interface {
	Now() time.Time
}

// DefaultScale is how many simulated seconds pass per real second.
const DefaultScale = 60

// Scaled is a clock that runs Scale times faster than wall time, starting
// from a fixed simulated instant. It can be paused.
type Scaled struct {
	mu      sync.Mutex
	start   time.Time
	origin  time.Time
	scale   float64
	paused  bool
	pausedT time.Time
	wall    func() time.Time
}

// NewScaled creates a running scaled clock.
func NewScaled(start time.Time, scale float64) *Scaled {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Scaled{start: start, origin: time.Now(), scale: scale, wall: time.Now}
}

// Morning returns today's date at hour:00 in the local zone.
func Morning(hour int) time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
}

func (c *Scaled) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return c.pausedT
	}
	return c.nowLocked()
}

func (c *Scaled) nowLocked() time.Time {
	elapsed := c.wall().Sub(c.origin)
	return c.start.Add(time.Duration(float64(elapsed) * c.scale))
}

// Pause freezes simulated time until Resume.
func (c *Scaled) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.pausedT = c.nowLocked()
	c.paused = true
}

// Resume continues from the instant the clock was paused at.
func (c *Scaled) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.start = c.pausedT
	c.origin = c.wall()
	c.paused = false
}

// Manual is a clock that only moves when told to. Advance never moves it
// backwards.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *Manual) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set jumps to t if t is not before the current time.
func (c *Manual) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

// SameDay reports whether a and b fall on the same calendar date in a's zone.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
