package scheduler

import "time"

// SimClock owns the single repeating simulation tick.
// Its methods must be called from loop tasks.
type SimClock struct {
	loop   *Loop
	tick   func()
	handle *Handle
	period time.Duration
	starts uint64
}

// NewSimClock creates a stopped clock that runs tick on every fire
func NewSimClock(loop *Loop, tick func()) *SimClock {
	return &SimClock{loop: loop, tick: tick}
}

// Start cancels any running timer and arms a new one at period.
// The old timer is stopped before the new one is armed, so the two never
// coexist and a queued fire of the old timer is discarded.
func (c *SimClock) Start(period time.Duration) {
	c.Stop()
	c.period = period
	c.handle = c.loop.Every(period, c.tick)
	c.starts++
}

// Stop cancels the running timer. Calling it on a stopped clock is a no-op.
func (c *SimClock) Stop() {
	if c.handle == nil {
		return
	}
	c.handle.Stop()
	c.handle = nil
	c.period = 0
}

// Period returns the current tick period, or zero when stopped
func (c *SimClock) Period() time.Duration {
	return c.period
}

// Running reports whether a tick timer is armed
func (c *SimClock) Running() bool {
	return c.handle != nil
}

// Starts returns how many times Start has been called
func (c *SimClock) Starts() uint64 {
	return c.starts
}
