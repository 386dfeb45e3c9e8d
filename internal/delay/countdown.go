package delay

import (
	"sync"
	"time"
)

// countdownTick is the countdown resolution.
const countdownTick = time.Second

// Countdown reports the seconds left until the delayed path is revealed. It
// is display-only: the reveal has its own timer and the two are never
// resynchronized.
type Countdown struct {
	clock  Clock
	onTick func(remaining int)

	mu        sync.Mutex
	remaining int
	timer     Timer
	gen       uint64
}

// NewCountdown creates a stopped countdown. onTick, if set, is called after
// every decrement.
func NewCountdown(clock Clock, onTick func(remaining int)) *Countdown {
	return &Countdown{clock: clock, onTick: onTick}
}

// Start (re)seeds the countdown with seconds and starts ticking.
func (c *Countdown) Start(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = seconds
	if seconds > 0 {
		c.scheduleLocked()
	}
}

// Stop halts the countdown and resets it to zero.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = 0
}

// Clamp lowers the remaining seconds to max if they exceed it.
func (c *Countdown) Clamp(max int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > max {
		c.remaining = max
	}
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether another tick is scheduled.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Countdown) stopLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) scheduleLocked() {
	gen := c.gen
	c.timer = c.clock.AfterFunc(countdownTick, func() { c.tick(gen) })
}

func (c *Countdown) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.remaining > 0 {
		c.remaining--
	}
	remaining := c.remaining
	if remaining > 0 {
		c.scheduleLocked()
	}
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(remaining)
	}
}
