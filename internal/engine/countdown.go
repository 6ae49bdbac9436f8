package engine

import (
	"sync"
	"time"
)

// Countdown is the auto-submit deadline collaborator. Every Arm invalidates the
// previous deadline and hands out a new epoch token; the expiry callback
// receives the token so a deadline that fires after the question it was armed
// for has been left can be recognized as stale and discarded. Display ticks are
// not this type's concern.
type Countdown struct {
	mu       sync.Mutex
	epoch    int
	timer    *time.Timer
	onExpire func(epoch int)
}

func NewCountdown(onExpire func(epoch int)) *Countdown {
	return &Countdown{onExpire: onExpire}
}

// Arm schedules expiry after d, cancelling any previous deadline, and returns
// the epoch token the expiry will carry.
func (c *Countdown) Arm(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.epoch++
	epoch := c.epoch
	c.timer = time.AfterFunc(d, func() {
		// This check only culls deadlines already cancelled when the callback
		// runs; a Stop or re-Arm can still land between it and onExpire. The
		// receiver must re-verify the token under its own lock.
		c.mu.Lock()
		live := epoch == c.epoch
		c.mu.Unlock()
		if live {
			c.onExpire(epoch)
		}
	})
	return epoch
}

// Stop cancels the pending deadline, if any, and invalidates the epoch of any
// callback already in flight.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.epoch++
}
