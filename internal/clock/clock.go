// Package clock implements the per-question countdown.
package clock

import (
	"context"
	"sync"
	"time"
)

// RoundClock runs one cancellable countdown per question at a fixed duration.
// Starting a new round cancels the previous countdown, and every tick and
// expiry carries the round it belongs to so consumers can discard stale
// firings by identity. Exactly one expiry fires per started round unless the
// countdown is cancelled first.
//
// Clocks are not synchronized across clients. Visible skew between host and
// player views of the remaining time is accepted; the broadcast start and
// complete events are the authoritative boundaries, not wall-clock agreement.
type RoundClock struct {
	duration time.Duration
	interval time.Duration

	onTick   func(round, secondsRemaining int)
	onExpire func(round int)

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds a clock. interval is the tick resolution, one second in
// production; tests shrink it to keep countdowns fast. Either callback may
// be nil.
func New(duration, interval time.Duration, onTick func(round, secondsRemaining int), onExpire func(round int)) *RoundClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &RoundClock{duration: duration, interval: interval, onTick: onTick, onExpire: onExpire}
}

// Start begins the countdown for a round, cancelling any countdown still
// running for a previous round.
func (c *RoundClock) Start(ctx context.Context, round int) {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx, round)
}

// Stop cancels the active countdown, if any. A cancelled round never fires
// its expiry.
func (c *RoundClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *RoundClock) run(ctx context.Context, round int) {
	remaining := int(c.duration / c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining--
			if c.onTick != nil {
				c.onTick(round, remaining)
			}
			if remaining <= 0 {
				if c.onExpire != nil {
					c.onExpire(round)
				}
				return
			}
		}
	}
}
