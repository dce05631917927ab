package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickFunc is invoked on every one-second tick with the time left until the target boundary.
type TickFunc func(now time.Time, remaining time.Duration)

// BoundaryFunc is invoked once each time the countdown reaches zero.
type BoundaryFunc func(boundary time.Time)

// Countdown is an owned one-second ticker counting down to the next round boundary.
// It must be started with Start and released with Stop; it never outlives its owner.
type Countdown struct {
	clock      clockwork.Clock
	onTick     TickFunc
	onBoundary BoundaryFunc

	mu     sync.Mutex
	target time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCountdown builds a stopped countdown. Either callback may be nil.
func NewCountdown(clock clockwork.Clock, onTick TickFunc, onBoundary BoundaryFunc) *Countdown {
	return &Countdown{
		clock:      clock,
		onTick:     onTick,
		onBoundary: onBoundary,
	}
}

// Start begins ticking. Calling Start on a running countdown is a no-op.
func (c *Countdown) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	c.target = NextRoundBoundary(c.clock.Now())
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	// created here so the ticker is registered with the clock before Start returns
	ticker := c.clock.NewTicker(time.Second)
	go c.loop(ctx, ticker, c.done)
}

func (c *Countdown) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.tick()
		}
	}
}

// tick reads the clock rather than counting ticks, so dropped ticks cannot skip a boundary.
func (c *Countdown) tick() {
	now := c.clock.Now()

	c.mu.Lock()
	remaining := c.target.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	var fired time.Time
	reached := remaining == 0
	if reached {
		fired = c.target
		c.target = NextRoundBoundary(now)
	}
	c.mu.Unlock()

	if reached && c.onBoundary != nil {
		c.onBoundary(fired)
	}
	if c.onTick != nil {
		c.onTick(now, remaining)
	}
}

// Stop halts the ticker and waits for the loop to exit. Safe to call more than once.
func (c *Countdown) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Target returns the boundary being counted down to.
func (c *Countdown) Target() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target.IsZero() {
		return NextRoundBoundary(c.clock.Now())
	}
	return c.target
}

// Remaining returns max(0, target - now).
func (c *Countdown) Remaining() time.Duration {
	d := c.Target().Sub(c.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}
