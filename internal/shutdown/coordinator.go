package shutdown

import (
	"context"
	"time"
)

// Coordinator is the process-wide, one-way shutdown signal. Every timed wait
// in the pipeline goes through Wait so that a Trigger is observed within one
// wait slice.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a Coordinator that also fires when parent is cancelled.
func New(parent context.Context) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Trigger sets the signal. Safe to call more than once.
func (c *Coordinator) Trigger() {
	c.cancel()
}

// Done reports whether the signal has been set.
func (c *Coordinator) Done() bool {
	return c.ctx.Err() != nil
}

// C is closed once the signal is set.
func (c *Coordinator) C() <-chan struct{} {
	return c.ctx.Done()
}

// Context is cancelled once the signal is set. Blocking network calls take it.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Wait blocks for at most d and reports whether the signal was set.
func (c *Coordinator) Wait(d time.Duration) bool {
	if d <= 0 {
		return c.Done()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return true
	case <-timer.C:
		return c.Done()
	}
}
