package client

import (
	"context"
	"fmt"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

// Flush cancels armed delays, forces an immediate attempt on each idle non-empty lane,
// and waits until no bundle is in flight. Concurrent calls share one completion.
// On a client that is not ready nothing is sent; ErrNotReady goes to the error sink and
// Flush returns once outstanding requests finish.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.Lock()
	if done := c.flushDone; done != nil {
		c.mu.Unlock()
		return wait(ctx, done)
	}
	if c.destroyed.Load() {
		c.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	c.flushDone = done
	// hold a slot while forcing so a fast delivery on one lane cannot complete the
	// flush before the other lane was forced
	c.inFlight++
	c.mu.Unlock()

	if !c.Ready() {
		c.report(fmt.Errorf("flush: %w", telemetry.ErrNotReady))
	}
	for _, l := range c.lanes() {
		l.sched.Force()
	}
	c.release()

	return wait(ctx, done)
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight++
}

func (c *Client) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	if c.inFlight == 0 && c.flushDone != nil {
		close(c.flushDone)
		c.flushDone = nil
	}
}

// InFlight is the number of bundles awaiting a collector answer.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
