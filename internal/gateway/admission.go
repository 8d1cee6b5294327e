package gateway

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred and the time spent waiting.
func (g *Gateway) beginGeneration(ctx context.Context) (func(), time.Duration, error) {
	start := time.Now()
	g.mu.RLock()
	closed := g.state == StateClosed
	g.mu.RUnlock()
	if closed {
		return func() {}, 0, tooBusyError{reason: "gateway closed"}
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, 0, err
	}

	// Try to reserve a queue slot with timeout
	timer := time.NewTimer(g.maxWait)
	defer timer.Stop()
	select {
	case g.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, time.Since(start), ctx.Err()
	case <-timer.C:
		return func() {}, time.Since(start), tooBusyError{reason: "queue full"}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-g.queueCh
		}
	}()
	// Check for cancellation again before blocking on gen slot
	if err := ctx.Err(); err != nil {
		return func() {}, time.Since(start), err
	}
	remaining := g.maxWait - time.Since(start)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	timer2 := time.NewTimer(remaining)
	defer timer2.Stop()
	select {
	case g.genCh <- struct{}{}:
		acquired = true
		return func() { <-g.genCh; <-g.queueCh }, time.Since(start), nil
	case <-ctx.Done():
		return func() {}, time.Since(start), ctx.Err()
	case <-timer2.C:
		return func() {}, time.Since(start), tooBusyError{reason: "generation slot wait timed out"}
	}
}
