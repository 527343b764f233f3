package provider

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum spacing between outgoing requests to one API.
type Throttle struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastRequest time.Time
}

func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{minInterval: minInterval}
}

// Wait blocks until the minimum interval since the previous request has
// elapsed, or ctx is cancelled.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	now := time.Now()
	wait := t.minInterval - now.Sub(t.lastRequest)
	if wait < 0 {
		wait = 0
	}
	t.lastRequest = now.Add(wait)
	t.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
