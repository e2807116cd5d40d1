package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a single-token bucket that refills at a fixed rate, used to
// pace requests to market-data APIs.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration // time to earn one token
	next     time.Time     // earliest time the next token is available
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. The first call to Wait returns immediately.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	at := rl.next
	if at.Before(now) {
		at = now
	}
	rl.next = at.Add(rl.interval)
	rl.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		rl.release(at)
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// release gives back a reservation that was not used, if it is still the
// most recent one.
func (rl *RateLimiter) release(at time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.next.Equal(at.Add(rl.interval)) {
		rl.next = at
	}
}
