package imaging

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter allows at most limit calls per fixed window. Callers over the
// ceiling wait for the next window instead of failing.
type rateLimiter struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// newRateLimiter creates a limiter allowing requestsPerMinute calls per minute.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	return newWindowLimiter(requestsPerMinute, time.Minute)
}

func newWindowLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = 60 // Default to 60 requests per window
	}
	return &rateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// wait blocks until a call is allowed or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		delay := rl.reserve()
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-timer.C:
			// Try again in the new window
		}
	}
}

// reserve takes a slot in the current window and returns 0, or returns how
// long to wait until the window resets.
func (rl *rateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if rl.windowStart.IsZero() || now.Sub(rl.windowStart) >= rl.window {
		rl.windowStart = now
		rl.count = 0
	}

	if rl.count < rl.limit {
		rl.count++
		return 0
	}

	delay := rl.windowStart.Add(rl.window).Sub(now)
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay
}
