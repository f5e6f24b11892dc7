package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter grants permission to perform one remote call.
type Limiter interface {
	// Acquire blocks until a grant is available or ctx is cancelled.
	// A full budget delays the caller, it never fails the call.
	Acquire(ctx context.Context) error

	// TryAcquire consumes a grant if one is available right now.
	TryAcquire() bool
}

// windowLimiter counts grants inside a fixed window. The window is anchored
// at the first grant after a reset; when the budget is spent, callers wait
// for the window boundary and start the next one.
type windowLimiter struct {
	calls  int
	period time.Duration

	mu      sync.Mutex
	used    int
	resetAt time.Time
}

func newWindowLimiter(calls int, period time.Duration) *windowLimiter {
	return &windowLimiter{calls: calls, period: period}
}

func (w *windowLimiter) Acquire(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := time.Now()
		if w.resetAt.IsZero() || !now.Before(w.resetAt) {
			w.used = 0
			w.resetAt = now.Add(w.period)
		}
		if w.used < w.calls {
			// Grant inside the critical section so a concurrent caller can
			// never observe a stale count.
			w.used++
			w.mu.Unlock()
			return nil
		}
		wait := time.Until(w.resetAt)
		w.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (w *windowLimiter) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if w.resetAt.IsZero() || !now.Before(w.resetAt) {
		w.used = 0
		w.resetAt = now.Add(w.period)
	}
	if w.used < w.calls {
		w.used++
		return true
	}
	return false
}

// cooldownLimiter spaces grants at least one period apart. A burst-1 token
// bucket refilling once per period is exactly that spacing guarantee.
type cooldownLimiter struct {
	limiter *rate.Limiter
}

func newCooldownLimiter(period time.Duration) *cooldownLimiter {
	return &cooldownLimiter{
		limiter: rate.NewLimiter(rate.Every(period), 1),
	}
}

func (c *cooldownLimiter) Acquire(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

func (c *cooldownLimiter) TryAcquire() bool {
	return c.limiter.Allow()
}

// unlimitedLimiter is the Disabled policy. Grants are free.
type unlimitedLimiter struct{}

func (unlimitedLimiter) Acquire(ctx context.Context) error {
	return ctx.Err()
}

func (unlimitedLimiter) TryAcquire() bool {
	return true
}

// newLimiter builds the limiter implementing a policy. The policy must have
// passed Validate.
func newLimiter(p Policy) Limiter {
	switch {
	case p.Disabled:
		return unlimitedLimiter{}
	case p.Cooldown:
		return newCooldownLimiter(p.Period)
	default:
		return newWindowLimiter(p.Calls, p.Period)
	}
}
