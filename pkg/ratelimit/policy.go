// Package ratelimit implements per-class client-side rate limiting for the
// CallHub API. CallHub enforces account-wide call budgets and punishes
// violations with a temporary account lockout, so every remote call must
// acquire a grant for its operation class before it is dispatched.
package ratelimit

import (
	"fmt"
	"time"
)

// Class names an operation class. All operations sharing a class share one
// grant budget.
type Class string

// Policy describes how grants for one operation class are issued.
type Policy struct {
	// Calls is the number of grants allowed per window.
	Calls int

	// Period is the window length, or the spacing between grants for
	// cooldown policies.
	Period time.Duration

	// Cooldown issues at most one grant per Period, measured from the
	// previous grant, instead of counting grants inside a fixed window.
	Cooldown bool

	// Disabled bypasses limiting entirely. Acquire returns immediately.
	Disabled bool
}

// Window returns a policy allowing calls grants per period. The window is
// anchored at the first grant after a reset; the window's excess callers are
// delayed until the boundary.
func Window(calls int, period time.Duration) Policy {
	return Policy{Calls: calls, Period: period}
}

// Cooldown returns a policy allowing a single grant per period. Consecutive
// grants are never issued closer together than period.
func Cooldown(period time.Duration) Policy {
	return Policy{Calls: 1, Period: period, Cooldown: true}
}

// Unlimited returns a policy that never delays. Used to switch limiting off
// for trusted environments and tests.
func Unlimited() Policy {
	return Policy{Disabled: true}
}

// Validate checks that the policy is well-formed.
func (p Policy) Validate() error {
	if p.Disabled {
		return nil
	}
	if p.Period <= 0 {
		return fmt.Errorf("policy period must be positive, got %v", p.Period)
	}
	if !p.Cooldown && p.Calls <= 0 {
		return fmt.Errorf("policy calls must be positive, got %d", p.Calls)
	}
	return nil
}

// String returns a human-readable policy description for logs.
func (p Policy) String() string {
	switch {
	case p.Disabled:
		return "unlimited"
	case p.Cooldown:
		return fmt.Sprintf("cooldown %v", p.Period)
	default:
		return fmt.Sprintf("%d per %v", p.Calls, p.Period)
	}
}
