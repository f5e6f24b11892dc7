package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key prefix for shared window counters.
const redisKeyPrefix = "callhub:rate_limit:"

// SharedWindow is a fixed-window limiter whose counter lives in Redis, so
// several processes talking to the same CallHub account stay jointly inside
// the account budget. Redis serializes the counter increments, which keeps
// the per-window grant count exact across processes.
//
// Redis failures surface as Acquire errors rather than silently bypassing
// the limit.
type SharedWindow struct {
	redis  *redis.Client
	key    string
	calls  int
	period time.Duration
	logger zerolog.Logger
}

// NewSharedWindow creates a Redis-backed window limiter for class. Cooldown
// policies are treated as single-call windows.
func NewSharedWindow(redisClient *redis.Client, class Class, policy Policy, logger zerolog.Logger) (*SharedWindow, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client must not be nil")
	}
	if class == "" {
		return nil, fmt.Errorf("operation class must not be empty")
	}
	if policy.Disabled {
		return nil, fmt.Errorf("shared window for class %q: policy is disabled", class)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("shared window for class %q: %w", class, err)
	}

	calls := policy.Calls
	if policy.Cooldown {
		calls = 1
	}

	return &SharedWindow{
		redis:  redisClient,
		key:    redisKeyPrefix + string(class),
		calls:  calls,
		period: policy.Period,
		logger: logger,
	}, nil
}

// Acquire blocks until the shared window grants one call or ctx is cancelled.
func (s *SharedWindow) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		granted, wait, err := s.tryOnce(ctx)
		if err != nil {
			return err
		}
		if granted {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire consumes a grant if the shared window has one available now.
// Redis errors are reported as a failed acquire.
func (s *SharedWindow) TryAcquire() bool {
	granted, _, err := s.tryOnce(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Shared window check failed")
		return false
	}
	return granted
}

// tryOnce performs one atomic check-and-increment against Redis. When the
// window is full it returns the time to wait before the next attempt.
func (s *SharedWindow) tryOnce(ctx context.Context) (granted bool, wait time.Duration, err error) {
	count, err := s.redis.Incr(ctx, s.key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("increment shared window counter: %w", err)
	}

	// The first increment after expiry anchors the new window.
	if count == 1 {
		if err := s.redis.PExpire(ctx, s.key, s.period).Err(); err != nil {
			return false, 0, fmt.Errorf("anchor shared window expiry: %w", err)
		}
	}

	if count <= int64(s.calls) {
		return true, 0, nil
	}

	ttl, err := s.redis.PTTL(ctx, s.key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("read shared window expiry: %w", err)
	}

	switch {
	case ttl == -2*time.Millisecond:
		// Key expired between INCR and PTTL, retry immediately.
		return false, time.Millisecond, nil
	case ttl < 0:
		// Counter without expiry, left behind by a process that died between
		// INCR and PEXPIRE. Repair the anchor and wait a full period.
		if err := s.redis.PExpire(ctx, s.key, s.period).Err(); err != nil {
			return false, 0, fmt.Errorf("repair shared window expiry: %w", err)
		}
		s.logger.Warn().Str("key", s.key).Msg("Repaired shared window counter without expiry")
		return false, s.period, nil
	default:
		return false, ttl, nil
	}
}
