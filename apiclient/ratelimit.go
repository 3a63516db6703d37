package apiclient

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures client-side rate limiting. The limiter gates
// whole sends, not individual retry attempts.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained send rate.
	RequestsPerSecond float64

	// Burst is the number of sends allowed in a brief spike above the
	// sustained rate.
	Burst int

	// WaitOnLimit selects the behavior at the limit: wait for a token
	// (respecting the context) or fail fast with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig allows 100 sends per second with a burst of 10,
// waiting when the limit is hit.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

func newRateLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
}

// awaitRateLimit blocks or rejects per the configured policy.
func (c *Client) awaitRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if c.limiterWait {
		if err := c.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return ErrRateLimited
		}
		return nil
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}
