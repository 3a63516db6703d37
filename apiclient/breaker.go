package apiclient

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the optional circuit breaker wrapped around
// each send. Server errors and transport failures count against the
// breaker; an open breaker rejects sends with gobreaker.ErrOpenState.
type BreakerConfig struct {
	// MaxRequests is the number of probe requests allowed while the
	// breaker is half-open.
	MaxRequests uint32

	// Interval is the cyclic period for clearing counts while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker when reached. Zero disables
	// this criterion.
	ConsecutiveFailures uint32

	// FailureRatio trips the breaker when the failure ratio over at
	// least MinRequests requests reaches this value. Zero disables it.
	FailureRatio float64

	// MinRequests is the minimum sample size before FailureRatio is
	// evaluated.
	MinRequests uint32

	// OnStateChange is invoked on breaker state transitions.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig trips after 5 consecutive failures or a 60%
// failure ratio over at least 10 requests, staying open for 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.6,
		MinRequests:         10,
	}
}

// errBreakerFailure signals the breaker that a send failed even though it
// produced a response (a 5xx after retries). It is unwrapped before the
// response is returned to the caller.
var errBreakerFailure = errors.New("apiclient: breaker failure")

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[*Response] {
	if name == "" {
		name = "apiclient"
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && counts.Requests >= cfg.MinRequests && counts.Requests > 0 {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= cfg.FailureRatio
			}
			return false
		},
		OnStateChange: cfg.OnStateChange,
	}
	return gobreaker.NewCircuitBreaker[*Response](settings)
}

// protectedSend routes a send through the breaker when one is configured.
func (c *Client) protectedSend(send func() (*Response, error)) (*Response, error) {
	if c.breaker == nil {
		return send()
	}

	resp, err := c.breaker.Execute(func() (*Response, error) {
		resp, err := send()
		if err != nil {
			return nil, err
		}
		if resp.IsServerError() {
			return resp, errBreakerFailure
		}
		return resp, nil
	})
	if err != nil {
		// A 5xx fed the breaker but is still a completed exchange for
		// the caller.
		if errors.Is(err, errBreakerFailure) && resp != nil {
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}
