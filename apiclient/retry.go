package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newRetryBackOff builds the wait strategy for one send: a fresh strategy
// per sequence, fixed interval or exact doubling depending on the config.
// Randomization is off so the wait before retry n is deterministic.
func newRetryBackOff(cfg RetryConfig) backoff.BackOff {
	delay := cfg.Delay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	if !cfg.Exponential {
		return backoff.NewConstantBackOff(delay)
	}

	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     delay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
	}
	b.Reset()
	return b
}

// sendAttempts drives the retry state machine: attempts 0..=MaxRetries,
// each building a fresh transport request, with a cancellable backoff wait
// between retryable failures. The last 5xx of an exhausted sequence is
// returned as a normal Response; an exhausted sequence that never produced
// a response surfaces the last transport error.
func (c *Client) sendAttempts(ctx context.Context, req *Request, targetURL string, header http.Header) (*Response, error) {
	bo := newRetryBackOff(c.cfg.Retry)
	maxRetries := c.cfg.Retry.MaxRetries
	start := time.Now()

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, outcome, err := c.attemptOnce(ctx, req, targetURL, header)

		switch outcome {
		case outcomeFatal:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err

		case outcomeSuccess:
			resp.Duration = time.Since(start)
			return resp, nil
		}

		// Retryable failure.
		lastErr = err
		if attempt == maxRetries {
			c.tel.recordRetryExhausted(ctx)
			if resp != nil {
				resp.Duration = time.Since(start)
				return resp, nil
			}
			return nil, fmt.Errorf("apiclient: %d attempts failed: %w", attempt+1, lastErr)
		}

		delay := bo.NextBackOff()
		c.tel.recordRetryAttempt(ctx, attempt+1, delay, err)
		c.log.Debug().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("retrying request")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// attemptOnce issues one transport exchange and materializes the response
// eagerly. The returned error is non-nil only for transport-level or fatal
// failures; a received 5xx comes back as a Response with outcomeRetryable.
func (c *Client) attemptOnce(ctx context.Context, req *Request, targetURL string, header http.Header) (*Response, attemptOutcome, error) {
	// A request-level timeout replaces the service default entirely, so
	// it may extend the window as well as tighten it.
	timeout := c.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	httpReq, err := c.newHTTPRequest(attemptCtx, req, targetURL, header)
	if err != nil {
		return nil, outcomeFatal, err
	}

	if c.debug {
		logRequest(c.log, httpReq)
	}

	attemptStart := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyAttempt(ctx, 0, err), err
	}

	resp, err := newResponse(httpResp)
	if err != nil {
		// Failure while draining the body is a transport failure.
		return nil, classifyAttempt(ctx, 0, err), err
	}

	if c.debug {
		logResponse(c.log, resp, time.Since(attemptStart))
	}

	if outcome := classifyAttempt(ctx, resp.StatusCode, nil); outcome != outcomeSuccess {
		return resp, outcome, fmt.Errorf("apiclient: server error %s", resp.Status)
	}
	return resp, outcomeSuccess, nil
}

// newHTTPRequest builds the transport request for one attempt with a
// fresh body reader.
func (c *Client) newHTTPRequest(ctx context.Context, req *Request, targetURL string, header http.Header) (*http.Request, error) {
	var body *bytes.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	var httpReq *http.Request
	var err error
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, targetURL, body)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, targetURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	httpReq.Header = header.Clone()
	if req.ContentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	return httpReq, nil
}
