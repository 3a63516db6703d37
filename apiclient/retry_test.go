package apiclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mt *MockTransport, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL("https://api.example.com"),
		WithTransport(mt),
		WithRetry(RetryConfig{MaxRetries: 3, Delay: time.Millisecond}),
	}, opts...)
	client, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewRetryBackOff(t *testing.T) {
	t.Run("given exponential config, then delays double exactly", func(t *testing.T) {
		bo := newRetryBackOff(RetryConfig{
			MaxRetries:  3,
			Delay:       100 * time.Millisecond,
			Exponential: true,
			MaxDelay:    30 * time.Second,
		})

		assert.Equal(t, 100*time.Millisecond, bo.NextBackOff())
		assert.Equal(t, 200*time.Millisecond, bo.NextBackOff())
		assert.Equal(t, 400*time.Millisecond, bo.NextBackOff())
	})

	t.Run("given exponential config with cap, then delay saturates", func(t *testing.T) {
		bo := newRetryBackOff(RetryConfig{
			Delay:       100 * time.Millisecond,
			Exponential: true,
			MaxDelay:    250 * time.Millisecond,
		})

		assert.Equal(t, 100*time.Millisecond, bo.NextBackOff())
		assert.Equal(t, 200*time.Millisecond, bo.NextBackOff())
		assert.Equal(t, 250*time.Millisecond, bo.NextBackOff())
		assert.Equal(t, 250*time.Millisecond, bo.NextBackOff())
	})

	t.Run("given fixed config, then delay is constant", func(t *testing.T) {
		bo := newRetryBackOff(RetryConfig{Delay: 150 * time.Millisecond})

		for i := 0; i < 4; i++ {
			assert.Equal(t, 150*time.Millisecond, bo.NextBackOff())
		}
	})

	t.Run("given zero delay, then default applies", func(t *testing.T) {
		bo := newRetryBackOff(RetryConfig{})
		assert.Equal(t, 500*time.Millisecond, bo.NextBackOff())
	})
}

func TestClient_Retry_ServerErrors(t *testing.T) {
	t.Run("given persistent 503, then all attempts spent and last response returned", func(t *testing.T) {
		mt := NewMockTransport()
		mt.RespondWith(503, `unavailable`)
		client := newTestClient(t, mt)

		resp, err := client.Send(Get("/flaky"))
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, "unavailable", resp.BodyText())
		assert.Equal(t, 4, mt.RequestCount(), "initial attempt plus three retries")
	})

	t.Run("given 500 then 200, then second attempt wins", func(t *testing.T) {
		mt := NewMockTransport()
		mt.Enqueue(500, `boom`)
		mt.Enqueue(200, `recovered`)
		client := newTestClient(t, mt)

		resp, err := client.Send(Get("/flaky"))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "recovered", resp.BodyText())
		assert.Equal(t, 2, mt.RequestCount())
	})

	t.Run("given 404, then no retry and response returned", func(t *testing.T) {
		mt := NewMockTransport()
		mt.RespondWith(404, `missing`)
		client := newTestClient(t, mt)

		resp, err := client.Send(Get("/nope"))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, 1, mt.RequestCount())
	})

	t.Run("given retries disabled, then single attempt", func(t *testing.T) {
		mt := NewMockTransport()
		mt.RespondWith(502, `bad gateway`)
		client := newTestClient(t, mt, WithRetry(RetryConfig{MaxRetries: 0}))

		resp, err := client.Send(Get("/flaky"))
		require.NoError(t, err)
		assert.Equal(t, 502, resp.StatusCode)
		assert.Equal(t, 1, mt.RequestCount())
	})
}

func TestClient_Retry_BackoffWaits(t *testing.T) {
	t.Run("given exponential delays, then attempts are actually spaced out", func(t *testing.T) {
		mt := NewMockTransport()
		mt.Enqueue(503, `unavailable`)
		mt.Enqueue(503, `unavailable`)
		mt.Enqueue(200, `ok`)
		client := newTestClient(t, mt, WithRetry(RetryConfig{
			MaxRetries:  2,
			Delay:       50 * time.Millisecond,
			Exponential: true,
		}))

		start := time.Now()
		resp, err := client.Send(Get("/flaky"))
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 3, mt.RequestCount())
		// Waits of 50ms and 100ms precede the second and third attempts.
		assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
		assert.GreaterOrEqual(t, resp.Duration, 150*time.Millisecond)
	})
}

func TestClient_Retry_TransportErrors(t *testing.T) {
	t.Run("given transient failures then success, then request recovers", func(t *testing.T) {
		mt := NewMockTransport()
		mt.EnqueueError(syscall.ECONNRESET)
		mt.EnqueueError(syscall.ECONNREFUSED)
		mt.Enqueue(200, `ok`)
		client := newTestClient(t, mt)

		resp, err := client.Send(Get("/spotty"))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 3, mt.RequestCount())
	})

	t.Run("given only transport failures, then last error surfaces", func(t *testing.T) {
		mt := NewMockTransport()
		mt.FailWith(syscall.ECONNREFUSED)
		client := newTestClient(t, mt)

		resp, err := client.Send(Get("/down"))
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, syscall.ECONNREFUSED)
		assert.Equal(t, 4, mt.RequestCount())
	})

	t.Run("given handshake failure then success, then retry recovers", func(t *testing.T) {
		mt := NewMockTransport()
		mt.EnqueueError(errors.New("remote error: tls: handshake failure"))
		mt.Enqueue(200, `ok`)
		client := newTestClient(t, mt, WithRetry(RetryConfig{MaxRetries: 2, Delay: time.Millisecond}))

		resp, err := client.Send(Get("/secure"))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 2, mt.RequestCount())
	})

	t.Run("given unresolvable host, then retried until exhaustion", func(t *testing.T) {
		mt := NewMockTransport()
		mt.FailWith(&net.DNSError{Err: "no such host", Name: "gone.example.com", IsNotFound: true})
		client := newTestClient(t, mt)

		_, err := client.Send(Get("/x"))
		require.Error(t, err)
		assert.Equal(t, 4, mt.RequestCount())
	})
}

func TestClient_Retry_Cancellation(t *testing.T) {
	t.Run("given cancellation during backoff, then no further attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		mt := NewMockTransport()
		mt.RespondWith(503, `unavailable`)
		mt.OnRequest(func(*http.Request) { cancel() })
		client := newTestClient(t, mt, WithRetry(RetryConfig{MaxRetries: 3, Delay: time.Minute}))

		start := time.Now()
		_, err := client.SendContext(ctx, Get("/slow"))
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, mt.RequestCount())
		assert.Less(t, time.Since(start), time.Second, "must not sit out the backoff delay")
	})

	t.Run("given cancelled context up front, then no attempt issued", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		mt := NewMockTransport()
		mt.RespondWith(200, `ok`)
		client := newTestClient(t, mt)

		_, err := client.SendContext(ctx, Get("/never"))
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, mt.RequestCount())
	})
}

func TestClassifyAttempt(t *testing.T) {
	background := context.Background()

	tests := []struct {
		name   string
		ctx    context.Context
		status int
		err    error
		want   attemptOutcome
	}{
		{name: "given 200, then success", ctx: background, status: 200, want: outcomeSuccess},
		{name: "given 404, then success", ctx: background, status: 404, want: outcomeSuccess},
		{name: "given 500, then retryable", ctx: background, status: 500, want: outcomeRetryable},
		{name: "given 503, then retryable", ctx: background, status: 503, want: outcomeRetryable},
		{name: "given connection reset, then retryable", ctx: background, err: syscall.ECONNRESET, want: outcomeRetryable},
		{name: "given certificate error, then retryable", ctx: background, err: errors.New("x509: certificate signed by unknown authority"), want: outcomeRetryable},
		{name: "given dns not found, then retryable", ctx: background, err: &net.DNSError{Err: "no such host", IsNotFound: true}, want: outcomeRetryable},
		{name: "given cancelled caller, then fatal", ctx: cancelledContext(), status: 200, want: outcomeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyAttempt(tt.ctx, tt.status, tt.err))
		})
	}
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
