package apiclient

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Breaker(t *testing.T) {
	t.Run("given consecutive server errors, then breaker opens", func(t *testing.T) {
		var transitions atomic.Int32

		mt := NewMockTransport()
		mt.RespondWith(500, `boom`)
		client := newTestClient(t, mt,
			WithRetry(RetryConfig{MaxRetries: 0}),
			WithBreaker(BreakerConfig{
				MaxRequests:         1,
				Timeout:             time.Minute,
				ConsecutiveFailures: 3,
				OnStateChange: func(name string, from, to gobreaker.State) {
					transitions.Add(1)
				},
			}),
		)

		for i := 0; i < 3; i++ {
			resp, err := client.Send(Get("/broken"))
			require.NoError(t, err, "a 5xx is still a completed exchange")
			assert.Equal(t, 500, resp.StatusCode)
		}

		_, err := client.Send(Get("/broken"))
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, 3, mt.RequestCount(), "open breaker must not reach the transport")
		assert.Positive(t, transitions.Load())
	})

	t.Run("given healthy responses, then breaker stays closed", func(t *testing.T) {
		mt := NewMockTransport()
		mt.RespondWith(200, `ok`)
		client := newTestClient(t, mt, WithBreaker(DefaultBreakerConfig()))

		for i := 0; i < 10; i++ {
			resp, err := client.Send(Get("/healthy"))
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		}
		assert.Equal(t, 10, mt.RequestCount())
	})

	t.Run("given transport failures, then breaker counts them", func(t *testing.T) {
		mt := NewMockTransport()
		mt.FailWith(errors.New("connection dropped"))
		client := newTestClient(t, mt,
			WithRetry(RetryConfig{MaxRetries: 0}),
			WithBreaker(BreakerConfig{MaxRequests: 1, Timeout: time.Minute, ConsecutiveFailures: 2}),
		)

		for i := 0; i < 2; i++ {
			_, err := client.Send(Get("/down"))
			require.Error(t, err)
		}

		_, err := client.Send(Get("/down"))
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	})

	t.Run("given 4xx, then breaker unaffected", func(t *testing.T) {
		mt := NewMockTransport()
		mt.RespondWith(404, `missing`)
		client := newTestClient(t, mt, WithBreaker(BreakerConfig{
			MaxRequests:         1,
			Timeout:             time.Minute,
			ConsecutiveFailures: 2,
		}))

		for i := 0; i < 5; i++ {
			resp, err := client.Send(Get("/nope"))
			require.NoError(t, err)
			assert.Equal(t, 404, resp.StatusCode)
		}
		assert.Equal(t, 5, mt.RequestCount())
	})
}
