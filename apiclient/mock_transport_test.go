package apiclient

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransport(t *testing.T) {
	newReq := func(method, url string) *http.Request {
		req, err := http.NewRequest(method, url, nil)
		require.NoError(t, err)
		return req
	}

	t.Run("given default reply, then returned with full status line", func(t *testing.T) {
		mt := NewMockTransport().RespondWith(404, `missing`)

		resp, err := mt.RoundTrip(newReq("GET", "https://api.example.com/x"))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, "404 Not Found", resp.Status)
	})

	t.Run("given queue, then consumed before default in fifo order", func(t *testing.T) {
		mt := NewMockTransport().
			Enqueue(500, `first`).
			Enqueue(200, `second`).
			RespondWith(204, ``)

		resp, err := mt.RoundTrip(newReq("GET", "https://api.example.com/x"))
		require.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)

		resp, err = mt.RoundTrip(newReq("GET", "https://api.example.com/x"))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		resp, err = mt.RoundTrip(newReq("GET", "https://api.example.com/x"))
		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode)
	})

	t.Run("given matcher, then applies to matching requests only", func(t *testing.T) {
		mt := NewMockTransport().
			RespondTo(func(r *http.Request) bool {
				return strings.HasPrefix(r.URL.Path, "/users/")
			}, 200, `{"id":1}`).
			RespondWith(404, `missing`)

		resp, err := mt.RoundTrip(newReq("GET", "https://api.example.com/users/1"))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		resp, err = mt.RoundTrip(newReq("GET", "https://api.example.com/items/1"))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})

	t.Run("given no rules, then round trip errors", func(t *testing.T) {
		mt := NewMockTransport()
		_, err := mt.RoundTrip(newReq("GET", "https://api.example.com/x"))
		assert.Error(t, err)
	})

	t.Run("given error reply, then error surfaces", func(t *testing.T) {
		boom := errors.New("boom")
		mt := NewMockTransport().FailWith(boom)
		_, err := mt.RoundTrip(newReq("GET", "https://api.example.com/x"))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("given traffic, then requests recorded until reset", func(t *testing.T) {
		mt := NewMockTransport().RespondWith(200, `ok`)

		_, err := mt.RoundTrip(newReq("GET", "https://api.example.com/a"))
		require.NoError(t, err)
		_, err = mt.RoundTrip(newReq("POST", "https://api.example.com/b"))
		require.NoError(t, err)

		assert.Equal(t, 2, mt.RequestCount())
		assert.Equal(t, "/b", mt.LastRequest().URL.Path)
		assert.Len(t, mt.Requests(), 2)

		mt.Reset()
		assert.Equal(t, 0, mt.RequestCount())
		assert.Nil(t, mt.LastRequest())
	})
}
