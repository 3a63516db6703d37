package apiclient

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// logRequest logs one outgoing attempt at debug level.
func logRequest(logger zerolog.Logger, req *http.Request) {
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("host", req.Host).
		Int64("content_length", req.ContentLength).
		Msg("HTTP request")
}

// logResponse logs one received attempt at debug level.
func logResponse(logger zerolog.Logger, resp *Response, duration time.Duration) {
	logger.Debug().
		Int("status", resp.StatusCode).
		Str("status_text", resp.Status).
		Dur("duration", duration).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")
}
