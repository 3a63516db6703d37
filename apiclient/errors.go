package apiclient

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Send when the client has been closed.
	ErrClosed = errors.New("apiclient: client is closed")

	// ErrInvalidRequest is returned when a request was constructed from
	// nil or otherwise unusable inputs. No I/O is performed.
	ErrInvalidRequest = errors.New("apiclient: invalid request")

	// ErrRateLimited is returned when a send is rejected by the
	// client-side rate limiter in fail-fast mode.
	ErrRateLimited = errors.New("apiclient: rate limit exceeded")
)

// StatusError reports a non-2xx response surfaced by EnsureSuccess or SendAs.
type StatusError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Status is the full status line, e.g. "404 Not Found".
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apiclient: unexpected status %s", e.Status)
}

// DecodeError reports a response body that could not be decoded into the
// caller's target type.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("apiclient: decode response body: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TokenError reports a failed OAuth2 client-credentials token acquisition.
// It is fatal to the send that triggered the refresh; an incomplete OAuth2
// configuration is not a TokenError (the send proceeds unauthenticated).
type TokenError struct {
	// StatusCode is the token endpoint's HTTP status, or 0 when the
	// request never completed.
	StatusCode int

	Err error
}

func (e *TokenError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("apiclient: oauth2 token acquisition failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("apiclient: oauth2 token acquisition failed: %v", e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }
