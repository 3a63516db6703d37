package apiclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
)

// attemptOutcome classifies one attempt for the retry engine. The loop
// evaluates outcomes and converts them to a returned error only after the
// final attempt is decided.
type attemptOutcome int

const (
	// outcomeSuccess ends the sequence: the response (2xx, 3xx or 4xx)
	// is handed to the caller. Client errors are never retried.
	outcomeSuccess attemptOutcome = iota

	// outcomeRetryable covers all transport failures (DNS, refused
	// connections, TLS handshakes, timeouts not caused by the caller)
	// and server errors (>= 500).
	outcomeRetryable

	// outcomeFatal covers caller cancellation and requests the transport
	// cannot even build; it propagates immediately, skipping backoff and
	// further attempts.
	outcomeFatal
)

// classifyAttempt decides the outcome of one attempt. ctx is the caller's
// context, not the per-attempt one, so the client's own attempt deadline
// reads as a retryable timeout while caller cancellation is fatal.
func classifyAttempt(ctx context.Context, statusCode int, err error) attemptOutcome {
	if ctx.Err() != nil {
		return outcomeFatal
	}

	if err != nil {
		return outcomeRetryable
	}

	if statusCode >= http.StatusInternalServerError {
		return outcomeRetryable
	}
	return outcomeSuccess
}

// isRetryableNetworkError reports errors that are typically transient.
// Purely diagnostic: retry telemetry uses it to label the retry reason.
func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF)
}
