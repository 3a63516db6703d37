package apiclient

import (
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// Response captures one completed HTTP exchange. The body is read eagerly
// when the response is built, so a Response carries no open resources and
// is safe to keep, share and inspect after the client moves on.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Status is the full status line, e.g. "200 OK".
	Status string

	// Headers combines the transport-level response headers and any
	// trailers received after the body.
	Headers http.Header

	// BodyBytes is the fully materialized response body.
	BodyBytes []byte

	// ContentType is the Content-Type header value, if any.
	ContentType string

	// ContentLength is the body length derived from the response.
	ContentLength int64

	// Duration is the wall-clock time of the whole send, from before the
	// first attempt to after the final attempt. Retries and backoff waits
	// are included.
	Duration time.Duration
}

// newResponse materializes a Response from the transport's response,
// consuming and closing the body.
func newResponse(httpResp *http.Response) (*Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, err
	}

	headers := httpResp.Header.Clone()
	for k, vs := range httpResp.Trailer {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}

	length := httpResp.ContentLength
	if length < 0 {
		length = int64(len(body))
	}

	return &Response{
		StatusCode:    httpResp.StatusCode,
		Status:        httpResp.Status,
		Headers:       headers,
		BodyBytes:     body,
		ContentType:   headers.Get("Content-Type"),
		ContentLength: length,
	}, nil
}

// BodyText returns the response body as a string.
func (r *Response) BodyText() string { return string(r.BodyBytes) }

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsClientError reports whether the status code is in the 4xx range.
func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// IsServerError reports whether the status code is in the 5xx range.
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// DecodeJSON parses the body as JSON into v. A malformed body or a shape
// mismatch yields a *DecodeError.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.BodyBytes, v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// EnsureSuccess returns a *StatusError unless the status code is 2xx.
func (r *Response) EnsureSuccess() error {
	if r.IsSuccess() {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, Status: r.Status}
}
