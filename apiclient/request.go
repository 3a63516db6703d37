package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// QueryParam is a single query-string pair. Parameters are kept as an
// ordered list so URL assembly appends them in the order they were added.
type QueryParam struct {
	Key   string
	Value string
}

// Request describes one HTTP call: method, URL or path, query parameters,
// headers and body. Build one with a verb factory and the With* mutators:
//
//	req := apiclient.Get("/users/42").
//	    WithQuery("expand", "roles").
//	    WithHeader("Accept", "application/json")
//
// Constructing a Request never performs I/O. The value is treated as
// immutable once handed to Send; mutators return the same instance for
// chaining.
type Request struct {
	Method string `validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`

	// URL is either absolute (used verbatim) or a path resolved against
	// the client's base URL at send time.
	URL string `validate:"required"`

	Query  []QueryParam
	Header http.Header

	Body        []byte
	ContentType string

	// Timeout overrides the client's default timeout for this request.
	// Zero means use the client default.
	Timeout time.Duration

	// err holds the first construction error; surfaced by validate()
	// before any I/O happens.
	err error
}

func newRequest(method, rawURL string) *Request {
	return &Request{
		Method: method,
		URL:    rawURL,
		Header: make(http.Header),
	}
}

// Get builds a GET request for the given URL or path.
func Get(rawURL string) *Request { return newRequest(http.MethodGet, rawURL) }

// Post builds a POST request with a JSON body. Pass nil for no body.
func Post(rawURL string, body any) *Request {
	return newRequest(http.MethodPost, rawURL).WithJSONBody(body)
}

// Put builds a PUT request with a JSON body. Pass nil for no body.
func Put(rawURL string, body any) *Request {
	return newRequest(http.MethodPut, rawURL).WithJSONBody(body)
}

// Patch builds a PATCH request with a JSON body. Pass nil for no body.
func Patch(rawURL string, body any) *Request {
	return newRequest(http.MethodPatch, rawURL).WithJSONBody(body)
}

// Delete builds a DELETE request for the given URL or path.
func Delete(rawURL string) *Request { return newRequest(http.MethodDelete, rawURL) }

// Head builds a HEAD request for the given URL or path.
func Head(rawURL string) *Request { return newRequest(http.MethodHead, rawURL) }

// Options builds an OPTIONS request for the given URL or path.
func Options(rawURL string) *Request { return newRequest(http.MethodOptions, rawURL) }

// WithQuery appends a query parameter. Parameters already embedded in the
// URL are preserved; appended parameters follow them in insertion order.
func (r *Request) WithQuery(key, value string) *Request {
	if key == "" {
		return r.fail("query key must not be empty")
	}
	r.Query = append(r.Query, QueryParam{Key: key, Value: value})
	return r
}

// WithHeader adds a request header. Request headers take precedence over
// the client's default headers for the same name.
func (r *Request) WithHeader(name, value string) *Request {
	if name == "" {
		return r.fail("header name must not be empty")
	}
	r.Header.Add(name, value)
	return r
}

// WithTimeout overrides the client's timeout for this request.
func (r *Request) WithTimeout(d time.Duration) *Request {
	if d < 0 {
		return r.fail("timeout must not be negative")
	}
	r.Timeout = d
	return r
}

// WithBinaryBody sets a raw byte payload and its content type.
func (r *Request) WithBinaryBody(body []byte, contentType string) *Request {
	if body == nil {
		return r.fail("binary body must not be nil")
	}
	r.Body = body
	r.ContentType = contentType
	return r
}

// WithFormBody sets an application/x-www-form-urlencoded payload.
func (r *Request) WithFormBody(form map[string]string) *Request {
	if form == nil {
		return r.fail("form body must not be nil")
	}
	values := make(url.Values, len(form))
	for k, v := range form {
		values.Set(k, v)
	}
	r.Body = []byte(values.Encode())
	r.ContentType = "application/x-www-form-urlencoded"
	return r
}

// WithJSONBody marshals v as the JSON payload. A nil v leaves the request
// without a body.
func (r *Request) WithJSONBody(v any) *Request {
	if v == nil {
		return r
	}
	data, err := json.Marshal(v)
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("%w: encode json body: %v", ErrInvalidRequest, err)
		}
		return r
	}
	r.Body = data
	r.ContentType = "application/json"
	return r
}

func (r *Request) fail(msg string) *Request {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
	}
	return r
}

func (r *Request) validate() error {
	if r.err != nil {
		return r.err
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// isAbsolute reports whether the request URL carries its own scheme.
func (r *Request) isAbsolute() bool {
	u, err := url.Parse(r.URL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// assembleURL produces the final URL for the request: the absolute URL or
// the path resolved against baseURL, with builder-added and extra query
// parameters appended in order. Pure and deterministic; query already
// present in the URL is kept in place.
func (r *Request) assembleURL(baseURL string, extra []QueryParam) (string, error) {
	raw := r.URL
	if !r.isAbsolute() {
		if baseURL == "" {
			return "", fmt.Errorf("%w: relative url %q with no base url configured", ErrInvalidRequest, r.URL)
		}
		raw = strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(raw, "/")
	}

	for _, p := range append(append([]QueryParam{}, r.Query...), extra...) {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		raw += sep + url.QueryEscape(p.Key) + "=" + url.QueryEscape(p.Value)
	}
	return raw, nil
}
