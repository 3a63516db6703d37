package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Client is an HTTP API client with authentication-mode dispatch, retries
// with backoff, OAuth2 token caching and OpenTelemetry instrumentation.
//
//	client, err := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithServiceName("billing"),
//	    apiclient.WithAuth(apiclient.AuthConfig{
//	        Mode:        apiclient.AuthBearer,
//	        BearerToken: token,
//	    }),
//	)
//
//	resp, err := client.SendContext(ctx, apiclient.Get("/invoices/42"))
//
// A Client is safe for concurrent use. The transport and the OAuth2 token
// cache are shared across sends; everything else is per call.
type Client struct {
	cfg Config
	log zerolog.Logger

	httpClient *http.Client

	// ownedTransport is non-nil only when the client built the transport
	// itself; Close releases it exactly once. Externally supplied
	// transports are never closed.
	ownedTransport *http.Transport

	auth   *authenticator
	tokens *tokenCache

	limiter     *rate.Limiter
	limiterWait bool
	breaker     *gobreaker.CircuitBreaker[*Response]
	inflight    singleflight.Group
	coalesce    bool

	requestID bool
	debug     bool

	tel *telemetry

	closed atomic.Bool
}

// New builds a Client from the supplied options. The transport is built
// once here and reused by every send; construction fails only on an
// unusable configuration (for example an unreadable client certificate).
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{
		cfg:       o.cfg,
		log:       o.logger,
		coalesce:  o.coalesce,
		requestID: o.requestID,
		debug:     o.debug,
		tel:       newTelemetry(o.tracerProvider, o.meterProvider, o.serviceName),
	}

	transport := o.transport
	if transport == nil {
		owned, err := buildTransport(o.cfg, o.tlsConfig, o.logger)
		if err != nil {
			return nil, err
		}
		c.ownedTransport = owned
		transport = owned
	}

	// The attempt deadline is a per-attempt context derived in the retry
	// engine, so a request-level timeout can override the service default
	// in either direction. http.Client.Timeout would always win and is
	// left unset.
	c.httpClient = &http.Client{
		Transport:     transport,
		CheckRedirect: redirectPolicy(o.cfg),
	}

	if o.cfg.Auth.Mode == AuthOAuth2 {
		c.tokens = newTokenCache(o.cfg.Auth, o.logger, o.cfg.InsecureSkipVerify, o.now)
		c.tokens.onRefresh = c.tel.recordTokenRefresh
	}
	c.auth = newAuthenticator(o.cfg.Auth, o.logger, c.tokens)

	if o.rateLimit != nil {
		c.limiter = newRateLimiter(*o.rateLimit)
		c.limiterWait = o.rateLimit.WaitOnLimit
	}
	if o.breaker != nil {
		c.breaker = newBreaker(o.serviceName, *o.breaker)
	}

	return c, nil
}

// Send executes the request with a background context. See SendContext.
func (c *Client) Send(req *Request) (*Response, error) {
	return c.SendContext(context.Background(), req)
}

// SendContext executes the request: it assembles the URL, decorates the
// request per the configured authentication mode, and drives the retry
// engine. The returned Response covers the whole exchange, 4xx and 5xx
// included; errors are reserved for transport, cancellation, argument and
// token-acquisition failures.
func (c *Client) SendContext(ctx context.Context, req *Request) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	targetURL, err := req.assembleURL(c.cfg.BaseURL, c.auth.queryParams())
	if err != nil {
		return nil, err
	}

	ctx, span := c.tel.startSpan(ctx, req.Method, targetURL)
	defer span.End()

	start := time.Now()
	resp, err := c.dispatch(ctx, req, targetURL)
	c.tel.recordSend(ctx, span, resp, err, time.Since(start))
	return resp, err
}

// dispatch layers the optional wrappers around the retry engine: rate
// limit gate, coalescing, circuit breaker.
func (c *Client) dispatch(ctx context.Context, req *Request, targetURL string) (*Response, error) {
	if err := c.awaitRateLimit(ctx); err != nil {
		return nil, err
	}

	return c.coalescedSend(ctx, req, targetURL, func() (*Response, error) {
		return c.protectedSend(func() (*Response, error) {
			header, err := c.buildHeader(ctx, req)
			if err != nil {
				return nil, err
			}
			return c.sendAttempts(ctx, req, targetURL, header)
		})
	})
}

// buildHeader merges default and request headers and applies the
// authentication decoration. Request headers override same-named defaults;
// OAuth2 token acquisition may block here on a cache miss.
func (c *Client) buildHeader(ctx context.Context, req *Request) (http.Header, error) {
	header := make(http.Header)
	for name, values := range c.cfg.DefaultHeaders {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	for name, values := range req.Header {
		header.Del(name)
		for _, v := range values {
			header.Add(name, v)
		}
	}

	if c.cfg.UserAgent != "" && header.Get("User-Agent") == "" {
		header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.requestID && header.Get("X-Request-Id") == "" {
		header.Set("X-Request-Id", uuid.NewString())
	}

	if err := c.auth.apply(ctx, header); err != nil {
		return nil, err
	}
	return header, nil
}

// Close releases the owned transport. Sends issued after Close fail fast
// with ErrClosed; an externally supplied transport is left untouched.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.ownedTransport != nil {
		c.ownedTransport.CloseIdleConnections()
	}
	if c.tokens != nil {
		c.tokens.client.CloseIdleConnections()
	}
}

// SendAs executes the request, asserts a 2xx status and decodes the JSON
// body into T:
//
//	user, err := apiclient.SendAs[User](ctx, client, apiclient.Get("/users/42"))
func SendAs[T any](ctx context.Context, c *Client, req *Request) (T, error) {
	var out T
	resp, err := c.SendContext(ctx, req)
	if err != nil {
		return out, err
	}
	if err := resp.EnsureSuccess(); err != nil {
		return out, err
	}
	if err := resp.DecodeJSON(&out); err != nil {
		return out, err
	}
	return out, nil
}
