package apiclient

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// scope is the instrumentation scope name for OpenTelemetry.
const scope = "github.com/halcyon-labs/apiclient-go/apiclient"

// Config is the read-only service configuration consumed at construction.
// Use DefaultConfig() as a starting point, then override fields as needed.
// A Client never watches for live changes; the config is fixed for the
// lifetime of the instance.
type Config struct {
	// BaseURL is prepended to relative request paths. Requests with an
	// absolute URL bypass it. May be empty if all requests are absolute.
	BaseURL string

	// Timeout bounds each individual attempt, connection establishment
	// through reading the response body. A request-level timeout replaces
	// it for that request, longer or shorter. Zero means no timeout.
	// Default: 15s
	Timeout time.Duration

	// UserAgent is sent as the User-Agent header unless a request sets
	// its own.
	UserAgent string

	// DefaultHeaders are applied to every request. Request headers with
	// the same name take precedence.
	DefaultHeaders http.Header

	// FollowRedirects controls whether redirects are followed.
	// Default: true
	FollowRedirects bool

	// MaxRedirects caps the redirect chain when FollowRedirects is set.
	// Default: 10
	MaxRedirects int

	// InsecureSkipVerify disables TLS certificate verification. This is
	// an explicit opt-out and is logged as a security-relevant setting.
	InsecureSkipVerify bool

	// Connection pool and dial settings, applied to the owned transport.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration

	// Retry configures the retry engine for Send.
	Retry RetryConfig

	// Auth selects the authentication mode and its credentials.
	Auth AuthConfig
}

// RetryConfig holds the retry behavior configuration.
//
// Attempts are strictly sequential: the initial attempt plus up to
// MaxRetries retries. Server errors (>= 500) and transport failures are
// retried; client errors (4xx) and caller cancellation are not.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero disables retries.
	// Default: 3
	MaxRetries int

	// Delay is the wait before the first retry. With Exponential set,
	// the wait before retry n is Delay * 2^(n-1); otherwise it is fixed.
	// Default: 500ms
	Delay time.Duration

	// Exponential enables doubling backoff. Default: true
	Exponential bool

	// MaxDelay caps the exponential backoff interval. Zero means 30s.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the default retry behavior: 3 retries with
// exponential backoff starting at 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		Delay:       500 * time.Millisecond,
		Exponential: true,
		MaxDelay:    30 * time.Second,
	}
}

// DefaultConfig returns a balanced configuration suitable for typical
// service-to-service API calls.
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		FollowRedirects: true,
		MaxRedirects:    10,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,

		Retry: DefaultRetryConfig(),
	}
}

// clientOptions holds the full construction-time configuration, including
// the ambient collaborators (logger, telemetry providers).
type clientOptions struct {
	cfg Config

	logger    zerolog.Logger
	debug     bool
	requestID bool
	coalesce  bool

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string

	tlsConfig *tls.Config

	// transport, when set, is an externally owned round tripper; the
	// client will not close it.
	transport http.RoundTripper

	breaker   *BreakerConfig
	rateLimit *RateLimitConfig

	// now is the clock used by the OAuth2 token cache.
	now func() time.Time
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		cfg:            DefaultConfig(),
		logger:         zerolog.Nop(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		now:            time.Now,
	}
}

// Option configures a Client at construction time.
type Option func(*clientOptions)

// WithConfig replaces the whole service configuration.
func WithConfig(cfg Config) Option {
	return func(o *clientOptions) { o.cfg = cfg }
}

// WithBaseURL sets the base URL for relative request paths.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) { o.cfg.BaseURL = baseURL }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.cfg.Timeout = d }
}

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) { o.cfg.UserAgent = ua }
}

// WithDefaultHeader adds a header applied to every request.
func WithDefaultHeader(name, value string) Option {
	return func(o *clientOptions) {
		if o.cfg.DefaultHeaders == nil {
			o.cfg.DefaultHeaders = make(http.Header)
		}
		o.cfg.DefaultHeaders.Add(name, value)
	}
}

// WithAuth selects the authentication mode and credentials.
func WithAuth(auth AuthConfig) Option {
	return func(o *clientOptions) { o.cfg.Auth = auth }
}

// WithRetry configures the retry engine.
func WithRetry(retry RetryConfig) Option {
	return func(o *clientOptions) { o.cfg.Retry = retry }
}

// WithLogger sets the zerolog logger used for diagnostics. The default
// logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithDebug enables request/response debug logging through the configured
// logger.
func WithDebug() Option {
	return func(o *clientOptions) { o.debug = true }
}

// WithRequestID adds a generated X-Request-Id header to each send that
// does not already carry one.
func WithRequestID() Option {
	return func(o *clientOptions) { o.requestID = true }
}

// WithCoalescing deduplicates concurrent identical GET and HEAD sends on
// this client: callers issuing the same method and URL while a flight is
// outstanding share its result.
func WithCoalescing() Option {
	return func(o *clientOptions) { o.coalesce = true }
}

// WithServiceName identifies this client in spans and metrics.
func WithServiceName(name string) Option {
	return func(o *clientOptions) { o.serviceName = name }
}

// WithTracerProvider sets a custom tracer provider. The global provider
// is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets a custom meter provider. The global provider is
// used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// WithTLSConfig sets the TLS configuration for the owned transport. The
// config is cloned before the client mutates it.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(o *clientOptions) { o.tlsConfig = tlsCfg }
}

// WithTransport supplies an externally owned round tripper. The client
// uses it for every request and will not close it on Close. Transport
// level settings from Config (pools, TLS, redirect limits excepted) do
// not apply to an external transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

// WithBreaker wraps sends in a circuit breaker.
func WithBreaker(cfg BreakerConfig) Option {
	return func(o *clientOptions) { o.breaker = &cfg }
}

// WithRateLimit applies client-side rate limiting before each send.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(o *clientOptions) { o.rateLimit = &cfg }
}

// withClock overrides the token cache clock. Tests only.
func withClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}
