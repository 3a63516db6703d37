package apiclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// clientMetrics holds the metric instruments for client operations. All
// recording methods are safe on a nil receiver so a failed registration
// degrades to no metrics instead of panics.
type clientMetrics struct {
	// requestDuration measures completed sends in seconds, retries and
	// backoff waits included.
	requestDuration metric.Float64Histogram

	// retryAttempts counts scheduled retries.
	retryAttempts metric.Int64Counter

	// retryExhausted counts sends that ran out of retries. A high value
	// indicates downstream service issues.
	retryExhausted metric.Int64Counter

	// tokenRefreshes counts successful OAuth2 token acquisitions.
	tokenRefreshes metric.Int64Counter
}

func newClientMetrics(meter metric.Meter) (*clientMetrics, error) {
	m := &clientMetrics{}
	var err error

	m.requestDuration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client sends in seconds, retries included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.retryAttempts, err = meter.Int64Counter(
		"http.client.retry.attempts",
		metric.WithDescription("Number of retry attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.retryExhausted, err = meter.Int64Counter(
		"http.client.retry.exhausted",
		metric.WithDescription("Number of sends that exhausted all retries"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.tokenRefreshes, err = meter.Int64Counter(
		"http.client.oauth2.refreshes",
		metric.WithDescription("Number of OAuth2 token acquisitions"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *clientMetrics) recordRequestDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *clientMetrics) recordRetryAttempt(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.retryAttempts == nil {
		return
	}
	m.retryAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *clientMetrics) recordRetryExhausted(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.retryExhausted == nil {
		return
	}
	m.retryExhausted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *clientMetrics) recordTokenRefresh(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.tokenRefreshes == nil {
		return
	}
	m.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(attrs...))
}
