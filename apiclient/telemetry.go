package apiclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// telemetry is the client's injected observability port: a tracer for a
// span around each send and the metric instruments. Providers default to
// the globals, so with no SDK installed everything is a no-op.
type telemetry struct {
	tracer      trace.Tracer
	metrics     *clientMetrics
	serviceName string
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, serviceName string) *telemetry {
	tel := &telemetry{
		tracer:      tp.Tracer(scope),
		serviceName: serviceName,
	}
	// A metrics registration failure leaves instruments nil; recording
	// methods tolerate that.
	tel.metrics, _ = newClientMetrics(mp.Meter(scope))
	return tel
}

func (t *telemetry) baseAttributes() []attribute.KeyValue {
	if t.serviceName == "" {
		return nil
	}
	return []attribute.KeyValue{attribute.String("http.client.name", t.serviceName)}
}

// startSpan opens the client span for one send.
func (t *telemetry) startSpan(ctx context.Context, method, targetURL string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(t.baseAttributes(),
			attribute.String("http.request.method", method),
			attribute.String("url.full", targetURL),
		)...),
	)
}

// recordSend closes out the span attributes and records the duration of a
// completed send, retries included.
func (t *telemetry) recordSend(ctx context.Context, span trace.Span, resp *Response, err error, duration time.Duration) {
	attrs := append(t.baseAttributes(), attribute.String("http.request.duration_bucket", "total"))

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		attrs = append(attrs, attribute.String("error.type", "request_error"))
	case resp != nil:
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode >= 400 {
			span.SetStatus(codes.Error, resp.Status)
		}
		attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))
	}

	t.metrics.recordRequestDuration(ctx, duration, attrs)
}

// recordRetryAttempt emits the retry counter and a span event for one
// scheduled retry.
func (t *telemetry) recordRetryAttempt(ctx context.Context, attempt int, delay time.Duration, err error) {
	t.metrics.recordRetryAttempt(ctx, t.baseAttributes())

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	reason := "server_error"
	if isRetryableNetworkError(err) {
		reason = "network_error"
	}
	span.AddEvent("http.retry", trace.WithAttributes(
		attribute.Int("retry.attempt", attempt),
		attribute.Int64("retry.delay_ms", delay.Milliseconds()),
		attribute.String("retry.reason", reason),
	))
}

func (t *telemetry) recordRetryExhausted(ctx context.Context) {
	t.metrics.recordRetryExhausted(ctx, t.baseAttributes())
}

func (t *telemetry) recordTokenRefresh(ctx context.Context) {
	t.metrics.recordTokenRefresh(ctx, t.baseAttributes())
}
