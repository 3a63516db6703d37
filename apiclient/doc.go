// Package apiclient provides a production-ready HTTP API client with
// authentication-mode dispatch, automatic retries, OAuth2 token caching
// and OpenTelemetry instrumentation.
//
// # Features
//
//   - Builder-style requests with pure, deterministic URL assembly
//   - Six authentication modes: anonymous, bearer, basic, API key
//     (header or query), client certificate, OAuth2 client credentials
//   - Single-flight OAuth2 token cache shared across concurrent sends
//   - Retries with fixed or exponential backoff; server errors and
//     transport failures retry, client errors never do
//   - OpenTelemetry tracing and metrics, no-op safe without an SDK
//   - Optional circuit breaker, rate limiting and request coalescing
//   - MockTransport for tests
//
// # Quick start
//
//	client, err := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithServiceName("billing"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	resp, err := client.SendContext(ctx, apiclient.Get("/users/42"))
//	if err != nil {
//	    return err
//	}
//	if resp.IsSuccess() {
//	    var user User
//	    if err := resp.DecodeJSON(&user); err != nil {
//	        return err
//	    }
//	}
//
// Or decode in one step with the typed helper:
//
//	user, err := apiclient.SendAs[User](ctx, client, apiclient.Get("/users/42"))
//
// # Authentication
//
// The mode is fixed at construction and applied to every send:
//
//	client, err := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithAuth(apiclient.AuthConfig{
//	        Mode:         apiclient.AuthOAuth2,
//	        TokenURL:     "https://login.example.com/oauth2/token",
//	        ClientID:     id,
//	        ClientSecret: secret,
//	        Scope:        "api.read",
//	    }),
//	)
//
// OAuth2 tokens are acquired lazily through the client-credentials grant
// and cached until shortly before expiry; concurrent sends share one
// acquisition call. A partially configured OAuth2 mode logs a warning and
// sends requests unauthenticated, while a failing token endpoint fails
// the send that triggered the refresh.
//
// # Retries
//
// Server errors (>= 500) and transport failures are retried up to
// Retry.MaxRetries times with fixed or doubling backoff; 4xx responses
// come back as ordinary responses on the first attempt. Cancelling the
// context aborts the in-flight attempt and any backoff wait immediately.
//
//	client, err := apiclient.New(
//	    apiclient.WithRetry(apiclient.RetryConfig{
//	        MaxRetries:  5,
//	        Delay:       200 * time.Millisecond,
//	        Exponential: true,
//	    }),
//	)
//
// # Testing
//
// MockTransport stands in for the network:
//
//	mock := apiclient.NewMockTransport().
//	    Enqueue(503, "busy").
//	    Enqueue(200, `{"id":42}`)
//
//	client, _ := apiclient.New(apiclient.WithTransport(mock))
package apiclient
