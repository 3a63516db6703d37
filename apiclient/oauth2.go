package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	// tokenExpiryMargin is subtracted from the endpoint-reported lifetime
	// so a token is refreshed before it actually expires.
	tokenExpiryMargin = time.Minute

	// tokenDefaultLifetime is assumed when the endpoint reports no
	// expires_in.
	tokenDefaultLifetime = 55 * time.Minute

	tokenRequestTimeout = 30 * time.Second
)

// tokenCache is a double-checked, mutex-guarded cache of one OAuth2
// client-credentials token per client instance. At most one refresh call
// is in flight at a time; concurrent callers observing a miss block until
// the holder of the lock publishes a fresh token, then re-check validity.
type tokenCache struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string

	log zerolog.Logger
	now func() time.Time

	// client is a throwaway transport for token acquisition only. The
	// refresh call is neither retried nor authenticated by the parent
	// client's policy.
	client *http.Client

	// onRefresh, when set, is invoked after each successful acquisition.
	onRefresh func(ctx context.Context)

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func newTokenCache(cfg AuthConfig, log zerolog.Logger, insecureSkipVerify bool, now func() time.Time) *tokenCache {
	transport := http.DefaultTransport
	if insecureSkipVerify {
		transport = insecureTokenTransport()
	}
	return &tokenCache{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scope:        cfg.Scope,
		log:          log,
		now:          now,
		client: &http.Client{
			Transport: transport,
			Timeout:   tokenRequestTimeout,
		},
	}
}

// Token returns a valid cached token, refreshing it when needed. An empty
// token with a nil error means OAuth2 is not fully configured and the send
// should proceed unauthenticated; a *TokenError means the refresh call
// itself failed and is fatal to the triggering send.
func (tc *tokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.RLock()
	if tc.valid() {
		token := tc.token
		tc.mu.RUnlock()
		return token, nil
	}
	tc.mu.RUnlock()

	tc.mu.Lock()
	defer tc.mu.Unlock()

	// Another caller may have refreshed while this one waited.
	if tc.valid() {
		return tc.token, nil
	}

	if tc.tokenURL == "" || tc.clientID == "" || tc.clientSecret == "" {
		tc.log.Warn().Msg("oauth2 configuration incomplete, sending request without bearer token")
		return "", nil
	}

	token, expiresIn, err := tc.fetch(ctx)
	if err != nil {
		return "", err
	}

	tc.token = token
	if expiresIn > 0 {
		tc.expiresAt = tc.now().Add(time.Duration(expiresIn)*time.Second - tokenExpiryMargin)
	} else {
		tc.expiresAt = tc.now().Add(tokenDefaultLifetime)
	}

	tc.log.Debug().Time("expires_at", tc.expiresAt).Msg("oauth2 token refreshed")
	if tc.onRefresh != nil {
		tc.onRefresh(ctx)
	}
	return tc.token, nil
}

// valid must be called with at least the read lock held.
func (tc *tokenCache) valid() bool {
	return tc.token != "" && tc.now().Before(tc.expiresAt)
}

// fetch posts the client-credentials grant to the token endpoint.
func (tc *tokenCache) fetch(ctx context.Context) (token string, expiresIn int64, err error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", tc.clientID)
	form.Set("client_secret", tc.clientSecret)
	if tc.scope != "" {
		form.Set("scope", tc.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &TokenError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := tc.client.Do(req)
	if err != nil {
		return "", 0, &TokenError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &TokenError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &TokenError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("token endpoint returned %s", resp.Status),
		}
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		return "", 0, &TokenError{StatusCode: resp.StatusCode, Err: err}
	}
	if grant.AccessToken == "" {
		return "", 0, &TokenError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("token response missing access_token"),
		}
	}

	return grant.AccessToken, grant.ExpiresIn, nil
}
