package apiclient

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"net/http"

	"github.com/rs/zerolog"
)

// AuthMode selects how outgoing requests are authenticated.
type AuthMode int

const (
	// AuthAnonymous sends no credential material.
	AuthAnonymous AuthMode = iota

	// AuthBearer sends a configured static token as
	// "Authorization: Bearer <token>".
	AuthBearer

	// AuthBasic sends "Authorization: Basic base64(username:password)".
	AuthBasic

	// AuthAPIKey sends a configured key in a named header or query
	// parameter, per APIKeyIn.
	AuthAPIKey

	// AuthCertificate attaches a client certificate to the transport's
	// TLS identity. No per-request decoration happens.
	AuthCertificate

	// AuthOAuth2 obtains a bearer token through the OAuth2
	// client-credentials grant and caches it until expiry.
	AuthOAuth2
)

// APIKeyLocation selects where an API key is placed.
type APIKeyLocation int

const (
	// APIKeyInHeader places the key in a header named APIKeyName.
	APIKeyInHeader APIKeyLocation = iota

	// APIKeyInQuery appends APIKeyName=<key> to the URL during assembly,
	// before the transport sees the request.
	APIKeyInQuery
)

// AuthConfig carries the mode and its mode-specific credentials. Only the
// fields for the selected mode are consulted.
type AuthConfig struct {
	Mode AuthMode

	// Bearer mode.
	BearerToken string

	// Basic mode.
	Username string
	Password string

	// API key mode.
	APIKeyName string
	APIKey     string
	APIKeyIn   APIKeyLocation

	// Certificate mode: either a parsed certificate or a PEM pair on
	// disk. The parsed certificate wins when both are set.
	Certificate *tls.Certificate
	CertFile    string
	KeyFile     string

	// OAuth2 client-credentials mode.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// clientCertificate resolves the configured client certificate.
func (a AuthConfig) clientCertificate() (tls.Certificate, error) {
	if a.Certificate != nil {
		return *a.Certificate, nil
	}
	return tls.LoadX509KeyPair(a.CertFile, a.KeyFile)
}

// authenticator decorates outgoing requests per the configured mode. It is
// stateless per request; the OAuth2 mode delegates to the token cache.
type authenticator struct {
	cfg    AuthConfig
	log    zerolog.Logger
	tokens *tokenCache
}

func newAuthenticator(cfg AuthConfig, log zerolog.Logger, tokens *tokenCache) *authenticator {
	return &authenticator{cfg: cfg, log: log, tokens: tokens}
}

// queryParams returns auth material that belongs in the URL. Applied
// during URL assembly so retries and coalescing observe the final URL.
func (a *authenticator) queryParams() []QueryParam {
	if a.cfg.Mode == AuthAPIKey && a.cfg.APIKeyIn == APIKeyInQuery {
		return []QueryParam{{Key: a.cfg.APIKeyName, Value: a.cfg.APIKey}}
	}
	return nil
}

// apply attaches header credentials for the configured mode. For OAuth2 it
// may block on a token refresh; acquisition failure is fatal to the send,
// while incomplete configuration merely yields no token.
func (a *authenticator) apply(ctx context.Context, header http.Header) error {
	switch a.cfg.Mode {
	case AuthAnonymous, AuthCertificate:
		// Certificate identity lives on the transport.

	case AuthBearer:
		header.Set("Authorization", "Bearer "+a.cfg.BearerToken)

	case AuthBasic:
		credentials := base64.StdEncoding.EncodeToString([]byte(a.cfg.Username + ":" + a.cfg.Password))
		header.Set("Authorization", "Basic "+credentials)

	case AuthAPIKey:
		if a.cfg.APIKeyIn == APIKeyInHeader {
			header.Set(a.cfg.APIKeyName, a.cfg.APIKey)
		}

	case AuthOAuth2:
		token, err := a.tokens.Token(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	return nil
}
