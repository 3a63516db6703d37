package apiclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog"
)

// buildTransport creates the long-lived transport for a client from the
// read-only configuration. It is built once per instance and reused by
// every send; nothing reconfigures it per request.
func buildTransport(cfg Config, tlsCfg *tls.Config, log zerolog.Logger) (*http.Transport, error) {
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	} else {
		tlsCfg = tlsCfg.Clone()
	}

	if cfg.InsecureSkipVerify {
		tlsCfg.InsecureSkipVerify = true
		log.Warn().Msg("TLS certificate verification disabled")
	}

	if cfg.Auth.Mode == AuthCertificate {
		cert, err := cfg.Auth.clientCertificate()
		if err != nil {
			return nil, fmt.Errorf("apiclient: load client certificate: %w", err)
		}
		tlsCfg.Certificates = append(tlsCfg.Certificates, cert)
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		TLSClientConfig:     tlsCfg,
		ForceAttemptHTTP2:   true,
	}, nil
}

// redirectPolicy builds the http.Client redirect hook from the config.
func redirectPolicy(cfg Config) func(*http.Request, []*http.Request) error {
	if !cfg.FollowRedirects {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
}

// insecureTokenTransport is used by the token cache when the parent client
// opted out of certificate verification, so the token endpoint is reached
// under the same TLS policy.
func insecureTokenTransport() *http.Transport {
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12},
	}
}
