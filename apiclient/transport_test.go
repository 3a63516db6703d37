package apiclient

import (
	"crypto/tls"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTransport(t *testing.T) {
	t.Run("given default config, then pool knobs propagate", func(t *testing.T) {
		cfg := DefaultConfig()

		transport, err := buildTransport(cfg, nil, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, cfg.MaxIdleConns, transport.MaxIdleConns)
		assert.Equal(t, cfg.MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
		assert.True(t, transport.ForceAttemptHTTP2)
		assert.Equal(t, uint16(tls.VersionTLS12), transport.TLSClientConfig.MinVersion)
		assert.False(t, transport.TLSClientConfig.InsecureSkipVerify)
	})

	t.Run("given insecure flag, then tls verification off", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InsecureSkipVerify = true

		transport, err := buildTransport(cfg, nil, zerolog.Nop())
		require.NoError(t, err)
		assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	})

	t.Run("given custom tls config, then cloned not aliased", func(t *testing.T) {
		custom := &tls.Config{MinVersion: tls.VersionTLS13, ServerName: "api.internal"}

		transport, err := buildTransport(DefaultConfig(), custom, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, "api.internal", transport.TLSClientConfig.ServerName)
		assert.NotSame(t, custom, transport.TLSClientConfig)
	})

	t.Run("given certificate mode with parsed certificate, then attached", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Auth = AuthConfig{Mode: AuthCertificate, Certificate: &tls.Certificate{}}

		transport, err := buildTransport(cfg, nil, zerolog.Nop())
		require.NoError(t, err)
		assert.Len(t, transport.TLSClientConfig.Certificates, 1)
	})

	t.Run("given certificate mode with missing pem files, then error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Auth = AuthConfig{Mode: AuthCertificate, CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"}

		_, err := buildTransport(cfg, nil, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestRedirectPolicy(t *testing.T) {
	t.Run("given redirects disabled, then last response used", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FollowRedirects = false

		policy := redirectPolicy(cfg)
		assert.ErrorIs(t, policy(nil, nil), http.ErrUseLastResponse)
	})

	t.Run("given redirects enabled, then chain capped", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxRedirects = 3

		policy := redirectPolicy(cfg)
		assert.NoError(t, policy(nil, make([]*http.Request, 2)))
		assert.Error(t, policy(nil, make([]*http.Request, 3)))
	})
}
