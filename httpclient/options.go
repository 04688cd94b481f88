package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

// Options controls per-request transport behaviour.
//
// Options is a comparable value; a zero timeout means "no timeout".
// A method that declares an Options argument overrides the client-wide
// Options for that call.
type Options struct {
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for the response headers once the
	// request has been written.
	ReadTimeout time.Duration

	// FollowRedirects makes the transport follow 3xx responses.
	FollowRedirects bool
}

// DefaultOptions returns a 10s connect timeout, a 60s read timeout and
// redirect following.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:  10 * time.Second,
		ReadTimeout:     60 * time.Second,
		FollowRedirects: true,
	}
}

// ConnectTimeoutMillis returns the connect timeout in milliseconds.
func (o Options) ConnectTimeoutMillis() int64 { return o.ConnectTimeout.Milliseconds() }

// ReadTimeoutMillis returns the read timeout in milliseconds.
func (o Options) ReadTimeoutMillis() int64 { return o.ReadTimeout.Milliseconds() }

// =============================================================================
// Transport Configuration
// =============================================================================

// Config holds the connection pool settings used by HTTPClient.
// Timeouts that vary per call live in Options instead.
//
// Example:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.MaxIdleConnsPerHost = 50
//
//	client := httpclient.NewHTTPClient(httpclient.WithConfig(cfg))
type Config struct {
	// MaxIdleConns caps idle keep-alive connections across all hosts.
	//
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost caps idle connections kept per host. When a
	// client mostly talks to one service, set it close to MaxIdleConns.
	//
	// Default: 20
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits total connections per host, 0 means unlimited.
	//
	// Default: 100
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays in the pool.
	//
	// Default: 90s
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ExpectContinueTimeout is the wait for a 100-continue response.
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	//
	// Default: 30s
	KeepAlive time.Duration

	// FallbackDelay is the Happy Eyeballs delay before trying IPv4.
	//
	// Default: 300ms
	FallbackDelay time.Duration

	// WriteBufferSize and ReadBufferSize size the transport buffers.
	//
	// Default: 64KB each
	WriteBufferSize int
	ReadBufferSize  int

	// MaxResponseHeaderBytes limits response header size, 0 uses the
	// net/http default.
	MaxResponseHeaderBytes int64

	// DisableKeepAlives turns off connection reuse.
	DisableKeepAlives bool

	// DisableCompression stops the transport from requesting gzip.
	DisableCompression bool

	// ForceHTTP2 attempts HTTP/2 even with a custom dialer or TLS config.
	ForceHTTP2 bool
}

// DefaultConfig returns balanced pool settings suitable for most services.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		KeepAlive:             30 * time.Second,
		FallbackDelay:         300 * time.Millisecond,
		WriteBufferSize:       64 * 1024,
		ReadBufferSize:        64 * 1024,
		DisableCompression:    true,
	}
}

// HighThroughputConfig returns settings for many concurrent calls to the
// same downstream services.
//
// Key differences from DefaultConfig:
//   - Larger idle pools
//   - Unlimited MaxConnsPerHost
//   - 128KB buffers
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIdleConns = 500
	cfg.MaxIdleConnsPerHost = 100
	cfg.MaxConnsPerHost = 0
	cfg.IdleConnTimeout = 120 * time.Second
	cfg.WriteBufferSize = 128 * 1024
	cfg.ReadBufferSize = 128 * 1024
	return cfg
}

// LowLatencyConfig returns settings for latency sensitive calls that
// should fail fast instead of queueing.
func LowLatencyConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIdleConnsPerHost = 50
	cfg.IdleConnTimeout = 60 * time.Second
	cfg.TLSHandshakeTimeout = 3 * time.Second
	cfg.ExpectContinueTimeout = 0
	cfg.FallbackDelay = 100 * time.Millisecond
	cfg.WriteBufferSize = 32 * 1024
	cfg.ReadBufferSize = 32 * 1024
	return cfg
}

// httpClientConfig collects HTTPClientOption values.
type httpClientConfig struct {
	config               Config
	tlsConfig            *tls.Config
	proxyURL             *url.URL
	proxyFromEnvironment bool

	// base replaces the transport built from config. Connect timeouts from
	// Options are not applied to a custom base.
	base http.RoundTripper
}

func newHTTPClientConfig(opts ...HTTPClientOption) *httpClientConfig {
	cfg := &httpClientConfig{
		config:               DefaultConfig(),
		proxyFromEnvironment: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// HTTPClientOption configures NewHTTPClient.
type HTTPClientOption func(*httpClientConfig)

// WithConfig sets the connection pool configuration.
//
// Example:
//
//	client := httpclient.NewHTTPClient(
//	    httpclient.WithConfig(httpclient.HighThroughputConfig()),
//	)
func WithConfig(c Config) HTTPClientOption {
	return func(cfg *httpClientConfig) {
		cfg.config = c
	}
}

// WithTLSConfig sets the TLS configuration used for HTTPS calls.
func WithTLSConfig(tlsCfg *tls.Config) HTTPClientOption {
	return func(cfg *httpClientConfig) {
		cfg.tlsConfig = tlsCfg
	}
}

// WithProxyURL routes every call through proxyURL.
func WithProxyURL(proxyURL *url.URL) HTTPClientOption {
	return func(cfg *httpClientConfig) {
		cfg.proxyURL = proxyURL
	}
}

// WithProxyFromEnvironment toggles HTTP_PROXY/HTTPS_PROXY/NO_PROXY support.
// Enabled by default.
func WithProxyFromEnvironment(enabled bool) HTTPClientOption {
	return func(cfg *httpClientConfig) {
		cfg.proxyFromEnvironment = enabled
	}
}

// WithRoundTripper makes HTTPClient send requests through rt instead of a
// transport built from Config. Useful for tests and custom stacks.
func WithRoundTripper(rt http.RoundTripper) HTTPClientOption {
	return func(cfg *httpClientConfig) {
		cfg.base = rt
	}
}
