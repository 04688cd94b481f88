package httpclient

import (
	"net/http"
	"time"
)

// PoolStats is a snapshot of the connection pool configuration of an
// HTTPClient, useful for debugging and verifying settings.
//
// Example:
//
//	stats := client.PoolStats()
//	fmt.Printf("Max conns per host: %d\n", stats.MaxConnsPerHost)
type PoolStats struct {
	// MaxIdleConns is the maximum idle connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost is the maximum total connections per host, 0 means
	// unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	IdleConnTimeout time.Duration

	// DisableKeepAlives indicates if HTTP keep-alives are disabled.
	DisableKeepAlives bool

	// Clients is the number of *http.Client instances created so far, one
	// per distinct Options value.
	Clients int
}

// PoolStats returns the pool configuration in use. With a custom
// RoundTripper the settings come from the underlying *http.Transport when
// it can be reached, and are zero otherwise.
func (c *HTTPClient) PoolStats() PoolStats {
	c.mu.RLock()
	clients := len(c.clients)
	c.mu.RUnlock()

	if c.cfg.base != nil {
		transport := unwrapTransport(c.cfg.base)
		if transport == nil {
			return PoolStats{Clients: clients}
		}
		return PoolStats{
			MaxIdleConns:        transport.MaxIdleConns,
			MaxIdleConnsPerHost: transport.MaxIdleConnsPerHost,
			MaxConnsPerHost:     transport.MaxConnsPerHost,
			IdleConnTimeout:     transport.IdleConnTimeout,
			DisableKeepAlives:   transport.DisableKeepAlives,
			Clients:             clients,
		}
	}

	pc := c.cfg.config
	return PoolStats{
		MaxIdleConns:        pc.MaxIdleConns,
		MaxIdleConnsPerHost: pc.MaxIdleConnsPerHost,
		MaxConnsPerHost:     pc.MaxConnsPerHost,
		IdleConnTimeout:     pc.IdleConnTimeout,
		DisableKeepAlives:   pc.DisableKeepAlives,
		Clients:             clients,
	}
}

// unwrapTransport walks wrapped round trippers down to an *http.Transport.
func unwrapTransport(rt http.RoundTripper) *http.Transport {
	for {
		switch t := rt.(type) {
		case *http.Transport:
			return t
		case interface{ Unwrap() http.RoundTripper }:
			rt = t.Unwrap()
		default:
			return nil
		}
	}
}
