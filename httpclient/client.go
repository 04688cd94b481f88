package httpclient

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
)

// Client executes a fully built Request.
//
// Implementations must be safe for concurrent use. Failures to execute
// the request (connection, TLS, timeouts) are returned as errors; any HTTP
// status, including 4xx and 5xx, is a successful execution.
type Client interface {
	Execute(ctx context.Context, req *Request, opts Options) (*Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req *Request, opts Options) (*Response, error)

// Execute implements Client.
func (f ClientFunc) Execute(ctx context.Context, req *Request, opts Options) (*Response, error) {
	return f(ctx, req, opts)
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the default Client, backed by net/http.
//
// Every distinct Options value gets its own *http.Client so that connect
// timeouts, read timeouts and the redirect policy are honoured per call.
// Instances are cached for the lifetime of the HTTPClient.
//
// Example:
//
//	client := httpclient.NewHTTPClient(
//	    httpclient.WithConfig(httpclient.HighThroughputConfig()),
//	)
//
//	svc, err := httpclient.NewBuilder().
//	    Client(client).
//	    Build(target, specs...)
type HTTPClient struct {
	cfg *httpClientConfig

	mu      sync.RWMutex
	clients map[Options]*http.Client
}

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(opts ...HTTPClientOption) *HTTPClient {
	return &HTTPClient{
		cfg:     newHTTPClientConfig(opts...),
		clients: make(map[Options]*http.Client),
	}
}

// Execute implements Client.
func (c *HTTPClient) Execute(ctx context.Context, req *Request, opts Options) (*Response, error) {
	var body io.Reader
	if data := req.Body().Bytes(); data != nil {
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method()), req.URL(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Headers()

	httpResp, err := c.clientFor(opts).Do(httpReq)
	if err != nil {
		return nil, err
	}

	return &Response{
		Status:   httpResp.StatusCode,
		Reason:   reasonPhrase(httpResp),
		Headers:  httpResp.Header,
		Body:     httpResp.Body,
		Length:   httpResp.ContentLength,
		Request:  req,
		Protocol: protocolVersion(httpResp),
	}, nil
}

// clientFor returns the cached *http.Client for opts, creating it on first use.
func (c *HTTPClient) clientFor(opts Options) *http.Client {
	c.mu.RLock()
	if hc, ok := c.clients[opts]; ok {
		c.mu.RUnlock()
		return hc
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if hc, ok := c.clients[opts]; ok {
		return hc
	}

	hc := &http.Client{Transport: c.buildTransport(opts)}
	if !opts.FollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	c.clients[opts] = hc
	return hc
}

// buildTransport creates an http.Transport from the pool configuration and
// the per-call timeouts.
func (c *HTTPClient) buildTransport(opts Options) http.RoundTripper {
	if c.cfg.base != nil {
		return c.cfg.base
	}
	pc := c.cfg.config

	dialer := &net.Dialer{
		Timeout:       opts.ConnectTimeout,
		KeepAlive:     pc.KeepAlive,
		FallbackDelay: pc.FallbackDelay,
	}

	transport := &http.Transport{
		DialContext:            dialer.DialContext,
		MaxIdleConns:           pc.MaxIdleConns,
		MaxIdleConnsPerHost:    pc.MaxIdleConnsPerHost,
		MaxConnsPerHost:        pc.MaxConnsPerHost,
		IdleConnTimeout:        pc.IdleConnTimeout,
		TLSHandshakeTimeout:    pc.TLSHandshakeTimeout,
		ResponseHeaderTimeout:  opts.ReadTimeout,
		ExpectContinueTimeout:  pc.ExpectContinueTimeout,
		DisableKeepAlives:      pc.DisableKeepAlives,
		DisableCompression:     pc.DisableCompression,
		WriteBufferSize:        pc.WriteBufferSize,
		ReadBufferSize:         pc.ReadBufferSize,
		MaxResponseHeaderBytes: pc.MaxResponseHeaderBytes,
		TLSClientConfig:        c.cfg.tlsConfig,
		ForceAttemptHTTP2:      pc.ForceHTTP2,
	}

	if c.cfg.proxyURL != nil {
		transport.Proxy = http.ProxyURL(c.cfg.proxyURL)
	} else if c.cfg.proxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// reasonPhrase strips the status code from resp.Status ("200 OK" -> "OK").
func reasonPhrase(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

func protocolVersion(resp *http.Response) ProtocolVersion {
	switch {
	case resp.ProtoMajor == 2:
		return HTTP20
	case resp.ProtoMajor == 1 && resp.ProtoMinor == 0:
		return HTTP10
	default:
		return HTTP11
	}
}
