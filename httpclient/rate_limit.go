package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures RateLimitCapability.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained request rate. 0 or less
	// disables limiting.
	RequestsPerSecond float64

	// Burst is the maximum number of requests allowed in a burst.
	Burst int

	// WaitOnLimit makes requests wait for a token, bounded by the call
	// context. Otherwise they fail immediately with ErrRateLimited.
	WaitOnLimit bool

	// PerHost gives every host its own limiter instead of one shared by
	// all requests.
	PerHost bool
}

// DefaultRateLimitConfig returns 100 requests per second with a burst of
// 10, waiting for tokens.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ErrRateLimited is returned when a request is rejected by the limiter.
// The pipeline treats it like any transient execution failure, so the
// Retryer may try again later.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitCapability throttles the Client with golang.org/x/time/rate.
//
// Example:
//
//	builder.AddCapability(httpclient.NewRateLimitCapability(httpclient.RateLimitConfig{
//	    RequestsPerSecond: 20,
//	    Burst:             5,
//	    WaitOnLimit:       true,
//	}))
type RateLimitCapability struct {
	NopCapability

	cfg RateLimitConfig

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitCapability creates a RateLimitCapability.
func NewRateLimitCapability(cfg RateLimitConfig) *RateLimitCapability {
	return &RateLimitCapability{
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// EnrichClient implements Capability.
func (c *RateLimitCapability) EnrichClient(next Client) Client {
	if c.cfg.RequestsPerSecond <= 0 {
		return next
	}
	return ClientFunc(func(ctx context.Context, req *Request, opts Options) (*Response, error) {
		limiter := c.limiterFor(req)
		if c.cfg.WaitOnLimit {
			if err := limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
			}
		} else if !limiter.Allow() {
			return nil, ErrRateLimited
		}
		return next.Execute(ctx, req, opts)
	})
}

// limiterFor returns the limiter of the request host, creating it on
// first use.
func (c *RateLimitCapability) limiterFor(req *Request) *rate.Limiter {
	key := ""
	if c.cfg.PerHost {
		if u, err := url.Parse(req.URL()); err == nil {
			key = u.Host
		}
	}

	c.mu.RLock()
	limiter, ok := c.limiters[key]
	c.mu.RUnlock()
	if ok {
		return limiter
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, ok := c.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), c.cfg.Burst)
	c.limiters[key] = limiter
	return limiter
}
