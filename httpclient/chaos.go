package httpclient

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"
)

// ErrChaosInjected is the cause of simulated network errors.
var ErrChaosInjected = errors.New("chaos: simulated network error")

// ChaosConfig configures fault injection, used to verify that retries,
// breakers and fallbacks behave in development and testing environments.
type ChaosConfig struct {
	// Latency is added to every execution.
	Latency time.Duration

	// LatencyJitter adds a random delay in [0, LatencyJitter) on top of
	// Latency.
	LatencyJitter time.Duration

	// ErrorRate is the probability (0.0-1.0) of failing with a simulated
	// connection error, which the pipeline retries like a real one.
	ErrorRate float64

	// TimeoutRate is the probability (0.0-1.0) of blocking until the call
	// context ends.
	TimeoutRate float64
}

// delay returns the latency to add, including jitter.
func (c ChaosConfig) delay() time.Duration {
	d := c.Latency
	if c.LatencyJitter > 0 {
		d += time.Duration(rand.Int64N(int64(c.LatencyJitter))) //nolint:gosec
	}
	return d
}

func chance(rate float64) bool {
	return rate > 0 && rand.Float64() < rate //nolint:gosec
}

// ChaosCapability injects latency and failures into the Client.
//
// Example:
//
//	builder.AddCapability(httpclient.NewChaosCapability(httpclient.ChaosConfig{
//	    Latency:   200 * time.Millisecond,
//	    ErrorRate: 0.1,
//	}))
type ChaosCapability struct {
	NopCapability

	cfg ChaosConfig
}

// NewChaosCapability creates a ChaosCapability.
func NewChaosCapability(cfg ChaosConfig) *ChaosCapability {
	return &ChaosCapability{cfg: cfg}
}

// EnrichClient implements Capability.
func (c *ChaosCapability) EnrichClient(next Client) Client {
	return ClientFunc(func(ctx context.Context, req *Request, opts Options) (*Response, error) {
		if chance(c.cfg.TimeoutRate) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		if chance(c.cfg.ErrorRate) {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: ErrChaosInjected}
		}

		if d := c.cfg.delay(); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return next.Execute(ctx, req, opts)
	})
}
