package httpclient

import (
	"context"
	"io"
	"net/url"
	"time"
)

// HedgeConfig configures hedged executions for tail latency optimization.
//
// When an execution has not completed within Delay, a duplicate is sent.
// The first successful response wins and the others are cancelled. Only
// idempotent methods (GET, HEAD, OPTIONS) are hedged.
//
// This technique is based on Google's "The Tail at Scale" paper.
//
// Best practices:
//   - Set Delay to the P95 or P99 latency of your target service
//   - Use MaxHedges of 1-2 to limit overhead
//   - Monitor hedge success rate to tune Delay
type HedgeConfig struct {
	// Delay is how long to wait before sending each duplicate.
	//
	// Default: 0 (disabled - no hedging)
	Delay time.Duration

	// MaxHedges is the maximum number of duplicates per execution. With
	// MaxHedges=1, at most 2 executions are in flight.
	//
	// Default: 0 (disabled - no hedging)
	MaxHedges int

	// Tracker makes the delay adaptive. Once it holds enough samples for an
	// endpoint, the TargetPercentile latency replaces Delay. nil keeps the
	// delay fixed.
	Tracker *LatencyTracker

	// TargetPercentile is used with Tracker, e.g. 0.95 for P95.
	TargetPercentile float64
}

// DefaultAdaptiveHedgeConfig returns one hedge at the P95 latency of each
// endpoint, 50ms until 10 samples are recorded.
func DefaultAdaptiveHedgeConfig() HedgeConfig {
	return HedgeConfig{
		Delay:            50 * time.Millisecond,
		MaxHedges:        1,
		Tracker:          NewLatencyTracker(100, 10),
		TargetPercentile: 0.95,
	}
}

// Enabled returns true if hedging is configured.
func (c HedgeConfig) Enabled() bool {
	return c.Delay > 0 && c.MaxHedges > 0
}

// delayFor returns the hedge delay of an endpoint.
func (c HedgeConfig) delayFor(endpoint string) time.Duration {
	if c.Tracker != nil {
		if d, ok := c.Tracker.Percentile(endpoint, c.TargetPercentile); ok && d > 0 {
			return d
		}
	}
	return c.Delay
}

// HedgingCapability sends duplicate executions of slow idempotent
// requests.
//
// Example:
//
//	builder.AddCapability(httpclient.NewHedgingCapability(httpclient.HedgeConfig{
//	    Delay:     50 * time.Millisecond,
//	    MaxHedges: 1,
//	}))
type HedgingCapability struct {
	NopCapability

	cfg HedgeConfig
}

// NewHedgingCapability creates a HedgingCapability.
func NewHedgingCapability(cfg HedgeConfig) *HedgingCapability {
	return &HedgingCapability{cfg: cfg}
}

// hedgeResult holds the outcome of one execution.
type hedgeResult struct {
	idx  int
	resp *Response
	err  error
}

// EnrichClient implements Capability.
func (c *HedgingCapability) EnrichClient(next Client) Client {
	if !c.cfg.Enabled() {
		return next
	}
	return ClientFunc(func(ctx context.Context, req *Request, opts Options) (*Response, error) {
		if !isIdempotent(req.Method()) {
			return next.Execute(ctx, req, opts)
		}

		endpoint := endpointKey(req)
		start := time.Now()
		resp, err := c.hedge(ctx, next, req, opts, c.cfg.delayFor(endpoint))
		if err == nil && c.cfg.Tracker != nil {
			c.cfg.Tracker.Record(endpoint, time.Since(start))
		}
		return resp, err
	})
}

func (c *HedgingCapability) hedge(
	ctx context.Context,
	next Client,
	req *Request,
	opts Options,
	delay time.Duration,
) (*Response, error) {
	attempts := c.cfg.MaxHedges + 1
	results := make(chan hedgeResult, attempts)
	cancels := make([]context.CancelFunc, 0, attempts)

	launch := func(r *Request) {
		actx, cancel := context.WithCancel(ctx)
		idx := len(cancels)
		cancels = append(cancels, cancel)
		go func() {
			resp, err := next.Execute(actx, r, opts)
			results <- hedgeResult{idx: idx, resp: resp, err: err}
		}()
	}
	cancelAll := func(except int) {
		for i, cancel := range cancels {
			if i != except {
				cancel()
			}
		}
	}

	launch(req)
	pending := 1

	timer := time.NewTimer(delay)
	defer timer.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			cancelAll(-1)
			go drainHedges(results, pending)
			return nil, ctx.Err()

		case <-timer.C:
			if len(cancels) < attempts {
				// Each duplicate gets its own Request so that inner
				// decorators may set headers concurrently.
				launch(cloneRequest(req))
				pending++
				if len(cancels) < attempts {
					timer.Reset(delay)
				}
			}

		case res := <-results:
			pending--
			if res.err == nil {
				cancelAll(res.idx)
				go drainHedges(results, pending)
				return releaseOnClose(res.resp, cancels[res.idx]), nil
			}
			lastErr = res.err
			cancels[res.idx]()
			if pending == 0 {
				cancelAll(-1)
				return nil, lastErr
			}
		}
	}
}

// drainHedges closes the responses of the losing executions.
func drainHedges(results <-chan hedgeResult, pending int) {
	for range pending {
		if res := <-results; res.resp != nil {
			_ = res.resp.Close()
		}
	}
}

// releaseOnClose ties the winner's context to its body, which net/http
// aborts as soon as the context is cancelled.
func releaseOnClose(resp *Response, cancel context.CancelFunc) *Response {
	if resp.Body == nil || resp.isRead {
		cancel()
		return resp
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func cloneRequest(req *Request) *Request {
	return &Request{
		method:   req.method,
		url:      req.url,
		headers:  copyHeaders(req.headers),
		body:     req.body,
		protocol: req.protocol,
		template: req.template,
	}
}

func isIdempotent(m HTTPMethod) bool {
	return m == MethodGet || m == MethodHead || m == MethodOptions
}

// endpointKey identifies an endpoint for latency tracking: method, host
// and path, without the query.
func endpointKey(req *Request) string {
	u, err := url.Parse(req.URL())
	if err != nil {
		return req.Method().String() + " " + req.URL()
	}
	return req.Method().String() + " " + u.Host + u.Path
}
