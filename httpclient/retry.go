package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v5"
)

// Retryer decides whether a failed call is attempted again.
//
// ContinueOrPropagate returns nil to allow another attempt, possibly after
// waiting, or an error to stop. A Retryer is stateful; the pipeline calls
// Clone once per invocation and never shares the clone.
type Retryer interface {
	ContinueOrPropagate(ctx context.Context, err *RetryableError) error
	Clone() Retryer
}

// RetryConfig holds the retry behavior configuration.
// Use DefaultRetryConfig() for balanced defaults, then modify as needed.
//
// Example:
//
//	cfg := httpclient.DefaultRetryConfig()
//	cfg.MaxAttempts = 3
//	builder.Retryer(httpclient.NewRetryer(cfg))
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, the first included.
	// 1 or less disables retries.
	// Default: 5
	MaxAttempts int

	// Period is the wait before the first retry.
	// Default: 100ms
	Period time.Duration

	// MaxPeriod caps every wait, including waits requested by Retry-After.
	// Default: 1s
	MaxPeriod time.Duration

	// Multiplier grows the wait after each retry.
	// Default: 1.5
	//
	// Example with Period=100ms, Multiplier=1.5:
	//   Retry 1: 100ms → Retry 2: 150ms → Retry 3: 225ms
	Multiplier float64

	// JitterFactor randomizes each wait by ±JitterFactor.
	// Default: 0 (deterministic)
	JitterFactor float64
}

// DefaultRetryConfig returns 5 attempts waiting 100ms, growing ×1.5 up to 1s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		Period:      100 * time.Millisecond,
		MaxPeriod:   1 * time.Second,
		Multiplier:  1.5,
	}
}

// AggressiveRetryConfig returns configuration for idempotent calls that
// must succeed: 8 attempts from 50ms up to 5s with 20% jitter.
//
// Warning: More aggressive retries increase load on downstream services.
func AggressiveRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  8,
		Period:       50 * time.Millisecond,
		MaxPeriod:    5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// ConservativeRetryConfig returns configuration for expensive or
// rate-limited services: 3 attempts from 1s up to 10s with 50% jitter.
func ConservativeRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		Period:       1 * time.Second,
		MaxPeriod:    10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}
}

// NoRetryConfig returns a configuration with a single attempt.
func NoRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

// IsEnabled returns true if retries are enabled.
func (c RetryConfig) IsEnabled() bool {
	return c.MaxAttempts > 1
}

// BackOffRetryer waits between attempts according to a backoff.BackOff.
//
// A RetryableError with a RetryAfter time overrides the computed wait,
// capped by MaxPeriod; a RetryAfter in the past retries immediately.
type BackOffRetryer struct {
	maxAttempts int
	maxPeriod   time.Duration
	newBackOff  func() backoff.BackOff
	clock       clock.Clock

	b       backoff.BackOff
	attempt int
	slept   time.Duration
}

// NewRetryer creates a BackOffRetryer driven by an exponential backoff
// built from cfg.
//
// Example:
//
//	builder.Retryer(httpclient.NewRetryer(httpclient.ConservativeRetryConfig()))
func NewRetryer(cfg RetryConfig) *BackOffRetryer {
	return NewBackOffRetryer(cfg.MaxAttempts, cfg.MaxPeriod, func() backoff.BackOff {
		return ExponentialBackOffFromConfig(cfg)
	})
}

// NewBackOffRetryer creates a BackOffRetryer. newBackOff is called once per
// invocation to obtain fresh backoff state. A maxPeriod of 0 disables the cap.
//
// Example:
//
//	retryer := httpclient.NewBackOffRetryer(4, 10*time.Second, func() backoff.BackOff {
//	    return httpclient.NewDecorrelatedJitterBackOff()
//	})
func NewBackOffRetryer(maxAttempts int, maxPeriod time.Duration, newBackOff func() backoff.BackOff) *BackOffRetryer {
	return &BackOffRetryer{
		maxAttempts: maxAttempts,
		maxPeriod:   maxPeriod,
		newBackOff:  newBackOff,
		clock:       clock.New(),
		b:           newBackOff(),
		attempt:     1,
	}
}

// WithClock replaces the clock used for waiting, for tests.
func (r *BackOffRetryer) WithClock(clk clock.Clock) *BackOffRetryer {
	r.clock = clk
	return r
}

// Attempt returns the number of the attempt currently allowed, starting at 1.
func (r *BackOffRetryer) Attempt() int { return r.attempt }

// Slept returns the total time spent waiting.
func (r *BackOffRetryer) Slept() time.Duration { return r.slept }

// ContinueOrPropagate implements Retryer.
func (r *BackOffRetryer) ContinueOrPropagate(ctx context.Context, err *RetryableError) error {
	if r.attempt >= r.maxAttempts {
		return err
	}
	r.attempt++

	interval, ok := r.nextInterval(err)
	if !ok {
		return err
	}
	if interval <= 0 {
		return nil
	}

	timer := r.clock.Timer(interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	case <-timer.C:
	}
	r.slept += interval
	return nil
}

// nextInterval returns the wait before the next attempt. ok is false when
// the backoff asks to stop.
func (r *BackOffRetryer) nextInterval(err *RetryableError) (time.Duration, bool) {
	interval := r.b.NextBackOff()
	if interval == backoff.Stop {
		return 0, false
	}
	if !err.RetryAfter.IsZero() {
		interval = err.RetryAfter.Sub(r.clock.Now())
	}
	if r.maxPeriod > 0 && interval > r.maxPeriod {
		interval = r.maxPeriod
	}
	return interval, true
}

// Clone implements Retryer.
func (r *BackOffRetryer) Clone() Retryer {
	return &BackOffRetryer{
		maxAttempts: r.maxAttempts,
		maxPeriod:   r.maxPeriod,
		newBackOff:  r.newBackOff,
		clock:       r.clock,
		b:           r.newBackOff(),
		attempt:     1,
	}
}

// NeverRetry propagates every failure.
var NeverRetry Retryer = neverRetry{}

type neverRetry struct{}

func (neverRetry) ContinueOrPropagate(_ context.Context, err *RetryableError) error { return err }

func (neverRetry) Clone() Retryer { return neverRetry{} }
