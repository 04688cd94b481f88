package httpclient

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	_ backoff.BackOff = (*LinearBackOff)(nil)
	_ backoff.BackOff = (*DecorrelatedJitterBackOff)(nil)
	_ backoff.BackOff = (*ConstantBackOffWithJitter)(nil)
)

// ExponentialBackOffFromConfig builds the exponential backoff behind
// NewRetryer: Period, growing by Multiplier, capped at MaxPeriod and
// randomized by JitterFactor. A zero JitterFactor yields exact waits.
func ExponentialBackOffFromConfig(cfg RetryConfig) *backoff.ExponentialBackOff {
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	maxPeriod := cfg.MaxPeriod
	if maxPeriod <= 0 || maxPeriod < cfg.Period {
		maxPeriod = cfg.Period
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     cfg.Period,
		RandomizationFactor: cfg.JitterFactor,
		Multiplier:          multiplier,
		MaxInterval:         maxPeriod,
	}
}

// LinearBackOff waits Initial, then grows by Increment per retry up to
// MaxInterval, randomized by ±JitterFactor.
//
// Example with Initial=1s, Increment=500ms, JitterFactor=0:
//
//	Retry 1: 1.0s → Retry 2: 1.5s → Retry 3: 2.0s
type LinearBackOff struct {
	InitialInterval time.Duration
	Increment       time.Duration
	MaxInterval     time.Duration
	JitterFactor    float64

	retries int
}

// NewLinearBackOff returns a LinearBackOff of 500ms + 500ms per retry,
// capped at 30s, with ±50% jitter.
func NewLinearBackOff() *LinearBackOff {
	return &LinearBackOff{
		InitialInterval: 500 * time.Millisecond,
		Increment:       500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		JitterFactor:    0.5,
	}
}

// Reset implements backoff.BackOff.
func (b *LinearBackOff) Reset() { b.retries = 0 }

// NextBackOff implements backoff.BackOff.
func (b *LinearBackOff) NextBackOff() time.Duration {
	interval := b.InitialInterval + time.Duration(b.retries)*b.Increment
	if b.MaxInterval > 0 && interval > b.MaxInterval {
		interval = b.MaxInterval
	}
	b.retries++
	return applyJitter(interval, b.JitterFactor)
}

// DecorrelatedJitterBackOff draws every wait between Base and three times
// the previous wait, capped at Cap. Concurrent callers retrying the same
// dependency spread out instead of arriving together.
//
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type DecorrelatedJitterBackOff struct {
	Base time.Duration
	Cap  time.Duration

	prev time.Duration
}

// NewDecorrelatedJitterBackOff returns a DecorrelatedJitterBackOff between
// 500ms and 30s.
func NewDecorrelatedJitterBackOff() *DecorrelatedJitterBackOff {
	return &DecorrelatedJitterBackOff{
		Base: 500 * time.Millisecond,
		Cap:  30 * time.Second,
	}
}

// Reset implements backoff.BackOff.
func (b *DecorrelatedJitterBackOff) Reset() { b.prev = 0 }

// NextBackOff implements backoff.BackOff.
func (b *DecorrelatedJitterBackOff) NextBackOff() time.Duration {
	if b.prev < b.Base {
		b.prev = b.Base
	}
	upper := min(b.prev*3, b.Cap)
	b.prev = randomBetween(b.Base, upper)
	return b.prev
}

// ConstantBackOffWithJitter waits Interval ±JitterFactor every time.
type ConstantBackOffWithJitter struct {
	Interval     time.Duration
	JitterFactor float64
}

// NewConstantBackOffWithJitter returns a ConstantBackOffWithJitter of 1s ±50%.
func NewConstantBackOffWithJitter() *ConstantBackOffWithJitter {
	return &ConstantBackOffWithJitter{
		Interval:     1 * time.Second,
		JitterFactor: 0.5,
	}
}

// Reset implements backoff.BackOff.
func (b *ConstantBackOffWithJitter) Reset() {}

// NextBackOff implements backoff.BackOff.
func (b *ConstantBackOffWithJitter) NextBackOff() time.Duration {
	return applyJitter(b.Interval, b.JitterFactor)
}

// applyJitter returns a random duration in
// [interval*(1-factor), interval*(1+factor)]. The factor is clamped to [0, 1].
func applyJitter(interval time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return interval
	}
	factor = min(factor, 1)

	delta := float64(interval) * factor
	low := float64(interval) - delta
	//nolint:gosec // jitter does not need a cryptographic source
	return time.Duration(low + rand.Float64()*2*delta)
}

// randomBetween returns a random duration in [lo, hi).
func randomBetween(lo, hi time.Duration) time.Duration {
	if lo >= hi {
		return lo
	}
	//nolint:gosec // jitter does not need a cryptographic source
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}
