package httpclient

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// NewRedisStore creates a SharedDataStore backed by Redis so that every
// instance of a service shares the breaker state of a target.
//
// Usage:
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	builder.AddCapability(httpclient.NewBreakerCapability("users",
//	    httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))))
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker is the subset of gobreaker.CircuitBreaker used by
// BreakerCapability.
type CircuitBreaker interface {
	Execute(req func() (interface{}, error)) (interface{}, error)
}

// BreakerClassifier decides whether an execution counts as a failure.
// resp is nil when err is not.
type BreakerClassifier func(resp *Response, err error) bool

// BreakerConfig configures BreakerCapability.
//
// Concepts:
//   - Closed: Normal state, requests allowed.
//   - Open: Failing state, requests rejected immediately.
//   - Half-Open: Probing state, limited requests allowed to test recovery.
type BreakerConfig struct {
	// MaxRequests is the number of requests allowed through while half-open.
	MaxRequests uint32

	// Interval is the cyclic period after which the closed state clears its
	// counts. 0 never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests before the
	// failure ratio is considered.
	FailureThreshold uint32

	// FailureRatio trips the breaker once reached, 0 disables the rule.
	FailureRatio float64

	// ConsecutiveFailures trips the breaker once reached, 0 disables the rule.
	ConsecutiveFailures uint32

	// Store shares the breaker state between instances. nil keeps it local.
	Store gobreaker.SharedDataStore

	// Classifier decides which executions are failures.
	// Default: DefaultBreakerClassifier
	Classifier BreakerClassifier

	// OnStateChange is called whenever the breaker changes state.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a local breaker that trips after 5
// consecutive failures, or a 50% failure ratio over at least 20 requests,
// and probes again after 10s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig returns DefaultBreakerConfig sharing its state
// through store.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerClassifier counts connection failures and 5xx responses.
// 429 is left to the Retryer.
func DefaultBreakerClassifier(resp *Response, err error) bool {
	if err != nil {
		return isNetworkError(err)
	}
	return resp != nil && resp.Status >= 500
}

// readyToTrip applies the thresholds of cfg to the breaker counts.
func (cfg BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
		return true
	}
	if counts.Requests < cfg.FailureThreshold {
		return false
	}
	if cfg.FailureRatio > 0 && counts.TotalFailures > 0 {
		return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
	}
	return false
}

// BreakerCapability guards the Client with a circuit breaker. While the
// breaker is open, executions fail fast with an *ExecuteError wrapping
// gobreaker.ErrOpenState, which the Retryer does not retry.
//
// Example:
//
//	builder.AddCapability(httpclient.NewBreakerCapability("users", httpclient.DefaultBreakerConfig()))
type BreakerCapability struct {
	NopCapability

	breaker    CircuitBreaker
	classifier BreakerClassifier
}

// NewBreakerCapability creates a BreakerCapability named name. A
// distributed breaker that cannot be created falls back to a local one.
func NewBreakerCapability(name string, cfg BreakerConfig) *BreakerCapability {
	if name == "" {
		name = "default-http-client"
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultBreakerClassifier
	}

	st := gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.readyToTrip,
		OnStateChange: cfg.OnStateChange,
	}

	var cb CircuitBreaker = gobreaker.NewCircuitBreaker[interface{}](st)
	if cfg.Store != nil {
		if dcb, err := gobreaker.NewDistributedCircuitBreaker[interface{}](cfg.Store, st); err == nil {
			cb = dcb
		}
	}
	return newBreakerCapability(cb, cfg.Classifier)
}

func newBreakerCapability(cb CircuitBreaker, classifier BreakerClassifier) *BreakerCapability {
	return &BreakerCapability{breaker: cb, classifier: classifier}
}

// errSyntheticFailure reports a failed response to the breaker. It never
// reaches the caller, who receives the response itself.
var errSyntheticFailure = errors.New("synthetic failure")

// EnrichClient implements Capability.
func (c *BreakerCapability) EnrichClient(next Client) Client {
	return ClientFunc(func(ctx context.Context, req *Request, opts Options) (*Response, error) {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			resp, err := next.Execute(ctx, req, opts)
			if c.classifier(resp, err) {
				if err != nil {
					return resp, err
				}
				return resp, errSyntheticFailure
			}
			return resp, err
		})

		resp, _ := res.(*Response)
		switch {
		case err == nil:
			return resp, nil
		case errors.Is(err, errSyntheticFailure):
			return resp, nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, &ExecuteError{Request: req, Err: err}
		default:
			return nil, err
		}
	})
}
