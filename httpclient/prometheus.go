package httpclient

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

// PrometheusCapability exports request, retry and decode metrics to a
// Prometheus registerer. It is safe for concurrent use; register it once
// per registerer, since collectors cannot be registered twice.
//
// Example:
//
//	metrics := httpclient.NewPrometheusCapability(prometheus.DefaultRegisterer)
//	breakerCfg := httpclient.DefaultBreakerConfig()
//	breakerCfg.OnStateChange = metrics.ObserveBreakerState
//	builder.
//	    AddCapability(httpclient.NewBreakerCapability("users", breakerCfg)).
//	    AddCapability(metrics)
type PrometheusCapability struct {
	NopCapability

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	retriesExhausted *prometheus.CounterVec
	decodeErrors     *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

// NewPrometheusCapability creates the collectors on registry.
func NewPrometheusCapability(registry prometheus.Registerer) *PrometheusCapability {
	factory := promauto.With(registry)
	return &PrometheusCapability{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_requests_total",
				Help: "Total number of HTTP requests executed",
			},
			[]string{"method", "status_code", "host"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "host"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "host"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_errors_total",
				Help: "Total number of HTTP requests that failed to execute",
			},
			[]string{"type", "method", "host"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method"},
		),
		retriesExhausted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_retries_exhausted_total",
				Help: "Total number of calls that exhausted their retries",
			},
			[]string{"method"},
		),
		decodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_decode_errors_total",
				Help: "Total number of responses that failed to decode",
			},
			[]string{"status_code"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}
}

// ObserveBreakerState records breaker transitions; use it as
// BreakerConfig.OnStateChange.
func (c *PrometheusCapability) ObserveBreakerState(name string, _, to gobreaker.State) {
	c.breakerState.WithLabelValues(name).Set(float64(to))
}

// EnrichClient implements Capability.
func (c *PrometheusCapability) EnrichClient(next Client) Client {
	return ClientFunc(func(ctx context.Context, req *Request, opts Options) (*Response, error) {
		method := req.Method().String()
		host := hostOf(req.URL())

		inFlight := c.requestsInFlight.WithLabelValues(method, host)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		resp, err := next.Execute(ctx, req, opts)
		if err != nil {
			c.errorsTotal.WithLabelValues(classifyError(err), method, host).Inc()
			return nil, err
		}

		status := strconv.Itoa(resp.Status)
		c.requestsTotal.WithLabelValues(method, status, host).Inc()
		c.requestDuration.WithLabelValues(method, status, host).Observe(time.Since(start).Seconds())
		return resp, nil
	})
}

// EnrichRetryer implements Capability.
func (c *PrometheusCapability) EnrichRetryer(next Retryer) Retryer {
	return &countingRetryer{next: next, cap: c}
}

// EnrichDecoder implements Capability.
func (c *PrometheusCapability) EnrichDecoder(next Decoder) Decoder {
	return DecoderFunc(func(resp *Response, shape Shape) (any, error) {
		v, err := next.Decode(resp, shape)
		if err != nil {
			c.decodeErrors.WithLabelValues(strconv.Itoa(resp.Status)).Inc()
		}
		return v, err
	})
}

type countingRetryer struct {
	next Retryer
	cap  *PrometheusCapability
}

func (r *countingRetryer) ContinueOrPropagate(ctx context.Context, err *RetryableError) error {
	method := err.Method.String()
	if stop := r.next.ContinueOrPropagate(ctx, err); stop != nil {
		r.cap.retriesExhausted.WithLabelValues(method).Inc()
		return stop
	}
	r.cap.retriesTotal.WithLabelValues(method).Inc()
	return nil
}

func (r *countingRetryer) Clone() Retryer {
	return &countingRetryer{next: r.next.Clone(), cap: r.cap}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
