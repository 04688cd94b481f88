package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// scope is the instrumentation scope of tracers and meters.
const scope = "github.com/kroma-labs/relay/httpclient"

type observabilityConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagators    propagation.TextMapPropagator
	serviceName    string
}

// ObservabilityOption configures an ObservabilityCapability.
type ObservabilityOption func(*observabilityConfig)

// WithTracerProvider sets the TracerProvider. Defaults to
// otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) ObservabilityOption {
	return func(cfg *observabilityConfig) {
		cfg.tracerProvider = tp
	}
}

// WithMeterProvider sets the MeterProvider. Defaults to
// otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) ObservabilityOption {
	return func(cfg *observabilityConfig) {
		cfg.meterProvider = mp
	}
}

// WithPropagators sets the propagators injecting trace context into
// requests. Defaults to W3C TraceContext and Baggage.
func WithPropagators(p propagation.TextMapPropagator) ObservabilityOption {
	return func(cfg *observabilityConfig) {
		cfg.propagators = p
	}
}

// WithServiceName adds an http.client.name attribute to every span and
// metric.
//
// Example:
//
//	httpclient.NewObservabilityCapability(httpclient.WithServiceName("order-service"))
//
//	// In your traces, you'll see:
//	//   Span: HTTP GET
//	//   └── http.client.name: order-service
func WithServiceName(name string) ObservabilityOption {
	return func(cfg *observabilityConfig) {
		cfg.serviceName = name
	}
}

// ObservabilityCapability instruments a Service with OpenTelemetry.
//
// It decorates three collaborators:
//   - the Client: one client span per execution, trace context injected
//     into the request headers, request metrics. The span ends when the
//     response body is consumed or closed.
//   - the Retryer: retry attempt and exhaustion metrics.
//   - the Decoder: decode failure metrics.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	builder.AddCapability(httpclient.NewObservabilityCapability(
//	    httpclient.WithTracerProvider(tp),
//	    httpclient.WithServiceName("payment-client"),
//	))
type ObservabilityCapability struct {
	NopCapability

	tracer      trace.Tracer
	propagators propagation.TextMapPropagator
	metrics     *metrics
	attrs       []attribute.KeyValue
}

// NewObservabilityCapability creates an ObservabilityCapability.
// Instruments that cannot be created are left out.
func NewObservabilityCapability(opts ...ObservabilityOption) *ObservabilityCapability {
	cfg := &observabilityConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		propagators: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &ObservabilityCapability{
		tracer:      cfg.tracerProvider.Tracer(scope),
		propagators: cfg.propagators,
	}
	c.metrics, _ = newMetrics(cfg.meterProvider.Meter(scope))
	if cfg.serviceName != "" {
		c.attrs = []attribute.KeyValue{attribute.String("http.client.name", cfg.serviceName)}
	}
	return c
}

// EnrichClient implements Capability.
func (c *ObservabilityCapability) EnrichClient(next Client) Client {
	return &tracedClient{next: next, cap: c}
}

// EnrichRetryer implements Capability.
func (c *ObservabilityCapability) EnrichRetryer(next Retryer) Retryer {
	return &observedRetryer{next: next, cap: c}
}

// EnrichDecoder implements Capability.
func (c *ObservabilityCapability) EnrichDecoder(next Decoder) Decoder {
	return DecoderFunc(func(resp *Response, shape Shape) (any, error) {
		v, err := next.Decode(resp, shape)
		if err != nil {
			ctx := context.Background()
			var method HTTPMethod
			if resp.Request != nil {
				method = resp.Request.Method()
			}
			c.metrics.recordDecodeError(ctx, withAttr(c.attrs,
				attribute.String("http.request.method", method.String()),
				attribute.Int("http.response.status_code", resp.Status),
			))
		}
		return v, err
	})
}

type tracedClient struct {
	next Client
	cap  *ObservabilityCapability
}

func (t *tracedClient) Execute(ctx context.Context, req *Request, opts Options) (*Response, error) {
	c := t.cap
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method().String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.requestAttributes(req)...),
	)
	c.propagators.Inject(ctx, requestCarrier{req: req})

	c.metrics.recordActiveRequest(ctx, 1, c.attrs)
	defer c.metrics.recordActiveRequest(ctx, -1, c.attrs)
	if n := req.Length(); n > 0 {
		c.metrics.recordRequestBodySize(ctx, int64(n), c.attrs)
	}

	resp, err := t.next.Execute(ctx, req, opts)
	duration := time.Since(start)
	if err != nil {
		errorType := classifyError(err)
		setSpanError(span, err, errorType)
		span.End()
		c.metrics.recordError(ctx, errorType, c.attrs)
		c.metrics.recordRequestDuration(ctx, duration,
			withAttr(c.serverAttributes(req), attribute.String("error.type", errorType)))
		return nil, err
	}

	span.SetAttributes(responseAttributes(resp)...)
	metricAttrs := withAttr(c.serverAttributes(req), attribute.Int("http.response.status_code", resp.Status))
	if errorType := errorTypeFromStatus(resp.Status); errorType != "" {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.Status))
		span.SetAttributes(attribute.String("error.type", errorType))
		metricAttrs = append(metricAttrs, attribute.String("error.type", errorType))
	}
	c.metrics.recordRequestDuration(ctx, duration, metricAttrs)

	// Buffered payloads are never streamed, the span ends now.
	if resp.Body == nil || resp.isRead {
		if resp.Length > 0 {
			c.metrics.recordResponseBodySize(ctx, resp.Length, c.attrs)
		}
		span.End()
		return resp, nil
	}
	resp.Body = newSpanBody(span, resp.Body, func(n int64) {
		c.metrics.recordResponseBodySize(ctx, n, c.attrs)
	})
	return resp, nil
}

// requestAttributes follows the OpenTelemetry HTTP client conventions.
func (c *ObservabilityCapability) requestAttributes(req *Request) []attribute.KeyValue {
	attrs := withAttr(c.serverAttributes(req), attribute.String("url.full", req.URL()))
	if u, err := url.Parse(req.URL()); err == nil && u.Scheme != "" {
		attrs = append(attrs, attribute.String("url.scheme", u.Scheme))
	}
	if n := req.Length(); n > 0 {
		attrs = append(attrs, attribute.Int("http.request.body.size", n))
	}
	if ua := req.Header("User-Agent"); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	return attrs
}

// serverAttributes returns the base attributes plus method, server address
// and server port.
func (c *ObservabilityCapability) serverAttributes(req *Request) []attribute.KeyValue {
	attrs := withAttr(c.attrs, attribute.String("http.request.method", req.Method().String()))

	u, err := url.Parse(req.URL())
	if err != nil {
		return attrs
	}
	if host := u.Hostname(); host != "" {
		attrs = append(attrs, attribute.String("server.address", host))
	}
	if p, err := strconv.Atoi(u.Port()); err == nil {
		attrs = append(attrs, attribute.Int("server.port", p))
	} else {
		switch u.Scheme {
		case "http":
			attrs = append(attrs, attribute.Int("server.port", 80))
		case "https":
			attrs = append(attrs, attribute.Int("server.port", 443))
		}
	}
	return attrs
}

func responseAttributes(resp *Response) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int("http.response.status_code", resp.Status)}
	if resp.Length > 0 {
		attrs = append(attrs, attribute.Int64("http.response.body.size", resp.Length))
	}
	if resp.Protocol != "" {
		// "HTTP/1.1" → "1.1", "HTTP/2.0" → "2"
		version := strings.TrimPrefix(string(resp.Protocol), "HTTP/")
		if version == "2.0" {
			version = "2"
		}
		attrs = append(attrs, attribute.String("network.protocol.version", version))
	}
	return attrs
}

// requestCarrier lets propagators write headers through Request.SetHeader.
type requestCarrier struct {
	req *Request
}

var _ propagation.TextMapCarrier = requestCarrier{}

func (c requestCarrier) Get(key string) string { return c.req.Header(key) }

func (c requestCarrier) Set(key, value string) { c.req.SetHeader(key, value) }

func (c requestCarrier) Keys() []string {
	return sortedHeaderNames(c.req.Headers())
}

type observedRetryer struct {
	next    Retryer
	cap     *ObservabilityCapability
	retries int
	first   time.Time
}

func (r *observedRetryer) ContinueOrPropagate(ctx context.Context, err *RetryableError) error {
	if r.first.IsZero() {
		r.first = time.Now()
	}
	attrs := withAttr(r.cap.attrs, attribute.String("http.request.method", err.Method.String()))

	if stop := r.next.ContinueOrPropagate(ctx, err); stop != nil {
		r.cap.metrics.recordRetryExhausted(ctx, attrs, time.Since(r.first))
		return stop
	}
	r.retries++
	r.cap.metrics.recordRetryAttempt(ctx, attrs, r.retries)
	return nil
}

func (r *observedRetryer) Clone() Retryer {
	return &observedRetryer{next: r.next.Clone(), cap: r.cap}
}
