package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type observed struct {
	cap      *ObservabilityCapability
	exporter *tracetest.InMemoryExporter
	reader   *sdkmetric.ManualReader
}

func newObserved(t *testing.T) observed {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	return observed{
		cap: NewObservabilityCapability(
			WithTracerProvider(tp),
			WithMeterProvider(mp),
			WithServiceName("users-client"),
		),
		exporter: exporter,
		reader:   reader,
	}
}

func (o observed) metric(t *testing.T, name string) (metricdata.Metrics, bool) {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, o.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewMetrics(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer mp.Shutdown(context.Background())

	m, err := newMetrics(mp.Meter("test"))
	require.NoError(t, err)
	assert.NotNil(t, m.requestDuration)
	assert.NotNil(t, m.requestBodySize)
	assert.NotNil(t, m.responseBodySize)
	assert.NotNil(t, m.activeRequests)
	assert.NotNil(t, m.requestErrors)
	assert.NotNil(t, m.retryAttempts)
	assert.NotNil(t, m.retryExhausted)
	assert.NotNil(t, m.retryDuration)
	assert.NotNil(t, m.decodeErrors)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.recordRequestDuration(ctx, time.Second, nil)
		m.recordRequestBodySize(ctx, 1, nil)
		m.recordResponseBodySize(ctx, 1, nil)
		m.recordActiveRequest(ctx, 1, nil)
		m.recordError(ctx, ErrorTypeEOF, nil)
		m.recordRetryAttempt(ctx, nil, 1)
		m.recordRetryExhausted(ctx, nil, time.Second)
		m.recordDecodeError(ctx, nil)
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "given nil error, then returns empty", err: nil, want: ""},
		{name: "given context cancelled, then returns cancelled", err: context.Canceled, want: ErrorTypeCancelled},
		{
			name: "given wrapped deadline, then returns timeout",
			err:  errors.Join(errors.New("request failed"), context.DeadlineExceeded),
			want: ErrorTypeTimeout,
		},
		{
			name: "given dns error, then returns dns_error",
			err:  &net.DNSError{Err: "no such host", Name: "x.invalid"},
			want: ErrorTypeDNSError,
		},
		{
			name: "given connection refused errno, then returns connection_refused",
			err:  &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			want: ErrorTypeConnectionRefused,
		},
		{name: "given unexpected EOF, then returns eof", err: io.ErrUnexpectedEOF, want: ErrorTypeEOF},
		{name: "given reset in message, then returns connection_reset", err: errors.New("connection reset by peer"), want: ErrorTypeConnectionReset},
		{name: "given x509 in message, then returns tls_error", err: errors.New("x509: bad cert"), want: ErrorTypeTLSError},
		{name: "given anything else, then returns unknown", err: errors.New("boom"), want: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestErrorTypeFromStatus(t *testing.T) {
	assert.Equal(t, "", errorTypeFromStatus(200))
	assert.Equal(t, "404", errorTypeFromStatus(404))
	assert.Equal(t, "503", errorTypeFromStatus(503))
}

func TestObservabilityCapability_Client(t *testing.T) {
	t.Run("given a buffered response, then ends the span and injects traceparent", func(t *testing.T) {
		o := newObserved(t)
		mock := NewMockClient().StubStatus(http.StatusOK, "hello")
		client := o.cap.EnrichClient(mock)

		req, err := NewRequest(MethodGet, "https://api.test/users/1", http.Header{}, nil, nil)
		require.NoError(t, err)

		resp, err := client.Execute(context.Background(), req, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)

		spans := o.exporter.GetSpans().Snapshots()
		require.Len(t, spans, 1)
		span := spans[0]
		assert.Equal(t, "HTTP GET", span.Name())

		port, ok := spanAttr(span, "server.port")
		require.True(t, ok)
		assert.Equal(t, int64(443), port.AsInt64())
		name, ok := spanAttr(span, "http.client.name")
		require.True(t, ok)
		assert.Equal(t, "users-client", name.AsString())
		status, ok := spanAttr(span, "http.response.status_code")
		require.True(t, ok)
		assert.Equal(t, int64(200), status.AsInt64())

		sent := mock.LastRequest()
		traceparent := sent.Header("Traceparent")
		assert.True(t, strings.Contains(traceparent, span.SpanContext().TraceID().String()))

		_, ok = o.metric(t, "http.client.request.duration")
		assert.True(t, ok)
	})

	t.Run("given a streamed response, then ends the span on close", func(t *testing.T) {
		o := newObserved(t)
		client := o.cap.EnrichClient(ClientFunc(func(_ context.Context, req *Request, _ Options) (*Response, error) {
			return &Response{
				Status:  http.StatusOK,
				Headers: http.Header{},
				Body:    io.NopCloser(strings.NewReader("streamed")),
				Length:  -1,
				Request: req,
			}, nil
		}))

		req, err := NewRequest(MethodGet, "http://api.test/stream", http.Header{}, nil, nil)
		require.NoError(t, err)

		resp, err := client.Execute(context.Background(), req, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, o.exporter.GetSpans())

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "streamed", string(data))
		require.NoError(t, resp.Close())

		assert.Len(t, o.exporter.GetSpans(), 1)
		_, ok := o.metric(t, "http.client.response.body.size")
		assert.True(t, ok)
	})

	t.Run("given an execution error, then records the error", func(t *testing.T) {
		o := newObserved(t)
		client := o.cap.EnrichClient(NewMockClient().StubError(errors.New("connection refused")))

		req, err := NewRequest(MethodPost, "http://api.test/users", http.Header{}, TextBody("{}"), nil)
		require.NoError(t, err)

		_, err = client.Execute(context.Background(), req, DefaultOptions())
		require.Error(t, err)

		spans := o.exporter.GetSpans().Snapshots()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		errorType, ok := spanAttr(spans[0], "error.type")
		require.True(t, ok)
		assert.Equal(t, ErrorTypeConnectionRefused, errorType.AsString())

		_, ok = o.metric(t, "http.client.request.error")
		assert.True(t, ok)
	})

	t.Run("given a 503, then marks the span as failed", func(t *testing.T) {
		o := newObserved(t)
		client := o.cap.EnrichClient(NewMockClient().StubStatus(http.StatusServiceUnavailable, "busy"))

		req, err := NewRequest(MethodGet, "http://api.test/users", http.Header{}, nil, nil)
		require.NoError(t, err)

		_, err = client.Execute(context.Background(), req, DefaultOptions())
		require.NoError(t, err)

		spans := o.exporter.GetSpans().Snapshots()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		errorType, ok := spanAttr(spans[0], "error.type")
		require.True(t, ok)
		assert.Equal(t, "503", errorType.AsString())
	})
}

func TestObservabilityCapability_RetryerAndDecoder(t *testing.T) {
	o := newObserved(t)

	retryer := o.cap.EnrichRetryer(zeroBackOffRetryer(2)).Clone()
	failure := &RetryableError{Status: 503, Method: MethodGet}
	require.NoError(t, retryer.ContinueOrPropagate(context.Background(), failure))
	require.Error(t, retryer.ContinueOrPropagate(context.Background(), failure))

	_, ok := o.metric(t, "http.client.retry.attempts")
	assert.True(t, ok)
	_, ok = o.metric(t, "http.client.retry.exhausted")
	assert.True(t, ok)

	decoder := o.cap.EnrichDecoder(StringDecoder{})
	_, err := decoder.Decode(NewResponse(http.StatusOK, []byte("x"), nil), ShapeOf[int]())
	require.Error(t, err)

	_, ok = o.metric(t, "http.client.decode.error")
	assert.True(t, ok)
}

func TestSpanBody_EndsOnce(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "body")

	var ends int
	var total int64
	body := newSpanBody(span, io.NopCloser(strings.NewReader("abc")), func(n int64) {
		ends++
		total = n
	})

	_, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	require.NoError(t, body.Close())

	assert.Equal(t, 1, ends)
	assert.Equal(t, int64(3), total)
	assert.Len(t, exporter.GetSpans(), 1)
}
