package httpclient

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusCapability(t *testing.T) {
	t.Run("given a fresh registry, then every collector registers", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		c := NewPrometheusCapability(registry)

		require.NotNil(t, c.requestsTotal)
		require.NotNil(t, c.requestDuration)
		require.NotNil(t, c.requestsInFlight)
		require.NotNil(t, c.errorsTotal)
		require.NotNil(t, c.retriesTotal)
		require.NotNil(t, c.retriesExhausted)
		require.NotNil(t, c.decodeErrors)
		require.NotNil(t, c.breakerState)
	})

	t.Run("given the same registry twice, then registration panics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewPrometheusCapability(registry)

		assert.Panics(t, func() { NewPrometheusCapability(registry) })
	})
}

func TestPrometheusCapability_EnrichClient(t *testing.T) {
	t.Run("given responses, then requests are counted per status", func(t *testing.T) {
		c := NewPrometheusCapability(prometheus.NewRegistry())
		client := c.EnrichClient(NewMockClient().
			StubPath("/users", http.StatusOK, `[]`).
			StubStatus(http.StatusServiceUnavailable, ""))

		for range 2 {
			_, err := client.Execute(context.Background(), newBreakerRequest(t), DefaultOptions())
			require.NoError(t, err)
		}
		req, err := NewRequest(MethodGet, "http://api.test/health", http.Header{}, nil, nil)
		require.NoError(t, err)
		_, err = client.Execute(context.Background(), req, DefaultOptions())
		require.NoError(t, err)

		assert.InDelta(t, 2, testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "200", "api.test")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "503", "api.test")), 0)
		assert.Equal(t, 2, testutil.CollectAndCount(c.requestDuration))
		assert.InDelta(t, 0, testutil.ToFloat64(c.requestsInFlight.WithLabelValues("GET", "api.test")), 0)
	})

	t.Run("given an execution error, then it is counted by type", func(t *testing.T) {
		c := NewPrometheusCapability(prometheus.NewRegistry())
		client := c.EnrichClient(NewMockClient().StubError(syscall.ECONNREFUSED))

		_, err := client.Execute(context.Background(), newBreakerRequest(t), DefaultOptions())
		require.Error(t, err)

		assert.InDelta(t, 1,
			testutil.ToFloat64(c.errorsTotal.WithLabelValues(ErrorTypeConnectionRefused, "GET", "api.test")), 0)
		assert.Equal(t, 0, testutil.CollectAndCount(c.requestsTotal))
	})
}

func TestPrometheusCapability_EnrichRetryer(t *testing.T) {
	c := NewPrometheusCapability(prometheus.NewRegistry())
	retryer := c.EnrichRetryer(zeroBackOffRetryer(2)).Clone()
	retryable := &RetryableError{Status: http.StatusServiceUnavailable, Method: MethodGet, Message: "unavailable"}

	require.NoError(t, retryer.ContinueOrPropagate(context.Background(), retryable))
	assert.ErrorIs(t, retryer.ContinueOrPropagate(context.Background(), retryable), retryable)

	assert.InDelta(t, 1, testutil.ToFloat64(c.retriesTotal.WithLabelValues("GET")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.retriesExhausted.WithLabelValues("GET")), 0)
}

func TestPrometheusCapability_EnrichDecoder(t *testing.T) {
	c := NewPrometheusCapability(prometheus.NewRegistry())
	decoder := c.EnrichDecoder(DecoderFunc(func(resp *Response, _ Shape) (any, error) {
		if resp.Status == http.StatusOK {
			return "ok", nil
		}
		return nil, errors.New("unexpected payload")
	}))

	v, err := decoder.Decode(NewResponse(http.StatusOK, []byte(`x`), nil), TypeShape(nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = decoder.Decode(NewResponse(http.StatusAccepted, []byte(`x`), nil), TypeShape(nil))
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(c.decodeErrors.WithLabelValues("202")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.decodeErrors))
}

func TestPrometheusCapability_ObserveBreakerState(t *testing.T) {
	c := NewPrometheusCapability(prometheus.NewRegistry())

	c.ObserveBreakerState("users", gobreaker.StateClosed, gobreaker.StateOpen)
	assert.InDelta(t, 2, testutil.ToFloat64(c.breakerState.WithLabelValues("users")), 0)

	c.ObserveBreakerState("users", gobreaker.StateOpen, gobreaker.StateHalfOpen)
	assert.InDelta(t, 1, testutil.ToFloat64(c.breakerState.WithLabelValues("users")), 0)
}
