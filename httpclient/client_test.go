package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/relay/httpclient/mocks"
)

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/redirect":
			http.Redirect(w, r, "/echo", http.StatusFound)
			return
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		}

		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Tenant", r.Header.Get("X-Tenant"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClient_Execute(t *testing.T) {
	t.Parallel()

	server := newEchoServer(t)
	client := NewHTTPClient(WithProxyFromEnvironment(false))

	t.Run("given a request with body and headers, then the response is mapped", func(t *testing.T) {
		t.Parallel()

		req, err := NewRequest(MethodPost, server.URL+"/echo", http.Header{"X-Tenant": {"acme"}}, TextBody(`{"a":1}`), nil)
		require.NoError(t, err)

		resp, err := client.Execute(context.Background(), req, DefaultOptions())
		require.NoError(t, err)
		defer resp.Close()

		assert.Equal(t, http.StatusCreated, resp.Status)
		assert.Equal(t, "Created", resp.Reason)
		assert.Equal(t, HTTP11, resp.Protocol)
		assert.Equal(t, "POST", resp.Header("X-Method"))
		assert.Equal(t, "acme", resp.Header("X-Tenant"))
		assert.Same(t, req, resp.Request)

		body, err := resp.String()
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, body)
	})

	t.Run("given redirects are not followed, then the 3xx is returned", func(t *testing.T) {
		t.Parallel()

		req, err := NewRequest(MethodGet, server.URL+"/redirect", http.Header{}, nil, nil)
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.FollowRedirects = false
		resp, err := client.Execute(context.Background(), req, opts)
		require.NoError(t, err)
		defer resp.Close()

		assert.Equal(t, http.StatusFound, resp.Status)
		assert.Equal(t, "/echo", resp.Header("Location"))
	})

	t.Run("given redirects are followed, then the final response is returned", func(t *testing.T) {
		t.Parallel()

		req, err := NewRequest(MethodGet, server.URL+"/redirect", http.Header{}, nil, nil)
		require.NoError(t, err)

		resp, err := client.Execute(context.Background(), req, DefaultOptions())
		require.NoError(t, err)
		defer resp.Close()

		assert.Equal(t, http.StatusCreated, resp.Status)
	})

	t.Run("given a read timeout shorter than the server, then execution fails", func(t *testing.T) {
		t.Parallel()

		req, err := NewRequest(MethodGet, server.URL+"/slow", http.Header{}, nil, nil)
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.ReadTimeout = 20 * time.Millisecond
		_, err = client.Execute(context.Background(), req, opts)
		require.Error(t, err)
		assert.Equal(t, ErrorTypeTimeout, classifyError(err))
	})

	t.Run("given a cancelled context, then execution fails", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req, err := NewRequest(MethodGet, server.URL+"/echo", http.Header{}, nil, nil)
		require.NoError(t, err)

		_, err = client.Execute(ctx, req, DefaultOptions())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHTTPClient_CachesClientsPerOptions(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient()

	a := client.clientFor(DefaultOptions())
	b := client.clientFor(DefaultOptions())
	assert.Same(t, a, b)

	other := DefaultOptions()
	other.ReadTimeout = time.Second
	c := client.clientFor(other)
	assert.NotSame(t, a, c)

	assert.Equal(t, 2, client.PoolStats().Clients)
}

func TestHTTPClient_WithRoundTripper(t *testing.T) {
	t.Parallel()

	rt := mocks.NewRoundTripper(t)
	rt.EXPECT().RoundTrip(mock.Anything).RunAndReturn(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/users/1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		return &http.Response{
			StatusCode:    http.StatusOK,
			Status:        "200 OK",
			Proto:         "HTTP/1.0",
			ProtoMajor:    1,
			ProtoMinor:    0,
			Header:        http.Header{"Content-Type": {"application/json"}},
			Body:          io.NopCloser(strings.NewReader(`{"id":1}`)),
			ContentLength: 8,
			Request:       r,
		}, nil
	}).Once()

	client := NewHTTPClient(WithRoundTripper(rt))
	req, err := NewRequest(MethodGet, "http://api.test/users/1", http.Header{"Accept": {"application/json"}}, nil, nil)
	require.NoError(t, err)

	resp, err := client.Execute(context.Background(), req, DefaultOptions())
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "OK", resp.Reason)
	assert.Equal(t, HTTP10, resp.Protocol)
	assert.Equal(t, int64(8), resp.Length)
}

func TestReasonPhrase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Not Found", reasonPhrase(&http.Response{Status: "404 Not Found", StatusCode: 404}))
	assert.Equal(t, "Teapot Brewing", reasonPhrase(&http.Response{Status: "418 Teapot Brewing", StatusCode: 418}))
	assert.Equal(t, "Bad Gateway", reasonPhrase(&http.Response{Status: "502", StatusCode: 502}))
}

func TestProtocolVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HTTP20, protocolVersion(&http.Response{ProtoMajor: 2}))
	assert.Equal(t, HTTP10, protocolVersion(&http.Response{ProtoMajor: 1, ProtoMinor: 0}))
	assert.Equal(t, HTTP11, protocolVersion(&http.Response{ProtoMajor: 1, ProtoMinor: 1}))
}

// wrappingTransport hides an *http.Transport behind Unwrap.
type wrappingTransport struct {
	next http.RoundTripper
}

func (w *wrappingTransport) RoundTrip(r *http.Request) (*http.Response, error) { return w.next.RoundTrip(r) }

func (w *wrappingTransport) Unwrap() http.RoundTripper { return w.next }

func TestHTTPClient_PoolStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []HTTPClientOption
		want PoolStats
	}{
		{
			name: "given the default config, then its pool settings are reported",
			want: PoolStats{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				MaxConnsPerHost:     100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		{
			name: "given the high throughput config, then unlimited conns per host",
			opts: []HTTPClientOption{WithConfig(HighThroughputConfig())},
			want: PoolStats{
				MaxIdleConns:        500,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     120 * time.Second,
			},
		},
		{
			name: "given a wrapped transport, then its settings are reported",
			opts: []HTTPClientOption{WithRoundTripper(&wrappingTransport{next: &http.Transport{
				MaxIdleConns:      7,
				MaxConnsPerHost:   3,
				DisableKeepAlives: true,
			}})},
			want: PoolStats{
				MaxIdleConns:      7,
				MaxConnsPerHost:   3,
				DisableKeepAlives: true,
			},
		},
		{
			name: "given an opaque round tripper, then stats are zero",
			opts: []HTTPClientOption{WithRoundTripper(&wrappingTransport{next: mocks.NewRoundTripper(t)})},
			want: PoolStats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, NewHTTPClient(tt.opts...).PoolStats())
		})
	}
}
