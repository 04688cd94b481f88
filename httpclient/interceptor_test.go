package httpclient

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestInterceptors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		interceptor RequestInterceptor
		prepare     func(tmpl *RequestTemplate)
		header      string
		want        []string
		wantErr     bool
	}{
		{
			name:        "given basic auth, then sets the encoded credentials",
			interceptor: BasicAuthInterceptor("user", "pass"),
			header:      "Authorization",
			want:        []string{"Basic dXNlcjpwYXNz"},
		},
		{
			name: "given a bearer token, then replaces any existing Authorization",
			interceptor: BearerTokenInterceptor(func() (string, error) {
				return "fresh", nil
			}),
			prepare: func(tmpl *RequestTemplate) { tmpl.Header("Authorization", "Bearer stale") },
			header:  "Authorization",
			want:    []string{"Bearer fresh"},
		},
		{
			name: "given a failing token source, then returns its error",
			interceptor: BearerTokenInterceptor(func() (string, error) {
				return "", errors.New("token expired")
			}),
			wantErr: true,
		},
		{
			name:        "given a header interceptor, then replaces the header",
			interceptor: HeaderInterceptor("X-Api-Key", "secret"),
			prepare:     func(tmpl *RequestTemplate) { tmpl.Header("X-Api-Key", "old", "older") },
			header:      "X-Api-Key",
			want:        []string{"secret"},
		},
		{
			name:        "given an existing correlation id, then keeps it",
			interceptor: CorrelationIDInterceptor(""),
			prepare:     func(tmpl *RequestTemplate) { tmpl.Header("X-Correlation-ID", "abc") },
			header:      "X-Correlation-ID",
			want:        []string{"abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmpl := NewRequestTemplate(MethodGet, "/users")
			if tt.prepare != nil {
				tt.prepare(tmpl)
			}

			err := tt.interceptor.Apply(tmpl)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tmpl.HeaderValues(tt.header))
		})
	}
}

func TestCorrelationIDInterceptor_Generates(t *testing.T) {
	t.Parallel()

	tmpl := NewRequestTemplate(MethodGet, "/users")
	require.NoError(t, CorrelationIDInterceptor("X-Request-ID").Apply(tmpl))

	values := tmpl.HeaderValues("X-Request-ID")
	require.Len(t, values, 1)
	_, err := uuid.Parse(values[0])
	assert.NoError(t, err)
}

func TestResponseInterceptor(t *testing.T) {
	t.Parallel()

	resp := NewResponse(http.StatusOK, []byte("hello"), nil)
	ic := NewInvocationContext(StringDecoder{}, ShapeOf[string](), resp)

	got, err := DefaultResponseInterceptor{}.Intercept(ic, proceed)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	upper := ResponseInterceptorFunc(func(ic *InvocationContext, next Chain) (any, error) {
		v, err := next(ic)
		if err != nil {
			return nil, err
		}
		return v.(string) + "!", nil
	})
	got, err = upper.Intercept(NewInvocationContext(StringDecoder{}, ShapeOf[string](),
		NewResponse(http.StatusOK, []byte("hello"), nil)), proceed)
	require.NoError(t, err)
	assert.Equal(t, "hello!", got)
}
