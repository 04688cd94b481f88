package httpclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestTemplate_SplitsQuery(t *testing.T) {
	t.Parallel()

	tmpl := NewRequestTemplate(MethodGet, "/search?q={query}&page=1&flag")

	assert.Equal(t, "/search", tmpl.URI())
	assert.Equal(t, []string{"{query}"}, tmpl.QueryValues("q"))
	assert.Equal(t, []string{"1"}, tmpl.QueryValues("page"))
	assert.Empty(t, tmpl.QueryValues("flag"))
}

func TestRequestTemplate_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		uri         string
		headers     map[string][]string
		vars        map[string]any
		wantURL     string
		wantHeaders map[string][]string
	}{
		{
			name:    "given path variables, then they are path escaped",
			uri:     "/users/{id}/files/{name}",
			vars:    map[string]any{"id": 42, "name": "a b/c"},
			wantURL: "http://api.test/users/42/files/a%20b%2Fc",
		},
		{
			name:    "given an undefined path variable, then it expands to empty",
			uri:     "/users/{id}",
			vars:    map[string]any{},
			wantURL: "http://api.test/users/",
		},
		{
			name:    "given a slice query variable, then one value per element",
			uri:     "/search?tag={tags}",
			vars:    map[string]any{"tags": []string{"a", "b c"}},
			wantURL: "http://api.test/search?tag=a&tag=b+c",
		},
		{
			name:    "given an undefined query variable, then the query is dropped",
			uri:     "/search?q={q}&limit=10",
			vars:    map[string]any{},
			wantURL: "http://api.test/search?limit=10",
		},
		{
			name:    "given a nil pointer query variable, then the query is dropped",
			uri:     "/search?q={q}",
			vars:    map[string]any{"q": (*string)(nil)},
			wantURL: "http://api.test/search",
		},
		{
			name:    "given header templates, then defined ones are expanded",
			uri:     "/items",
			headers: map[string][]string{"Accept": {"{accept}"}, "X-Trace": {"{trace}"}, "X-Static": {"v1"}},
			vars:    map[string]any{"accept": "application/json"},
			wantURL: "http://api.test/items",
			wantHeaders: map[string][]string{
				"Accept":   {"application/json"},
				"X-Static": {"v1"},
			},
		},
		{
			name:    "given a composite header value, then it is expanded when any variable is defined",
			uri:     "/items",
			headers: map[string][]string{"Authorization": {"Bearer {token}"}},
			vars:    map[string]any{"token": "abc"},
			wantURL: "http://api.test/items",
			wantHeaders: map[string][]string{
				"Authorization": {"Bearer abc"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmpl := NewRequestTemplate(MethodGet, tt.uri)
			for name, values := range tt.headers {
				tmpl.Header(name, values...)
			}

			resolved, err := tmpl.Resolve(tt.vars)
			require.NoError(t, err)
			resolved.SetTarget("http://api.test/")

			assert.True(t, resolved.Resolved())
			assert.False(t, tmpl.Resolved())
			assert.Equal(t, tt.wantURL, resolved.URL())
			if tt.wantHeaders != nil {
				assert.Equal(t, tt.wantHeaders, map[string][]string(resolved.Headers()))
			}
		})
	}
}

func TestRequestTemplate_ResolveUnterminatedExpression(t *testing.T) {
	t.Parallel()

	_, err := NewRequestTemplate(MethodGet, "/users/{id").Resolve(map[string]any{"id": 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRequestTemplate_FormatsValues(t *testing.T) {
	t.Parallel()

	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	resolved, err := NewRequestTemplate(MethodGet, "/events?since={since}&active={active}").
		Resolve(map[string]any{"since": when, "active": true})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-01T10:00:00Z"}, resolved.QueryValues("since"))
	assert.Equal(t, []string{"true"}, resolved.QueryValues("active"))
}

func TestRequestTemplate_Clone(t *testing.T) {
	t.Parallel()

	tmpl := NewRequestTemplate(MethodPost, "/items?a=1").Header("X-A", "1").SetBody([]byte("x"), "UTF-8")
	clone := tmpl.Clone()

	clone.Header("X-A", "2").Query("a", "2").SetBody([]byte("y"), "UTF-8")

	assert.Equal(t, []string{"1"}, tmpl.HeaderValues("X-A"))
	assert.Equal(t, []string{"1"}, tmpl.QueryValues("a"))
	assert.Equal(t, []byte("x"), tmpl.Body())
}

func TestRequestTemplate_Request(t *testing.T) {
	t.Parallel()

	t.Run("given an unresolved template, then fails", func(t *testing.T) {
		t.Parallel()

		_, err := NewRequestTemplate(MethodGet, "/a").Request()
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("given a resolved template with a body, then the request carries it", func(t *testing.T) {
		t.Parallel()

		resolved, err := NewRequestTemplate(MethodPost, "http://api.test/items").Resolve(nil)
		require.NoError(t, err)
		resolved.SetBody([]byte(`{"a":1}`), "UTF-8")

		req, err := resolved.Request()
		require.NoError(t, err)
		assert.Equal(t, MethodPost, req.Method())
		assert.Equal(t, "http://api.test/items", req.URL())
		assert.Equal(t, `{"a":1}`, req.Body().String())
		assert.Equal(t, "UTF-8", req.Charset())
		assert.Same(t, resolved, req.Template())
	})

	t.Run("given no body, then the request has none", func(t *testing.T) {
		t.Parallel()

		resolved, err := NewRequestTemplate(MethodGet, "http://api.test/items").Resolve(nil)
		require.NoError(t, err)

		req, err := resolved.Request()
		require.NoError(t, err)
		assert.Nil(t, req.Body())
		assert.Equal(t, 0, req.Length())
	})
}

func TestHardCodedTarget_Apply(t *testing.T) {
	t.Parallel()

	target := NewTarget("users", "http://api.test/v1/")

	relative, err := NewRequestTemplate(MethodGet, "/users").Resolve(nil)
	require.NoError(t, err)
	req, err := target.Apply(relative)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/v1/users", req.URL())

	absolute, err := NewRequestTemplate(MethodGet, "https://other.test/x").Resolve(nil)
	require.NoError(t, err)
	req, err = target.Apply(absolute)
	require.NoError(t, err)
	assert.Equal(t, "https://other.test/x", req.URL())

	assert.Equal(t, "users", target.Name())
	assert.Equal(t, "HardCodedTarget(name=users, url=http://api.test/v1/)", target.String())
}
