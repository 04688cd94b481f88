package httpclient

import (
	"fmt"
	"net/http"
	"net/textproto"
	"net/url"
	"reflect"
	"strings"
	"time"
)

// nameValues is an ordered query parameter.
type nameValues struct {
	name   string
	values []string
}

// RequestTemplate is a request under construction. Its URI, query values
// and header values may contain {name} expressions that Resolve expands.
//
// Request interceptors and encoders receive the template of the current
// call and may change it freely; every call works on its own copy.
type RequestTemplate struct {
	method   HTTPMethod
	target   string
	uri      string
	queries  []nameValues
	headers  http.Header
	body     []byte
	charset  string
	hasBody  bool
	resolved bool
}

// NewRequestTemplate creates a template for method and uri. A query part in
// uri is split into query templates.
func NewRequestTemplate(method HTTPMethod, uri string) *RequestTemplate {
	t := &RequestTemplate{method: method, headers: make(http.Header)}
	path, rawQuery, _ := strings.Cut(uri, "?")
	t.uri = path
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, hasValue := strings.Cut(pair, "=")
		name = unescapeQuery(name)
		if !hasValue {
			t.Query(name)
			continue
		}
		t.Query(name, unescapeQuery(value))
	}
	return t
}

func unescapeQuery(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// Method returns the HTTP method.
func (t *RequestTemplate) Method() HTTPMethod { return t.method }

// URI returns the path part, expanded once the template is resolved.
func (t *RequestTemplate) URI() string { return t.uri }

// Target returns the base URL prepended to relative URIs.
func (t *RequestTemplate) Target() string { return t.target }

// SetTarget sets the base URL.
func (t *RequestTemplate) SetTarget(base string) *RequestTemplate {
	t.target = strings.TrimSuffix(base, "/")
	return t
}

// Header appends values to the named header.
func (t *RequestTemplate) Header(name string, values ...string) *RequestTemplate {
	key := textproto.CanonicalMIMEHeaderKey(name)
	t.headers[key] = append(t.headers[key], values...)
	return t
}

// RemoveHeader drops the named header.
func (t *RequestTemplate) RemoveHeader(name string) *RequestTemplate {
	t.headers.Del(name)
	return t
}

// HeaderValues returns the values of the named header.
func (t *RequestTemplate) HeaderValues(name string) []string {
	return t.headers.Values(name)
}

// Headers returns a copy of all headers.
func (t *RequestTemplate) Headers() http.Header { return copyHeaders(t.headers) }

// Query appends values to the named query parameter.
func (t *RequestTemplate) Query(name string, values ...string) *RequestTemplate {
	for i := range t.queries {
		if t.queries[i].name == name {
			t.queries[i].values = append(t.queries[i].values, values...)
			return t
		}
	}
	t.queries = append(t.queries, nameValues{name: name, values: append([]string(nil), values...)})
	return t
}

// QueryValues returns the values of the named query parameter.
func (t *RequestTemplate) QueryValues(name string) []string {
	for _, q := range t.queries {
		if q.name == name {
			return append([]string(nil), q.values...)
		}
	}
	return nil
}

// SetBody sets the payload. An empty charset marks it binary.
func (t *RequestTemplate) SetBody(data []byte, charset string) *RequestTemplate {
	t.body = data
	t.charset = charset
	t.hasBody = true
	return t
}

// Body returns the payload, nil when none was set.
func (t *RequestTemplate) Body() []byte { return t.body }

// Resolved reports whether Resolve produced this template.
func (t *RequestTemplate) Resolved() bool { return t.resolved }

// Clone returns a deep copy.
func (t *RequestTemplate) Clone() *RequestTemplate {
	cp := *t
	cp.headers = copyHeaders(t.headers)
	cp.queries = make([]nameValues, len(t.queries))
	for i, q := range t.queries {
		cp.queries[i] = nameValues{name: q.name, values: append([]string(nil), q.values...)}
	}
	if t.body != nil {
		cp.body = append([]byte(nil), t.body...)
	}
	return &cp
}

// Resolve returns a copy with every {name} expression expanded from vars.
//
// Path expressions are path-escaped and expand to "" when undefined. A
// query or header value made of a single expression expands to one value
// per element when the variable is a slice. Undefined values are dropped,
// and a query or header left without values is removed.
func (t *RequestTemplate) Resolve(vars map[string]any) (*RequestTemplate, error) {
	out := t.Clone()

	path, err := expand(t.uri, vars, url.PathEscape)
	if err != nil {
		return nil, err
	}
	out.uri = path

	out.queries = out.queries[:0]
	for _, q := range t.queries {
		values, err := expandValues(q.values, vars)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 && len(q.values) > 0 {
			continue
		}
		out.queries = append(out.queries, nameValues{name: q.name, values: values})
	}

	out.headers = make(http.Header, len(t.headers))
	for name, vs := range t.headers {
		values, err := expandValues(vs, vars)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		out.headers[name] = values
	}

	out.resolved = true
	return out, nil
}

// URL renders target, path and query string.
func (t *RequestTemplate) URL() string {
	var sb strings.Builder
	if !isAbsoluteURL(t.uri) {
		sb.WriteString(t.target)
	}
	sb.WriteString(t.uri)

	sep := "?"
	if strings.Contains(t.uri, "?") {
		sep = "&"
	}
	for _, q := range t.queries {
		name := url.QueryEscape(q.name)
		if len(q.values) == 0 {
			sb.WriteString(sep)
			sb.WriteString(name)
			sep = "&"
			continue
		}
		for _, v := range q.values {
			sb.WriteString(sep)
			sb.WriteString(name)
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
			sep = "&"
		}
	}
	return sb.String()
}

// Request builds the Request. The template must be resolved.
func (t *RequestTemplate) Request() (*Request, error) {
	if !t.resolved {
		return nil, fmt.Errorf("%w: template %s %s is not resolved", ErrInvalidArgument, t.method, t.uri)
	}
	var body *Body
	if t.hasBody {
		body = NewBody(t.body, t.charset)
	}
	return NewRequest(t.method, t.URL(), t.headers, body, t)
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// expand substitutes every {name} in s with the escaped, comma-joined
// values of the variable.
func expand(s string, vars map[string]any, escape func(string) string) (string, error) {
	var sb strings.Builder
	for {
		start := strings.IndexByte(s, '{')
		if start < 0 {
			sb.WriteString(s)
			return sb.String(), nil
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated expression in %q", ErrInvalidArgument, s)
		}
		end += start

		sb.WriteString(s[:start])
		name := strings.TrimSpace(s[start+1 : end])
		values := formatValues(vars[name])
		for i, v := range values {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(escape(v))
		}
		s = s[end+1:]
	}
}

// expandValues expands query or header values, dropping undefined ones.
func expandValues(templates []string, vars map[string]any) ([]string, error) {
	var out []string
	for _, tv := range templates {
		if name, ok := singleExpression(tv); ok {
			out = append(out, formatValues(vars[name])...)
			continue
		}
		if !strings.Contains(tv, "{") {
			out = append(out, tv)
			continue
		}
		if !anyDefined(tv, vars) {
			continue
		}
		v, err := expand(tv, vars, func(s string) string { return s })
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// singleExpression reports whether s is exactly one {name} expression.
func singleExpression(s string) (string, bool) {
	if len(s) < 3 || s[0] != '{' || s[len(s)-1] != '}' || strings.Count(s, "{") != 1 {
		return "", false
	}
	return strings.TrimSpace(s[1 : len(s)-1]), true
}

func anyDefined(s string, vars map[string]any) bool {
	for _, name := range expressionNames(s) {
		if formatValues(vars[name]) != nil {
			return true
		}
	}
	return false
}

// expressionNames lists the variable names referenced by s.
func expressionNames(s string) []string {
	var names []string
	for {
		start := strings.IndexByte(s, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			return names
		}
		names = append(names, strings.TrimSpace(s[start+1:start+end]))
		s = s[start+end+1:]
	}
}

// formatValues renders a variable as template values. nil, nil pointers
// and empty slices are undefined and yield nil.
func formatValues(v any) []string {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		var out []string
		for i := 0; i < rv.Len(); i++ {
			out = append(out, formatValues(rv.Index(i).Interface())...)
		}
		return out
	}
	return []string{formatScalar(rv.Interface())}
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
