package httpclient

import (
	"fmt"
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// HTTPMethod is an HTTP request method understood by the client.
type HTTPMethod string

// Supported HTTP methods.
const (
	MethodGet     HTTPMethod = http.MethodGet
	MethodHead    HTTPMethod = http.MethodHead
	MethodPost    HTTPMethod = http.MethodPost
	MethodPut     HTTPMethod = http.MethodPut
	MethodDelete  HTTPMethod = http.MethodDelete
	MethodConnect HTTPMethod = http.MethodConnect
	MethodOptions HTTPMethod = http.MethodOptions
	MethodTrace   HTTPMethod = http.MethodTrace
	MethodPatch   HTTPMethod = http.MethodPatch
)

// methodsWithBody lists the methods for which a request body is
// semantically permitted.
var methodsWithBody = map[HTTPMethod]bool{
	MethodGet:     false,
	MethodHead:    false,
	MethodPost:    true,
	MethodPut:     true,
	MethodDelete:  false,
	MethodConnect: false,
	MethodOptions: false,
	MethodTrace:   false,
	MethodPatch:   true,
}

// ParseHTTPMethod converts a case-insensitive method name into an HTTPMethod.
func ParseHTTPMethod(s string) (HTTPMethod, error) {
	m := HTTPMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown http method %q", ErrInvalidArgument, s)
	}
	return m, nil
}

// Valid reports whether m is one of the supported methods.
func (m HTTPMethod) Valid() bool {
	_, ok := methodsWithBody[m]
	return ok
}

// AllowsBody reports whether a request body is permitted for m.
func (m HTTPMethod) AllowsBody() bool {
	return methodsWithBody[m]
}

// String implements fmt.Stringer.
func (m HTTPMethod) String() string { return string(m) }

// ProtocolVersion is the informational protocol version carried by a
// Request or Response.
type ProtocolVersion string

// Known protocol versions.
const (
	HTTP10 ProtocolVersion = "HTTP/1.0"
	HTTP11 ProtocolVersion = "HTTP/1.1"
	HTTP20 ProtocolVersion = "HTTP/2.0"
	MOCK   ProtocolVersion = "MOCK"
)

// binaryDataMarker replaces the body text when a payload cannot be
// rendered as text.
const binaryDataMarker = "Binary data"

// Body is an immutable request payload with an optional character set.
//
// A Body without a charset, or without data, is binary.
type Body struct {
	data    []byte
	charset string
}

// NewBody creates a Body from raw bytes. An empty charset marks the body
// as binary. The data is copied.
func NewBody(data []byte, charset string) *Body {
	var cp []byte
	if data != nil {
		cp = make([]byte, len(data))
		copy(cp, data)
	}
	return &Body{data: cp, charset: charset}
}

// TextBody creates a UTF-8 encoded Body from s.
func TextBody(s string) *Body {
	return &Body{data: []byte(s), charset: "UTF-8"}
}

// BinaryBody creates a Body without a charset.
func BinaryBody(data []byte) *Body {
	return NewBody(data, "")
}

// EmptyBody creates a Body with no data and no charset.
func EmptyBody() *Body {
	return &Body{}
}

// Bytes returns a copy of the payload, or nil when the body has no data.
func (b *Body) Bytes() []byte {
	if b == nil || b.data == nil {
		return nil
	}
	cp := make([]byte, len(b.data))
	copy(cp, b.data)
	return cp
}

// Charset returns the declared character set and whether one is present.
func (b *Body) Charset() (string, bool) {
	if b == nil || b.charset == "" {
		return "", false
	}
	return b.charset, true
}

// Length returns the payload size in bytes, 0 when there is no data.
func (b *Body) Length() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// IsBinary reports whether the body lacks a charset or data.
func (b *Body) IsBinary() bool {
	return b == nil || b.charset == "" || b.data == nil
}

// String returns the payload as text, or "Binary data" for binary bodies.
// Non UTF-8 charsets are converted when the charset is known.
func (b *Body) String() string {
	if b.IsBinary() {
		return binaryDataMarker
	}
	switch strings.ToLower(b.charset) {
	case "utf-8", "utf8", "us-ascii":
		return string(b.data)
	}
	enc, err := htmlindex.Get(b.charset)
	if err != nil {
		return string(b.data)
	}
	text, err := enc.NewDecoder().Bytes(b.data)
	if err != nil {
		return string(b.data)
	}
	return string(text)
}

// Request is an immutable HTTP request produced by the invocation pipeline
// and handed to a Client.
//
// The only mutation allowed after construction is SetHeader, which the
// pipeline uses while it still owns the request.
type Request struct {
	method   HTTPMethod
	url      string
	headers  http.Header
	body     *Body
	protocol ProtocolVersion
	template *RequestTemplate
}

// NewRequest validates its arguments and builds a Request.
//
// The method must be a supported HTTPMethod, the url must be non-empty and
// headers must be non-nil. Header names are canonicalized and the header map
// is copied, so later changes by the caller are not observed.
//
// Example:
//
//	req, err := httpclient.NewRequest(
//	    httpclient.MethodGet,
//	    "https://api.example.com/users/42",
//	    http.Header{"Accept": {"application/json"}},
//	    nil,
//	    nil,
//	)
func NewRequest(
	method HTTPMethod,
	url string,
	headers map[string][]string,
	body *Body,
	tmpl *RequestTemplate,
) (*Request, error) {
	if method == "" {
		return nil, fmt.Errorf("%w: http method is required", ErrInvalidArgument)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown http method %q", ErrInvalidArgument, method)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidArgument)
	}
	if headers == nil {
		return nil, fmt.Errorf("%w: headers are required", ErrInvalidArgument)
	}

	return &Request{
		method:   method,
		url:      url,
		headers:  copyHeaders(headers),
		body:     body,
		protocol: HTTP11,
		template: tmpl,
	}, nil
}

// Method returns the HTTP method.
func (r *Request) Method() HTTPMethod { return r.method }

// URL returns the fully expanded request URL.
func (r *Request) URL() string { return r.url }

// Headers returns a copy of the request headers.
func (r *Request) Headers() http.Header { return copyHeaders(r.headers) }

// Header returns the first value of the named header.
func (r *Request) Header(name string) string { return r.headers.Get(name) }

// SetHeader replaces every value of the named header.
//
// SetHeader is the single post-construction mutation point and must not
// be called concurrently on the same Request.
func (r *Request) SetHeader(name string, values ...string) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	if len(values) == 0 {
		delete(r.headers, key)
		return
	}
	r.headers[key] = append([]string(nil), values...)
}

// Body returns the request payload, or nil when there is none.
func (r *Request) Body() *Body { return r.body }

// Charset returns the body charset, "" when absent.
func (r *Request) Charset() string {
	cs, _ := r.body.Charset()
	return cs
}

// IsBinary reports whether the body is binary or absent.
func (r *Request) IsBinary() bool { return r.body.IsBinary() }

// Length returns the body length, 0 when there is no body.
func (r *Request) Length() int { return r.body.Length() }

// ProtocolVersion returns the informational protocol version.
func (r *Request) ProtocolVersion() ProtocolVersion { return r.protocol }

// Template returns the template the request was built from, if any.
func (r *Request) Template() *RequestTemplate { return r.template }

// String renders the request in its on-wire text form. It is meant for
// diagnostics only.
func (r *Request) String() string {
	var sb strings.Builder
	sb.WriteString(string(r.method))
	sb.WriteByte(' ')
	sb.WriteString(r.url)
	sb.WriteByte(' ')
	sb.WriteString(string(r.protocol))
	sb.WriteByte('\n')

	for _, name := range sortedHeaderNames(r.headers) {
		for _, v := range r.headers[name] {
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteByte('\n')
		}
	}

	if r.body != nil {
		sb.WriteByte('\n')
		sb.WriteString(r.body.String())
	}
	return sb.String()
}

func copyHeaders(h map[string][]string) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		key := textproto.CanonicalMIMEHeaderKey(k)
		out[key] = append(out[key], vs...)
	}
	return out
}

func sortedHeaderNames(h map[string][]string) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
