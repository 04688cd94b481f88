package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Response is the transport-neutral result of executing a Request.
//
// A nil Body means the response carried no payload, which decoders treat
// differently from an empty one. The Body must be closed by whoever
// consumes it; the pipeline does that after decoding unless the builder
// was configured with DoNotCloseAfterDecode.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// Reason is the status reason phrase, e.g. "Not Found".
	Reason string

	// Headers are the response headers.
	Headers http.Header

	// Body is the response payload, nil when absent.
	Body io.ReadCloser

	// Length is the payload length in bytes, -1 when unknown.
	Length int64

	// Request is the request that produced this response.
	Request *Request

	// Protocol is the protocol version reported by the transport.
	Protocol ProtocolVersion

	// buffered holds the payload once Bytes has read it.
	buffered []byte
	isRead   bool
}

// NewResponse builds a buffered Response, mostly for stubs and tests.
// A nil body yields a Response without payload.
func NewResponse(status int, body []byte, req *Request) *Response {
	resp := &Response{
		Status:   status,
		Reason:   http.StatusText(status),
		Headers:  make(http.Header),
		Length:   -1,
		Request:  req,
		Protocol: HTTP11,
	}
	if body != nil {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		resp.Length = int64(len(body))
		resp.buffered = body
		resp.isRead = true
	}
	return resp
}

// Bytes reads the whole payload and keeps it in memory.
//
// The underlying stream is closed and Body is replaced by a reader over
// the buffered bytes, so later consumers can read the payload again.
// Returns nil when the response has no body.
func (r *Response) Bytes() ([]byte, error) {
	if r.isRead {
		r.Body = io.NopCloser(bytes.NewReader(r.buffered))
		return r.buffered, nil
	}
	if r.Body == nil {
		return nil, nil
	}

	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.buffered = data
	r.isRead = true
	r.Length = int64(len(data))
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// String returns the payload as text.
func (r *Response) String() (string, error) {
	data, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close releases the payload stream. It is safe to call more than once.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Header returns the first value of the named response header.
func (r *Response) Header(name string) string {
	return r.Headers.Get(name)
}

// Charset returns the charset parameter of the Content-Type header, "" if
// none is declared.
func (r *Response) Charset() string {
	ct := r.Headers.Get("Content-Type")
	if ct == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// IsError returns true if the status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.Status >= 400
}

// describe renders "status reason" for log and error messages.
func (r *Response) describe() string {
	reason := r.Reason
	if reason == "" {
		reason = http.StatusText(r.Status)
	}
	return strings.TrimSpace(fmt.Sprintf("%d %s", r.Status, reason))
}
