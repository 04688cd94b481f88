package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// maxErrorBodyBytes bounds the payload kept on a StatusError.
const maxErrorBodyBytes = 8 * 1024

// ErrorDecoder turns a response that was not decoded as a success into an
// error. Returning a *RetryableError lets the Retryer try the call again.
type ErrorDecoder interface {
	Decode(methodKey string, resp *Response) error
}

// ErrorDecoderFunc adapts a function to the ErrorDecoder interface.
type ErrorDecoderFunc func(methodKey string, resp *Response) error

// Decode implements ErrorDecoder.
func (f ErrorDecoderFunc) Decode(methodKey string, resp *Response) error {
	return f(methodKey, resp)
}

// DefaultErrorDecoder returns a *StatusError carrying the start of the
// payload. When the response has a valid Retry-After header, the
// StatusError is wrapped in a *RetryableError that retries no earlier than
// the header asks.
type DefaultErrorDecoder struct {
	// Clock resolves relative Retry-After values. Defaults to the wall clock.
	Clock clock.Clock
}

// Decode implements ErrorDecoder.
func (d DefaultErrorDecoder) Decode(methodKey string, resp *Response) error {
	statusErr := newStatusError(methodKey, resp)

	retryAfter, ok := parseRetryAfter(resp.Header("Retry-After"), d.now())
	if !ok {
		return statusErr
	}
	return &RetryableError{
		Status:     resp.Status,
		Message:    statusErr.Error(),
		Method:     statusErr.Method,
		RetryAfter: retryAfter,
		Request:    resp.Request,
		Err:        statusErr,
	}
}

func (d DefaultErrorDecoder) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock.Now()
}

// newStatusError reads at most maxErrorBodyBytes of the payload and builds
// the StatusError for resp.
func newStatusError(methodKey string, resp *Response) *StatusError {
	method, url := describeRequest(resp.Request)
	statusErr := &StatusError{
		Status:  resp.Status,
		Method:  method,
		URL:     url,
		Headers: resp.Headers,
	}

	if resp.Body != nil {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if err != nil {
			statusErr.Err = err
		}
		statusErr.Body = body
	}

	msg := fmt.Sprintf("[%s] during [%s] to [%s] [%s]", resp.describe(), method, url, methodKey)
	if len(statusErr.Body) > 0 {
		msg += ": [" + strings.TrimSpace(string(statusErr.Body)) + "]"
	}
	statusErr.Message = msg
	return statusErr
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return time.Time{}, false
		}
		return now.Add(time.Duration(secs) * time.Second), true
	}
	if t, err := http.ParseTime(value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// RetryableStatusErrorDecoder marks 429, 502, 503 and 504 responses as
// retryable on top of another ErrorDecoder.
//
// Example:
//
//	builder.ErrorDecoder(httpclient.RetryableStatusErrorDecoder{
//	    Delegate: httpclient.DefaultErrorDecoder{},
//	})
type RetryableStatusErrorDecoder struct {
	Delegate ErrorDecoder
}

// Decode implements ErrorDecoder.
func (d RetryableStatusErrorDecoder) Decode(methodKey string, resp *Response) error {
	delegate := d.Delegate
	if delegate == nil {
		delegate = DefaultErrorDecoder{}
	}
	err := delegate.Decode(methodKey, resp)

	var retryable *RetryableError
	if errors.As(err, &retryable) || !isRetryableStatusCode(resp.Status) {
		return err
	}
	method, _ := describeRequest(resp.Request)
	return &RetryableError{
		Status:  resp.Status,
		Message: err.Error(),
		Method:  method,
		Request: resp.Request,
		Err:     err,
	}
}
