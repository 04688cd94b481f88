package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidArgument is returned when a value is constructed or configured
// with arguments that violate its contract.
var ErrInvalidArgument = errors.New("invalid argument")

// clientError marks errors that belong to this package's failure taxonomy.
type clientError interface {
	error
	clientError()
}

// IsClientError reports whether err, or any error it wraps, belongs to the
// client's failure taxonomy: StatusError, RetryableError, EncodeError,
// DecodeError, ReadError or ExecuteError.
func IsClientError(err error) bool {
	var ce clientError
	return errors.As(err, &ce)
}

// StatusError is returned for a response whose status was not handled as a
// success. It is produced by the ErrorDecoder.
//
// Use errors.Is with the status sentinels to classify it:
//
//	if errors.Is(err, httpclient.ErrNotFound) {
//	    // 404
//	}
type StatusError struct {
	Status  int
	Message string
	Method  HTTPMethod
	URL     string
	Headers http.Header

	// Body holds at most maxErrorBodyBytes of the response payload.
	Body []byte

	Err error
}

func (*StatusError) clientError() {}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("[%d] during [%s] to [%s]", e.Status, e.Method, e.URL)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is matches another StatusError with the same status, so the sentinels
// below can be used with errors.Is.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return t.Message == "" && t.URL == "" && t.Status == e.Status
}

// IsClientFault reports a 4xx status.
func (e *StatusError) IsClientFault() bool { return e.Status >= 400 && e.Status < 500 }

// IsServerFault reports a 5xx status.
func (e *StatusError) IsServerFault() bool { return e.Status >= 500 && e.Status < 600 }

// Status sentinels for errors.Is.
var (
	ErrBadRequest         = &StatusError{Status: http.StatusBadRequest}
	ErrUnauthorized       = &StatusError{Status: http.StatusUnauthorized}
	ErrForbidden          = &StatusError{Status: http.StatusForbidden}
	ErrNotFound           = &StatusError{Status: http.StatusNotFound}
	ErrConflict           = &StatusError{Status: http.StatusConflict}
	ErrTooManyRequests    = &StatusError{Status: http.StatusTooManyRequests}
	ErrInternalServer     = &StatusError{Status: http.StatusInternalServerError}
	ErrBadGateway         = &StatusError{Status: http.StatusBadGateway}
	ErrServiceUnavailable = &StatusError{Status: http.StatusServiceUnavailable}
	ErrGatewayTimeout     = &StatusError{Status: http.StatusGatewayTimeout}
)

// RetryableError signals a failure the Retryer may try again.
//
// Status is -1 when the failure happened before a response was received.
type RetryableError struct {
	Status  int
	Message string
	Method  HTTPMethod

	// RetryAfter is the earliest time to retry, zero when unknown.
	RetryAfter time.Time

	Request *Request
	Err     error
}

func (*RetryableError) clientError() {}

func (e *RetryableError) Error() string { return e.Message }

func (e *RetryableError) Unwrap() error { return e.Err }

// EncodeError is returned when a call argument cannot be turned into its
// wire form, including failures while decomposing a query map object.
type EncodeError struct {
	Message string
	Err     error
}

func (*EncodeError) clientError() {}

func (e *EncodeError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError is returned when a response cannot be turned into the
// declared result shape.
type DecodeError struct {
	Status  int
	Message string
	Request *Request
	Err     error
}

func (*DecodeError) clientError() {}

func (e *DecodeError) Error() string { return e.Message }

func (e *DecodeError) Unwrap() error { return e.Err }

// ReadError is returned when reading the response payload fails.
type ReadError struct {
	Request  *Request
	Response *Response
	Err      error
}

func (*ReadError) clientError() {}

func (e *ReadError) Error() string {
	method, url := describeRequest(e.Request)
	return fmt.Sprintf("%v reading %s %s", e.Err, method, url)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Status returns the status of the response being read, -1 if unknown.
func (e *ReadError) Status() int {
	if e.Response == nil {
		return -1
	}
	return e.Response.Status
}

// ExecuteError is returned when the Client fails with an error that is
// not worth retrying, such as a cancelled context or a TLS failure.
type ExecuteError struct {
	Request *Request
	Err     error
}

func (*ExecuteError) clientError() {}

func (e *ExecuteError) Error() string {
	method, url := describeRequest(e.Request)
	return fmt.Sprintf("%v executing %s %s", e.Err, method, url)
}

func (e *ExecuteError) Unwrap() error { return e.Err }

func describeRequest(req *Request) (HTTPMethod, string) {
	if req == nil {
		return "", ""
	}
	return req.Method(), req.URL()
}
