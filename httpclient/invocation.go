package httpclient

import (
	"fmt"
	"io"
)

// InvocationContext couples the decoder chosen for a call, the declared
// result shape and the received response.
//
// Proceed is the single place where decode failures are normalized, so a
// caller only ever sees errors from the client's taxonomy.
type InvocationContext struct {
	decoder  Decoder
	shape    Shape
	response *Response
}

// NewInvocationContext creates an InvocationContext.
func NewInvocationContext(decoder Decoder, shape Shape, resp *Response) *InvocationContext {
	return &InvocationContext{decoder: decoder, shape: shape, response: resp}
}

// Decoder returns the decoder used by Proceed.
func (ic *InvocationContext) Decoder() Decoder { return ic.decoder }

// Shape returns the declared result shape.
func (ic *InvocationContext) Shape() Shape { return ic.shape }

// Response returns the response being decoded.
func (ic *InvocationContext) Response() *Response { return ic.response }

// Proceed decodes the response.
//
// Errors already in the taxonomy are returned unchanged. A failure while
// reading the payload becomes a ReadError; any other error, or a panic in
// the decoder, becomes a DecodeError.
func (ic *InvocationContext) Proceed() (result any, err error) {
	resp := ic.response

	var tracker *readTracker
	if resp.Body != nil {
		tracker = &readTracker{ReadCloser: resp.Body}
		resp.Body = tracker
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &DecodeError{
				Status:  resp.Status,
				Message: fmt.Sprint(r),
				Request: resp.Request,
				Err:     fmt.Errorf("decoder panic: %v", r),
			}
		}
	}()

	result, err = ic.decoder.Decode(resp, ic.shape)
	if err == nil {
		return result, nil
	}

	switch {
	case IsClientError(err):
		return nil, err
	case tracker != nil && tracker.err != nil:
		return nil, &ReadError{Request: resp.Request, Response: resp, Err: err}
	default:
		return nil, &DecodeError{
			Status:  resp.Status,
			Message: err.Error(),
			Request: resp.Request,
			Err:     err,
		}
	}
}

// readTracker remembers the first non-EOF error returned by the payload
// stream.
type readTracker struct {
	io.ReadCloser
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.ReadCloser.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
