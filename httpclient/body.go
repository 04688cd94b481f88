package httpclient

import (
	"io"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// spanBody ends the span of an execution once its response body is fully
// read or closed, so the span covers the time spent consuming the payload.
type spanBody struct {
	span  trace.Span
	body  io.ReadCloser
	read  atomic.Int64
	ended atomic.Bool

	// onEnd receives the number of bytes read.
	onEnd func(bytesRead int64)
}

func newSpanBody(span trace.Span, body io.ReadCloser, onEnd func(int64)) *spanBody {
	return &spanBody{span: span, body: body, onEnd: onEnd}
}

func (b *spanBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	b.read.Add(int64(n))

	switch err {
	case nil:
	case io.EOF:
		b.end()
	default:
		b.span.RecordError(err)
		b.span.SetStatus(codes.Error, err.Error())
	}
	return n, err
}

func (b *spanBody) Close() error {
	b.end()
	return b.body.Close()
}

// end runs once, whichever of EOF and Close comes first.
func (b *spanBody) end() {
	if !b.ended.CompareAndSwap(false, true) {
		return
	}
	if b.onEnd != nil {
		b.onEnd(b.read.Load())
	}
	b.span.End()
}
