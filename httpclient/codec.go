package httpclient

import (
	"fmt"
	"net/http"
	"reflect"
)

// Encoder writes a call argument into the request template, usually as the
// body. Errors that are not already an EncodeError are wrapped in one by
// the pipeline.
type Encoder interface {
	Encode(v any, shape Shape, tmpl *RequestTemplate) error
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(v any, shape Shape, tmpl *RequestTemplate) error

// Encode implements Encoder.
func (f EncoderFunc) Encode(v any, shape Shape, tmpl *RequestTemplate) error {
	return f(v, shape, tmpl)
}

// Decoder turns a Response into a value of the declared shape.
//
// Decoders compose by decoration: a decoder handles the outer layer of the
// shape it understands and delegates the rest. Decoders should read the
// payload through Response.Bytes so read failures can be told apart from
// decode failures.
type Decoder interface {
	Decode(resp *Response, shape Shape) (any, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(resp *Response, shape Shape) (any, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(resp *Response, shape Shape) (any, error) {
	return f(resp, shape)
}

var (
	stringType = reflect.TypeFor[string]()
	bytesType  = reflect.TypeFor[[]byte]()
)

// DefaultEncoder accepts string and []byte arguments only.
//
// Strings become UTF-8 text bodies, byte slices binary bodies. Use
// JSONEncoder for structured payloads.
type DefaultEncoder struct{}

// Encode implements Encoder.
func (DefaultEncoder) Encode(v any, shape Shape, tmpl *RequestTemplate) error {
	switch body := v.(type) {
	case nil:
		return nil
	case string:
		tmpl.SetBody([]byte(body), "UTF-8")
	case []byte:
		tmpl.SetBody(body, "")
	default:
		return &EncodeError{
			Message: fmt.Sprintf("%s is not a type supported by this encoder.", reflect.TypeOf(v)),
		}
	}
	return nil
}

// DefaultDecoder returns the empty value of the shape for 404 and 204,
// nil for a response without payload, the raw payload for a []byte shape,
// and otherwise delegates to StringDecoder.
type DefaultDecoder struct{}

// Decode implements Decoder.
func (DefaultDecoder) Decode(resp *Response, shape Shape) (any, error) {
	if resp.Status == http.StatusNotFound || resp.Status == http.StatusNoContent {
		return emptyValueOf(shape), nil
	}
	if resp.Body == nil {
		return nil, nil
	}
	if shape.Is(bytesType) {
		return resp.Bytes()
	}
	return StringDecoder{}.Decode(resp, shape)
}

// ResponseMapper transforms a Response before it is decoded.
type ResponseMapper interface {
	Map(resp *Response, shape Shape) (*Response, error)
}

// ResponseMapperFunc adapts a function to the ResponseMapper interface.
type ResponseMapperFunc func(resp *Response, shape Shape) (*Response, error)

// Map implements ResponseMapper.
func (f ResponseMapperFunc) Map(resp *Response, shape Shape) (*Response, error) {
	return f(resp, shape)
}

// ResponseMappingDecoder maps the response with a ResponseMapper and then
// hands it to the wrapped decoder. Builder.MapAndDecode installs one.
type ResponseMappingDecoder struct {
	mapper   ResponseMapper
	delegate Decoder
}

// NewResponseMappingDecoder creates a ResponseMappingDecoder.
func NewResponseMappingDecoder(mapper ResponseMapper, delegate Decoder) *ResponseMappingDecoder {
	return &ResponseMappingDecoder{mapper: mapper, delegate: delegate}
}

// Decode implements Decoder.
func (d *ResponseMappingDecoder) Decode(resp *Response, shape Shape) (any, error) {
	mapped, err := d.mapper.Map(resp, shape)
	if err != nil {
		return nil, err
	}
	return d.delegate.Decode(mapped, shape)
}
