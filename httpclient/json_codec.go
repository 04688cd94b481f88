package httpclient

import (
	"bytes"
	"fmt"
	"net/http"
	"reflect"

	json "github.com/goccy/go-json"
)

const contentTypeJSON = "application/json"

// JSONEncoder marshals call arguments into JSON request bodies and sets
// Content-Type when the template does not already carry one.
type JSONEncoder struct{}

// Encode implements Encoder.
func (JSONEncoder) Encode(v any, _ Shape, tmpl *RequestTemplate) error {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return &EncodeError{Message: fmt.Sprintf("failed to marshal %T as JSON", v), Err: err}
	}
	tmpl.SetBody(data, "UTF-8")
	if len(tmpl.HeaderValues("Content-Type")) == 0 {
		tmpl.Header("Content-Type", contentTypeJSON)
	}
	return nil
}

// JSONDecoder unmarshals JSON payloads into scalar and collection shapes.
//
// 404 and 204 decode to the empty value of the shape, a missing or blank
// payload decodes to nil. Optional shapes need an OptionalDecoder in front.
//
// Example:
//
//	builder := httpclient.NewBuilder().
//	    Encoder(httpclient.JSONEncoder{}).
//	    Decoder(httpclient.NewOptionalDecoder(httpclient.JSONDecoder{}))
type JSONDecoder struct{}

// Decode implements Decoder.
func (JSONDecoder) Decode(resp *Response, shape Shape) (any, error) {
	if resp.Status == http.StatusNotFound || resp.Status == http.StatusNoContent {
		return emptyValueOf(shape), nil
	}
	if resp.Body == nil {
		return nil, nil
	}

	target, ok := shape.GoType()
	if !ok {
		return nil, &DecodeError{
			Status:  resp.Status,
			Message: fmt.Sprintf("%s is not a type supported by this decoder.", shape),
			Request: resp.Request,
		}
	}

	data, err := resp.Bytes()
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	ptr := reflect.New(target)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
