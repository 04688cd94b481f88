package httpclient

import "net/http"

// OptionalDecoder adds optional-shape support to another decoder.
//
// Shapes that are not optional go to the delegate untouched. For an
// optional shape, 404 and 204 decode to EmptyOptional; anything else is
// decoded by the delegate against the inner shape and wrapped with
// OptionalOfValue.
type OptionalDecoder struct {
	delegate Decoder
}

// NewOptionalDecoder wraps delegate. It panics if delegate is nil.
//
// Example:
//
//	decoder := httpclient.NewOptionalDecoder(httpclient.JSONDecoder{})
func NewOptionalDecoder(delegate Decoder) *OptionalDecoder {
	if delegate == nil {
		panic("httpclient: OptionalDecoder requires a non-nil delegate")
	}
	return &OptionalDecoder{delegate: delegate}
}

// Decode implements Decoder.
func (d *OptionalDecoder) Decode(resp *Response, shape Shape) (any, error) {
	if !shape.IsOptional() {
		return d.delegate.Decode(resp, shape)
	}
	if resp.Status == http.StatusNotFound || resp.Status == http.StatusNoContent {
		return EmptyOptional(), nil
	}

	inner, _ := shape.Elem()
	v, err := d.delegate.Decode(resp, inner)
	if err != nil {
		return nil, err
	}
	return OptionalOfValue(v), nil
}
