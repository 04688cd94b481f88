package httpclient

import (
	"fmt"
	"net/http"
)

// StringDecoder decodes a payload as UTF-8 text into a string shape.
//
// 404 and 204 responses, and responses without payload, decode to nil.
// Any shape other than string fails with a DecodeError.
type StringDecoder struct{}

// Decode implements Decoder.
func (StringDecoder) Decode(resp *Response, shape Shape) (any, error) {
	if resp.Status == http.StatusNotFound || resp.Status == http.StatusNoContent || resp.Body == nil {
		return nil, nil
	}
	if !shape.Is(stringType) {
		return nil, &DecodeError{
			Status:  resp.Status,
			Message: fmt.Sprintf("%s is not a type supported by this decoder.", shape),
			Request: resp.Request,
		}
	}
	return resp.String()
}
