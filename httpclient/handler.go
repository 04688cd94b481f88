package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"time"
)

var (
	responseType = reflect.TypeFor[*Response]()
	optionsType  = reflect.TypeFor[Options]()
)

// methodHandler runs one declared method: it builds the request from the
// call arguments, executes it with retries and decodes the response.
type methodHandler struct {
	target Target
	md     *MethodMetadata
	c      Collaborators
}

func newMethodHandler(target Target, md *MethodMetadata, c Collaborators) *methodHandler {
	return &methodHandler{target: target, md: md, c: c}
}

// Invoke implements MethodHandler.
//
// args follow MethodMetadata.Params, optionally followed by an Options
// value overriding the client-wide Options for this call.
func (h *methodHandler) Invoke(ctx context.Context, args []any) (any, error) {
	n := len(h.md.Params)
	opts := h.c.options
	switch {
	case len(args) == n:
	case len(args) == n+1 && reflect.TypeOf(args[n]) == optionsType:
		opts = args[n].(Options)
	default:
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d",
			ErrInvalidArgument, h.md.ConfigKey, n, len(args))
	}

	tmpl, err := h.buildTemplate(args[:n])
	if err != nil {
		return nil, err
	}

	retryer := h.c.retryer.Clone()
	for {
		result, err := h.executeAndDecode(ctx, tmpl, opts)
		if err == nil {
			return result, nil
		}

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
		if stop := retryer.ContinueOrPropagate(ctx, retryable); stop != nil {
			return nil, h.c.propagation.propagate(stop)
		}
		h.c.logger.LogRetry(h.md.ConfigKey, h.c.logLevel)
	}
}

// buildTemplate resolves the method template with the variable arguments,
// then adds the query map, the header map and the encoded body.
func (h *methodHandler) buildTemplate(args []any) (*RequestTemplate, error) {
	vars := make(map[string]any, len(args))
	for i, p := range h.md.Params {
		if p.Kind == ParamVariable {
			vars[p.Name] = args[i]
		}
	}

	tmpl, err := h.md.Template.Resolve(vars)
	if err != nil {
		return nil, err
	}

	if i := h.md.QueryMapIndex; i >= 0 {
		if err := h.addQueryMap(tmpl, args[i]); err != nil {
			return nil, err
		}
	}
	if i := h.md.HeaderMapIndex; i >= 0 {
		if err := h.addHeaderMap(tmpl, args[i]); err != nil {
			return nil, err
		}
	}
	if i := h.md.BodyIndex; i >= 0 {
		shape := TypeShape(reflect.TypeOf(args[i]))
		if err := h.c.encoder.Encode(args[i], shape, tmpl); err != nil {
			if IsClientError(err) {
				return nil, err
			}
			return nil, &EncodeError{Message: "failed to encode " + shape.String(), Err: err}
		}
	}
	return tmpl, nil
}

// addQueryMap appends every entry of v as a query parameter, in key order.
// Maps are used as they are; anything else goes through the
// QueryMapEncoder.
func (h *methodHandler) addQueryMap(tmpl *RequestTemplate, v any) error {
	var entries map[string]any
	switch m := v.(type) {
	case nil:
		return nil
	case map[string]any:
		entries = m
	case map[string]string:
		entries = make(map[string]any, len(m))
		for k, s := range m {
			entries[k] = s
		}
	case url.Values:
		entries = make(map[string]any, len(m))
		for k, s := range m {
			entries[k] = s
		}
	case map[string][]string:
		entries = make(map[string]any, len(m))
		for k, s := range m {
			entries[k] = s
		}
	default:
		var err error
		if entries, err = h.c.queryMapEncoder.Encode(v); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(entries) {
		values := formatValues(entries[name])
		if values == nil {
			continue
		}
		tmpl.Query(name, values...)
	}
	return nil
}

// addHeaderMap appends every entry of a map argument as a header.
func (h *methodHandler) addHeaderMap(tmpl *RequestTemplate, v any) error {
	switch m := v.(type) {
	case nil:
	case http.Header:
		for _, name := range sortedKeys(m) {
			tmpl.Header(name, m[name]...)
		}
	case map[string][]string:
		for _, name := range sortedKeys(m) {
			tmpl.Header(name, m[name]...)
		}
	case map[string]string:
		for _, name := range sortedKeys(m) {
			tmpl.Header(name, m[name])
		}
	case map[string]any:
		for _, name := range sortedKeys(m) {
			if values := formatValues(m[name]); values != nil {
				tmpl.Header(name, values...)
			}
		}
	default:
		return fmt.Errorf("%w: %s: header map argument must be a map, got %T",
			ErrInvalidArgument, h.md.ConfigKey, v)
	}
	return nil
}

// executeAndDecode runs a single attempt.
func (h *methodHandler) executeAndDecode(ctx context.Context, resolved *RequestTemplate, opts Options) (any, error) {
	tmpl := resolved.Clone()
	for _, interceptor := range h.c.requestInterceptors {
		if err := interceptor.Apply(tmpl); err != nil {
			return nil, err
		}
	}

	req, err := h.target.Apply(tmpl)
	if err != nil {
		return nil, err
	}

	h.c.logger.LogRequest(h.md.ConfigKey, h.c.logLevel, req)

	start := time.Now()
	resp, err := h.c.client.Execute(ctx, req, opts)
	elapsed := time.Since(start)
	if err != nil {
		h.c.logger.LogIOError(h.md.ConfigKey, h.c.logLevel, err, elapsed)
		return nil, errorExecuting(req, err)
	}
	if resp.Request == nil {
		resp.Request = req
	}

	return h.handleResponse(resp, elapsed)
}

// handleResponse decodes successful and dismissed 404 responses and hands
// everything else to the ErrorDecoder. The body is closed afterwards unless
// the method returns the raw Response or DoNotCloseAfterDecode was set.
func (h *methodHandler) handleResponse(resp *Response, elapsed time.Duration) (result any, err error) {
	closeAfter := true
	defer func() {
		if closeAfter {
			_ = resp.Close()
		}
	}()

	logged, err := h.c.logger.LogResponse(h.md.ConfigKey, h.c.logLevel, resp, elapsed)
	if err != nil {
		return nil, &ReadError{Request: resp.Request, Response: resp, Err: err}
	}
	if logged != nil {
		resp = logged
	}

	shape := h.md.Returns
	if shape.Is(responseType) {
		closeAfter = false
		return resp, nil
	}

	if resp.IsSuccess() || (h.c.dismiss404 && resp.Status == http.StatusNotFound) {
		if shape.IsVoid() {
			return nil, nil
		}
		closeAfter = h.c.closeAfterDecode
		ic := NewInvocationContext(h.c.decoder, shape, resp)
		return h.c.responseInterceptor.Intercept(ic, proceed)
	}

	return nil, h.c.errorDecoder.Decode(h.md.ConfigKey, resp)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
