package httpclient

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// RequestInterceptor modifies the template of every call before it is
// turned into a Request. Interceptors run in registration order on a
// private copy of the resolved template.
//
// Common use cases:
//   - Adding authentication headers (Bearer tokens, API keys)
//   - Injecting correlation IDs
//   - Adding headers shared by every method of a target
type RequestInterceptor interface {
	Apply(tmpl *RequestTemplate) error
}

// RequestInterceptorFunc adapts a function to the RequestInterceptor
// interface.
type RequestInterceptorFunc func(tmpl *RequestTemplate) error

// Apply implements RequestInterceptor.
func (f RequestInterceptorFunc) Apply(tmpl *RequestTemplate) error {
	return f(tmpl)
}

// BasicAuthInterceptor sets an Authorization: Basic header.
func BasicAuthInterceptor(username, password string) RequestInterceptor {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return HeaderInterceptor("Authorization", "Basic "+token)
}

// BearerTokenInterceptor sets an Authorization: Bearer header from
// tokenFunc, which is called on every request so tokens can be refreshed.
//
// Example:
//
//	builder.RequestInterceptor(httpclient.BearerTokenInterceptor(func() (string, error) {
//	    return tokens.Current(ctx)
//	}))
func BearerTokenInterceptor(tokenFunc func() (string, error)) RequestInterceptor {
	return RequestInterceptorFunc(func(tmpl *RequestTemplate) error {
		token, err := tokenFunc()
		if err != nil {
			return err
		}
		tmpl.RemoveHeader("Authorization").Header("Authorization", "Bearer "+token)
		return nil
	})
}

// HeaderInterceptor replaces the named header with value.
func HeaderInterceptor(name, value string) RequestInterceptor {
	return RequestInterceptorFunc(func(tmpl *RequestTemplate) error {
		tmpl.RemoveHeader(name).Header(name, value)
		return nil
	})
}

// CorrelationIDInterceptor sets a random UUID in the named header unless
// the call already carries one. An empty name means X-Correlation-ID.
func CorrelationIDInterceptor(name string) RequestInterceptor {
	if name == "" {
		name = "X-Correlation-ID"
	}
	return RequestInterceptorFunc(func(tmpl *RequestTemplate) error {
		if len(tmpl.HeaderValues(name)) > 0 {
			return nil
		}
		tmpl.Header(name, uuid.NewString())
		return nil
	})
}

// Chain continues decoding with the next response interceptor, or with
// InvocationContext.Proceed at the end.
type Chain func(ic *InvocationContext) (any, error)

// ResponseInterceptor wraps the decoding of successful responses. It may
// inspect the InvocationContext, call next, and alter its result.
type ResponseInterceptor interface {
	Intercept(ic *InvocationContext, next Chain) (any, error)
}

// ResponseInterceptorFunc adapts a function to the ResponseInterceptor
// interface.
type ResponseInterceptorFunc func(ic *InvocationContext, next Chain) (any, error)

// Intercept implements ResponseInterceptor.
func (f ResponseInterceptorFunc) Intercept(ic *InvocationContext, next Chain) (any, error) {
	return f(ic, next)
}

// DefaultResponseInterceptor only calls next.
type DefaultResponseInterceptor struct{}

// Intercept implements ResponseInterceptor.
func (DefaultResponseInterceptor) Intercept(ic *InvocationContext, next Chain) (any, error) {
	return next(ic)
}

// proceed is the end of every Chain.
func proceed(ic *InvocationContext) (any, error) {
	return ic.Proceed()
}
