package httpclient

import (
	"context"
	"fmt"
)

// MethodHandler runs one declared method.
type MethodHandler interface {
	Invoke(ctx context.Context, args []any) (any, error)
}

// InvocationHandler routes a call by method name.
type InvocationHandler interface {
	Invoke(ctx context.Context, method string, args []any) (any, error)
}

// InvocationHandlerFactory creates the InvocationHandler of a Service from
// its method handlers, keyed by method name.
type InvocationHandlerFactory interface {
	Create(target Target, handlers map[string]MethodHandler) InvocationHandler
}

// InvocationHandlerFactoryFunc adapts a function to the
// InvocationHandlerFactory interface.
type InvocationHandlerFactoryFunc func(target Target, handlers map[string]MethodHandler) InvocationHandler

// Create implements InvocationHandlerFactory.
func (f InvocationHandlerFactoryFunc) Create(target Target, handlers map[string]MethodHandler) InvocationHandler {
	return f(target, handlers)
}

// DefaultInvocationHandlerFactory dispatches each call to the handler
// registered under its name.
type DefaultInvocationHandlerFactory struct{}

// Create implements InvocationHandlerFactory.
func (DefaultInvocationHandlerFactory) Create(target Target, handlers map[string]MethodHandler) InvocationHandler {
	dispatch := make(map[string]MethodHandler, len(handlers))
	for name, h := range handlers {
		dispatch[name] = h
	}
	return &dispatcher{target: target, handlers: dispatch}
}

type dispatcher struct {
	target   Target
	handlers map[string]MethodHandler
}

func (d *dispatcher) Invoke(ctx context.Context, method string, args []any) (any, error) {
	h, ok := d.handlers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no method %q", ErrInvalidArgument, d.target.Name(), method)
	}
	return h.Invoke(ctx, args)
}

// Service is the client of one Target, built by Builder.Build.
// It is safe for concurrent use.
type Service struct {
	target  Target
	handler InvocationHandler
}

// Target returns the target the service calls.
func (s *Service) Target() Target { return s.target }

// Invoke calls the named method.
//
// Example:
//
//	result, err := svc.Invoke(ctx, "GetUser", "42")
func (s *Service) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	return s.handler.Invoke(ctx, method, args)
}

// Call invokes the named method and asserts its result to T. A nil result
// yields the zero T.
//
// Example:
//
//	user, err := httpclient.Call[User](ctx, svc, "GetUser", "42")
func Call[T any](ctx context.Context, s *Service, method string, args ...any) (T, error) {
	var zero T
	result, err := s.Invoke(ctx, method, args...)
	if err != nil || result == nil {
		return zero, err
	}
	v, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T, not %T", ErrInvalidArgument, method, result, zero)
	}
	return v, nil
}
