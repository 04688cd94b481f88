// Package httpclient turns declared method specs into callable HTTP
// services.
//
// A Service is built from a Target (name and base URL) and a list of
// MethodSpec values. Each call resolves the method's request template with
// the call arguments, runs the request interceptors, executes the request
// through a Client, and decodes the response into the declared Shape.
// Transient failures are retried by a Retryer.
//
// # Features
//
//   - URI, query and header templates with {name} expressions
//   - Query maps built from maps, struct fields or accessor methods
//   - Pluggable Encoder, Decoder and ErrorDecoder
//   - Retries with exponential, linear or decorrelated jitter backoff,
//     honouring Retry-After
//   - Capabilities that decorate every collaborator in registration order
//   - OpenTelemetry tracing and metrics, Prometheus metrics
//   - Circuit breaking (local or Redis shared), rate limiting and request
//     coalescing
//
// # Quick Start
//
//	type User struct {
//	    ID   int    `json:"id"`
//	    Name string `json:"name"`
//	}
//
//	svc, err := httpclient.NewBuilder().
//	    Encoder(httpclient.JSONEncoder{}).
//	    Decoder(httpclient.JSONDecoder{}).
//	    Build(httpclient.NewTarget("users", "https://api.example.com"),
//	        httpclient.MethodSpec{
//	            Name:    "GetUser",
//	            Line:    "GET /users/{id}",
//	            Headers: []string{"Accept: application/json"},
//	            Params:  []httpclient.Param{httpclient.Var("id")},
//	            Returns: httpclient.ShapeOf[User](),
//	        },
//	    )
//
//	user, err := httpclient.Call[User](ctx, svc, "GetUser", 42)
//
// # Retry Configuration
//
//	// Default: 5 attempts, 100ms initial, 1.5x multiplier, 1s cap
//	builder.Retryer(httpclient.NewRetryer(httpclient.DefaultRetryConfig()))
//
//	// Custom backoff
//	builder.Retryer(httpclient.NewBackOffRetryer(4, 5*time.Second, func() backoff.BackOff {
//	    return httpclient.NewDecorrelatedJitterBackOff()
//	}))
//
//	// Disable
//	builder.Retryer(httpclient.NeverRetry)
//
// Only failures to execute a request, and responses turned into a
// *RetryableError by the ErrorDecoder, are retried.
//
// # Capabilities
//
// A Capability wraps collaborators as the service is built. Capabilities
// are applied in the order they are added, so the last one added is the
// outermost decorator.
//
//	builder.
//	    AddCapability(httpclient.NewRateLimitCapability(httpclient.DefaultRateLimitConfig())).
//	    AddCapability(httpclient.NewBreakerCapability("users", httpclient.DefaultBreakerConfig())).
//	    AddCapability(httpclient.NewObservabilityCapability(httpclient.WithServiceName("users")))
//
// # Error Handling
//
// Every error produced by the pipeline satisfies IsClientError:
//
//   - *StatusError: non-2xx response, matchable with errors.Is against
//     ErrNotFound, ErrServiceUnavailable and friends
//   - *RetryableError: transient failure, retried before being returned
//   - *EncodeError, *DecodeError: body conversion failures
//   - *ReadError: the response body could not be read
//   - *ExecuteError: the request was rejected before reaching the server
//
// # Testing
//
// MockClient stubs responses without a server:
//
//	mock := httpclient.NewMockClient().StubPath("/users/42", http.StatusOK, `{"id":42}`)
//	svc, _ := httpclient.NewBuilder().Client(mock).Build(target, specs...)
package httpclient
