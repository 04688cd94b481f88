package httpclient

// Capability decorates the collaborators of a Builder. Each Enrich method
// receives the current collaborator of its kind and returns the one to use,
// usually a wrapper around it.
//
// Capabilities are applied in registration order, so the first registered
// capability wraps the configured collaborator directly and the last one
// ends up outermost. Embed NopCapability to override only some methods.
//
// Example:
//
//	type timing struct{ httpclient.NopCapability }
//
//	func (timing) EnrichClient(c httpclient.Client) httpclient.Client {
//	    return httpclient.ClientFunc(func(ctx context.Context, req *httpclient.Request,
//	        opts httpclient.Options) (*httpclient.Response, error) {
//	        start := time.Now()
//	        defer func() { observe(time.Since(start)) }()
//	        return c.Execute(ctx, req, opts)
//	    })
//	}
type Capability interface {
	EnrichClient(Client) Client
	EnrichRetryer(Retryer) Retryer
	EnrichLogger(Logger) Logger
	EnrichContract(Contract) Contract
	EnrichOptions(Options) Options
	EnrichEncoder(Encoder) Encoder
	EnrichDecoder(Decoder) Decoder
	EnrichErrorDecoder(ErrorDecoder) ErrorDecoder
	EnrichQueryMapEncoder(QueryMapEncoder) QueryMapEncoder
	EnrichRequestInterceptor(RequestInterceptor) RequestInterceptor
	EnrichResponseInterceptor(ResponseInterceptor) ResponseInterceptor
	EnrichInvocationHandlerFactory(InvocationHandlerFactory) InvocationHandlerFactory
}

// NopCapability returns every collaborator unchanged.
type NopCapability struct{}

var _ Capability = NopCapability{}

func (NopCapability) EnrichClient(c Client) Client { return c }
func (NopCapability) EnrichRetryer(r Retryer) Retryer { return r }
func (NopCapability) EnrichLogger(l Logger) Logger { return l }
func (NopCapability) EnrichContract(c Contract) Contract { return c }
func (NopCapability) EnrichOptions(o Options) Options { return o }
func (NopCapability) EnrichEncoder(e Encoder) Encoder { return e }
func (NopCapability) EnrichDecoder(d Decoder) Decoder { return d }
func (NopCapability) EnrichErrorDecoder(d ErrorDecoder) ErrorDecoder { return d }
func (NopCapability) EnrichQueryMapEncoder(e QueryMapEncoder) QueryMapEncoder { return e }

func (NopCapability) EnrichRequestInterceptor(i RequestInterceptor) RequestInterceptor {
	return i
}

func (NopCapability) EnrichResponseInterceptor(i ResponseInterceptor) ResponseInterceptor {
	return i
}

func (NopCapability) EnrichInvocationHandlerFactory(f InvocationHandlerFactory) InvocationHandlerFactory {
	return f
}

// enrich passes v through every capability in order. Nil collaborators
// are never handed to a capability.
func enrich[T comparable](v T, caps []Capability, fn func(Capability, T) T) T {
	var zero T
	if v == zero {
		return v
	}
	for _, c := range caps {
		v = fn(c, v)
	}
	return v
}
