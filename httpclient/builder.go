package httpclient

import (
	"fmt"
	"slices"
)

// Builder assembles the collaborators of a Service.
//
// Every setter returns the Builder for chaining. A Builder is not safe for
// concurrent configuration, but Enrich and Build never modify it and may
// be called any number of times.
//
// Example:
//
//	svc, err := httpclient.NewBuilder().
//	    Encoder(httpclient.JSONEncoder{}).
//	    Decoder(httpclient.NewOptionalDecoder(httpclient.JSONDecoder{})).
//	    Retryer(httpclient.NewRetryer(httpclient.DefaultRetryConfig())).
//	    Logger(httpclient.DefaultZerologLogger()).
//	    LogLevel(httpclient.LevelBasic).
//	    AddCapability(httpclient.NewObservabilityCapability()).
//	    Build(httpclient.NewTarget("users", "https://api.example.com"), specs...)
type Builder struct {
	contract            Contract
	client              Client
	retryer             Retryer
	logger              Logger
	logLevel            LogLevel
	encoder             Encoder
	decoder             Decoder
	errorDecoder        ErrorDecoder
	queryMapEncoder     QueryMapEncoder
	options             Options
	requestInterceptors []RequestInterceptor
	responseInterceptor ResponseInterceptor
	handlerFactory      InvocationHandlerFactory
	propagation         PropagationPolicy
	dismiss404          bool
	closeAfterDecode    bool
	capabilities        []Capability
}

// NewBuilder creates a Builder with the default collaborators.
func NewBuilder() *Builder {
	return &Builder{
		contract:            DefaultContract{},
		client:              NewHTTPClient(),
		retryer:             NewRetryer(DefaultRetryConfig()),
		logger:              NopLogger,
		logLevel:            LevelNone,
		encoder:             DefaultEncoder{},
		decoder:             DefaultDecoder{},
		errorDecoder:        DefaultErrorDecoder{},
		queryMapEncoder:     NewFieldQueryMapEncoder(),
		options:             DefaultOptions(),
		responseInterceptor: DefaultResponseInterceptor{},
		handlerFactory:      DefaultInvocationHandlerFactory{},
		propagation:         PropagateNone,
		closeAfterDecode:    true,
	}
}

// Contract sets the Contract that parses method specs.
func (b *Builder) Contract(c Contract) *Builder {
	b.contract = c
	return b
}

// Client sets the Client that executes requests.
func (b *Builder) Client(c Client) *Builder {
	b.client = c
	return b
}

// Retryer sets the Retryer. It is cloned for every call.
func (b *Builder) Retryer(r Retryer) *Builder {
	b.retryer = r
	return b
}

// Logger sets the Logger.
func (b *Builder) Logger(l Logger) *Builder {
	b.logger = l
	return b
}

// LogLevel sets how much the Logger records.
func (b *Builder) LogLevel(level LogLevel) *Builder {
	b.logLevel = level
	return b
}

// Encoder sets the body Encoder.
func (b *Builder) Encoder(e Encoder) *Builder {
	b.encoder = e
	return b
}

// Decoder sets the Decoder for successful responses.
func (b *Builder) Decoder(d Decoder) *Builder {
	b.decoder = d
	return b
}

// MapAndDecode maps every response with mapper before decoding it with d.
func (b *Builder) MapAndDecode(mapper ResponseMapper, d Decoder) *Builder {
	b.decoder = NewResponseMappingDecoder(mapper, d)
	return b
}

// ErrorDecoder sets the ErrorDecoder for responses that are not decoded.
func (b *Builder) ErrorDecoder(d ErrorDecoder) *Builder {
	b.errorDecoder = d
	return b
}

// QueryMapEncoder sets how query map arguments that are not maps are
// decomposed.
func (b *Builder) QueryMapEncoder(e QueryMapEncoder) *Builder {
	b.queryMapEncoder = e
	return b
}

// Options sets the Options used by calls that do not pass their own.
func (b *Builder) Options(o Options) *Builder {
	b.options = o
	return b
}

// RequestInterceptor appends a RequestInterceptor.
func (b *Builder) RequestInterceptor(i RequestInterceptor) *Builder {
	b.requestInterceptors = append(b.requestInterceptors, i)
	return b
}

// RequestInterceptors replaces all RequestInterceptors.
func (b *Builder) RequestInterceptors(interceptors ...RequestInterceptor) *Builder {
	b.requestInterceptors = slices.Clone(interceptors)
	return b
}

// ResponseInterceptor sets the ResponseInterceptor wrapping decoding.
func (b *Builder) ResponseInterceptor(i ResponseInterceptor) *Builder {
	b.responseInterceptor = i
	return b
}

// InvocationHandlerFactory sets the factory that dispatches calls to
// method handlers.
func (b *Builder) InvocationHandlerFactory(f InvocationHandlerFactory) *Builder {
	b.handlerFactory = f
	return b
}

// PropagationPolicy sets the error returned once retries are exhausted.
func (b *Builder) PropagationPolicy(p PropagationPolicy) *Builder {
	b.propagation = p
	return b
}

// Dismiss404 decodes 404 responses with the Decoder instead of the
// ErrorDecoder, so they come back as empty values.
func (b *Builder) Dismiss404() *Builder {
	b.dismiss404 = true
	return b
}

// Decode404 is the former name of Dismiss404.
//
// Deprecated: use Dismiss404.
func (b *Builder) Decode404() *Builder { return b.Dismiss404() }

// DoNotCloseAfterDecode leaves the response body open after decoding, for
// decoders that return a lazily read value. The caller then owns the body.
func (b *Builder) DoNotCloseAfterDecode() *Builder {
	b.closeAfterDecode = false
	return b
}

// AddCapability registers a Capability. Capabilities decorate the
// collaborators in registration order.
func (b *Builder) AddCapability(c Capability) *Builder {
	b.capabilities = append(b.capabilities, c)
	return b
}

// Collaborators is the immutable result of Builder.Enrich.
type Collaborators struct {
	contract            Contract
	client              Client
	retryer             Retryer
	logger              Logger
	logLevel            LogLevel
	encoder             Encoder
	decoder             Decoder
	errorDecoder        ErrorDecoder
	queryMapEncoder     QueryMapEncoder
	options             Options
	requestInterceptors []RequestInterceptor
	responseInterceptor ResponseInterceptor
	handlerFactory      InvocationHandlerFactory
	propagation         PropagationPolicy
	dismiss404          bool
	closeAfterDecode    bool
}

// Contract returns the enriched Contract.
func (c Collaborators) Contract() Contract { return c.contract }

// Client returns the enriched Client.
func (c Collaborators) Client() Client { return c.client }

// Retryer returns the enriched Retryer.
func (c Collaborators) Retryer() Retryer { return c.retryer }

// Logger returns the enriched Logger, or nil when logging is disabled.
func (c Collaborators) Logger() Logger { return c.logger }

// LogLevel returns the configured log level.
func (c Collaborators) LogLevel() LogLevel { return c.logLevel }

// Encoder returns the enriched body Encoder.
func (c Collaborators) Encoder() Encoder { return c.encoder }

// Decoder returns the enriched response Decoder.
func (c Collaborators) Decoder() Decoder { return c.decoder }

// ErrorDecoder returns the enriched ErrorDecoder.
func (c Collaborators) ErrorDecoder() ErrorDecoder { return c.errorDecoder }

// QueryMapEncoder returns the enriched QueryMapEncoder.
func (c Collaborators) QueryMapEncoder() QueryMapEncoder { return c.queryMapEncoder }

// Options returns the enriched per-request Options.
func (c Collaborators) Options() Options { return c.options }

// ResponseInterceptor returns the enriched ResponseInterceptor.
func (c Collaborators) ResponseInterceptor() ResponseInterceptor { return c.responseInterceptor }

// PropagationPolicy returns how exhausted retries surface their error.
func (c Collaborators) PropagationPolicy() PropagationPolicy { return c.propagation }

// Dismiss404 reports whether 404 responses decode as empty results.
func (c Collaborators) Dismiss404() bool { return c.dismiss404 }

// CloseAfterDecode reports whether response bodies are closed once decoded.
func (c Collaborators) CloseAfterDecode() bool { return c.closeAfterDecode }

// RequestInterceptors returns a copy of the request interceptors.
func (c Collaborators) RequestInterceptors() []RequestInterceptor {
	return slices.Clone(c.requestInterceptors)
}

// InvocationHandlerFactory returns the invocation handler factory.
func (c Collaborators) InvocationHandlerFactory() InvocationHandlerFactory {
	return c.handlerFactory
}

// Enrich passes every configured collaborator through the registered
// capabilities and returns the result. Nil collaborators stay nil. The
// log level, the propagation policy and the flags are copied as is.
func (b *Builder) Enrich() Collaborators {
	caps := slices.Clone(b.capabilities)

	options := b.options
	for _, c := range caps {
		options = c.EnrichOptions(options)
	}

	interceptors := make([]RequestInterceptor, len(b.requestInterceptors))
	for i, in := range b.requestInterceptors {
		interceptors[i] = enrich(in, caps, Capability.EnrichRequestInterceptor)
	}

	return Collaborators{
		contract:            enrich(b.contract, caps, Capability.EnrichContract),
		client:              enrich(b.client, caps, Capability.EnrichClient),
		retryer:             enrich(b.retryer, caps, Capability.EnrichRetryer),
		logger:              enrich(b.logger, caps, Capability.EnrichLogger),
		logLevel:            b.logLevel,
		encoder:             enrich(b.encoder, caps, Capability.EnrichEncoder),
		decoder:             enrich(b.decoder, caps, Capability.EnrichDecoder),
		errorDecoder:        enrich(b.errorDecoder, caps, Capability.EnrichErrorDecoder),
		queryMapEncoder:     enrich(b.queryMapEncoder, caps, Capability.EnrichQueryMapEncoder),
		options:             options,
		requestInterceptors: interceptors,
		responseInterceptor: enrich(b.responseInterceptor, caps, Capability.EnrichResponseInterceptor),
		handlerFactory:      enrich(b.handlerFactory, caps, Capability.EnrichInvocationHandlerFactory),
		propagation:         b.propagation,
		dismiss404:          b.dismiss404,
		closeAfterDecode:    b.closeAfterDecode,
	}
}

// Build resolves every spec against target and returns the Service
// dispatching to them.
//
// It fails with ErrInvalidArgument when a collaborator was set to nil, a
// spec is rejected by the Contract, or two specs share a name.
func (b *Builder) Build(target Target, specs ...MethodSpec) (*Service, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidArgument)
	}
	c := b.Enrich()
	if err := c.validate(); err != nil {
		return nil, err
	}

	handlers := make(map[string]MethodHandler, len(specs))
	for _, spec := range specs {
		md, err := c.contract.Resolve(target, spec)
		if err != nil {
			return nil, err
		}
		if _, dup := handlers[md.Name]; dup {
			return nil, fmt.Errorf("%w: %s declared twice", ErrInvalidArgument, md.ConfigKey)
		}
		handlers[md.Name] = newMethodHandler(target, md, c)
	}

	return &Service{
		target:  target,
		handler: c.handlerFactory.Create(target, handlers),
	}, nil
}

func (c Collaborators) validate() error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	switch {
	case c.contract == nil:
		return missing("contract")
	case c.client == nil:
		return missing("client")
	case c.retryer == nil:
		return missing("retryer")
	case c.logger == nil:
		return missing("logger")
	case c.encoder == nil:
		return missing("encoder")
	case c.decoder == nil:
		return missing("decoder")
	case c.errorDecoder == nil:
		return missing("error decoder")
	case c.queryMapEncoder == nil:
		return missing("query map encoder")
	case c.responseInterceptor == nil:
		return missing("response interceptor")
	case c.handlerFactory == nil:
		return missing("invocation handler factory")
	}
	for i, in := range c.requestInterceptors {
		if in == nil {
			return fmt.Errorf("%w: request interceptor %d is nil", ErrInvalidArgument, i)
		}
	}
	return nil
}
