package httpclient

import (
	"fmt"
	"strings"
)

// ParamKind tells the pipeline how a method argument is used.
type ParamKind int

// Parameter kinds.
const (
	// ParamVariable binds the argument to the {name} expressions of the
	// path, query and headers.
	ParamVariable ParamKind = iota
	// ParamQueryMap expands the argument into query parameters, through
	// the QueryMapEncoder unless it already is a map.
	ParamQueryMap
	// ParamHeaderMap adds every entry of a map argument as a header.
	ParamHeaderMap
	// ParamBody hands the argument to the Encoder.
	ParamBody
)

// Param declares one method argument.
type Param struct {
	Name string
	Kind ParamKind
}

// Var declares an argument bound to the {name} expressions.
func Var(name string) Param { return Param{Name: name, Kind: ParamVariable} }

// QueryMapParam declares an argument expanded into query parameters.
func QueryMapParam() Param { return Param{Kind: ParamQueryMap} }

// HeaderMapParam declares an argument expanded into headers.
func HeaderMapParam() Param { return Param{Kind: ParamHeaderMap} }

// BodyParam declares the argument encoded as the request body.
func BodyParam() Param { return Param{Kind: ParamBody} }

// MethodSpec declares one remote method.
//
// Example:
//
//	httpclient.MethodSpec{
//	    Name:    "GetUser",
//	    Line:    "GET /users/{id}",
//	    Headers: []string{"Accept: application/json"},
//	    Params:  []httpclient.Param{httpclient.Var("id")},
//	    Returns: httpclient.OptionalOf(httpclient.ShapeOf[User]()),
//	}
//
// An additional argument of type Options is accepted on every call and
// overrides the client-wide Options.
type MethodSpec struct {
	// Name identifies the method within its target.
	Name string

	// Line is "METHOD uri", the uri may carry a query string. Both may
	// contain {name} expressions.
	Line string

	// Headers are "Name: value" templates.
	Headers []string

	// Params declares the arguments in call order.
	Params []Param

	// Returns is the declared result shape, VoidShape when zero.
	Returns Shape
}

// MethodMetadata is a MethodSpec validated and parsed by a Contract.
type MethodMetadata struct {
	// ConfigKey is "TargetName#MethodName", used in logs and errors.
	ConfigKey string
	Name      string

	// Template is the unresolved request template. Never modify it; the
	// pipeline clones it for every call.
	Template *RequestTemplate

	Returns Shape
	Params  []Param

	// BodyIndex, QueryMapIndex and HeaderMapIndex are argument positions,
	// -1 when the method has none.
	BodyIndex      int
	QueryMapIndex  int
	HeaderMapIndex int
}

// Contract turns a MethodSpec into MethodMetadata.
type Contract interface {
	Resolve(target Target, spec MethodSpec) (*MethodMetadata, error)
}

// ContractFunc adapts a function to the Contract interface.
type ContractFunc func(target Target, spec MethodSpec) (*MethodMetadata, error)

// Resolve implements Contract.
func (f ContractFunc) Resolve(target Target, spec MethodSpec) (*MethodMetadata, error) {
	return f(target, spec)
}

// DefaultContract parses request lines and header templates and checks
// that parameters are consistent: one body at most, only on methods that
// allow one, and at most one query map and header map.
type DefaultContract struct{}

// Resolve implements Contract.
func (DefaultContract) Resolve(target Target, spec MethodSpec) (*MethodMetadata, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: method name is required", ErrInvalidArgument)
	}
	configKey := target.Name() + "#" + spec.Name

	fields := strings.Fields(spec.Line)
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: %s: request line %q must be \"METHOD uri\"",
			ErrInvalidArgument, configKey, spec.Line)
	}
	method, err := ParseHTTPMethod(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configKey, err)
	}

	tmpl := NewRequestTemplate(method, fields[1])
	for _, h := range spec.Headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %s: header %q must be \"Name: value\"",
				ErrInvalidArgument, configKey, h)
		}
		tmpl.Header(name, strings.TrimSpace(value))
	}

	md := &MethodMetadata{
		ConfigKey:      configKey,
		Name:           spec.Name,
		Template:       tmpl,
		Returns:        spec.Returns,
		Params:         append([]Param(nil), spec.Params...),
		BodyIndex:      -1,
		QueryMapIndex:  -1,
		HeaderMapIndex: -1,
	}

	vars := make(map[string]bool)
	for i, p := range spec.Params {
		switch p.Kind {
		case ParamVariable:
			if p.Name == "" {
				return nil, fmt.Errorf("%w: %s: parameter %d has no name", ErrInvalidArgument, configKey, i)
			}
			if vars[p.Name] {
				return nil, fmt.Errorf("%w: %s: parameter %q declared twice", ErrInvalidArgument, configKey, p.Name)
			}
			vars[p.Name] = true
		case ParamBody:
			if md.BodyIndex >= 0 {
				return nil, fmt.Errorf("%w: %s: method has too many body parameters", ErrInvalidArgument, configKey)
			}
			if !method.AllowsBody() {
				return nil, fmt.Errorf("%w: %s: %s requests cannot carry a body", ErrInvalidArgument, configKey, method)
			}
			md.BodyIndex = i
		case ParamQueryMap:
			if md.QueryMapIndex >= 0 {
				return nil, fmt.Errorf("%w: %s: QueryMap parameter can only be used once", ErrInvalidArgument, configKey)
			}
			md.QueryMapIndex = i
		case ParamHeaderMap:
			if md.HeaderMapIndex >= 0 {
				return nil, fmt.Errorf("%w: %s: HeaderMap parameter can only be used once", ErrInvalidArgument, configKey)
			}
			md.HeaderMapIndex = i
		default:
			return nil, fmt.Errorf("%w: %s: unknown parameter kind %d", ErrInvalidArgument, configKey, p.Kind)
		}
	}

	return md, nil
}
