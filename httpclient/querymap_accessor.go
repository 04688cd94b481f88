package httpclient

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// excludedAccessors are methods that describe the value itself rather than
// one of its properties.
var excludedAccessors = map[string]bool{
	"String":       true,
	"GoString":     true,
	"Error":        true,
	"ParamAliases": true,
	"GobEncode":    true,
	"GobDecode":    true,
}

// excludedAccessorPrefixes name the encoding families, which render the value
// rather than read a property.
var excludedAccessorPrefixes = []string{"Marshal", "Unmarshal", "Append"}

var (
	errorType        = reflect.TypeFor[error]()
	paramAliaserType = reflect.TypeFor[ParamAliaser]()
)

// AccessorQueryMapEncoder decomposes a value through its exported
// zero-argument getters.
//
// Only methods with a value receiver are getters, so decomposing never
// mutates the caller's value. Methods promoted from embedded fields and the
// Marshal, Unmarshal, Append and Gob families are skipped. A getter returns
// one value, or a value and an error. The query name is the method name
// without a leading "Get", with its first letter lower-cased; a type
// implementing ParamAliaser can rename getters. Nil results and results
// equal to the value itself are omitted. A getter that returns an error or
// panics fails the encoding with an EncodeError.
//
// Example:
//
//	type Page struct{ n int }
//
//	func (p Page) Number() int { return p.n }
//	func (p Page) ParamAliases() map[string]string {
//	    return map[string]string{"Number": "page"}
//	}
//
//	m, _ := httpclient.NewAccessorQueryMapEncoder().Encode(Page{n: 2})
//	// m == map[string]any{"page": 2}
type AccessorQueryMapEncoder struct {
	cache typeCache
}

// NewAccessorQueryMapEncoder creates an AccessorQueryMapEncoder.
func NewAccessorQueryMapEncoder() *AccessorQueryMapEncoder {
	return &AccessorQueryMapEncoder{}
}

// Encode implements QueryMapEncoder.
func (e *AccessorQueryMapEncoder) Encode(v any) (map[string]any, error) {
	rv, ok, err := indirectStruct(v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}

	members, err := e.cache.get(rv.Type(), describeAccessors)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(members))
	for _, m := range members {
		result, err := callAccessor(rv, m)
		if err != nil {
			return nil, err
		}
		if isAbsent(result) || isSelf(result, rv) {
			continue
		}
		out[m.name] = result.Interface()
	}
	return out, nil
}

func callAccessor(rv reflect.Value, m member) (result reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EncodeError{
				Message: "Failure encoding object into query map",
				Err:     fmt.Errorf("%s: %v", m.name, r),
			}
		}
	}()

	out := rv.Method(m.fn).Call(nil)
	if m.errs && !out[1].IsNil() {
		return reflect.Value{}, &EncodeError{
			Message: "Failure encoding object into query map",
			Err:     out[1].Interface().(error),
		}
	}
	return out[0], nil
}

// isSelf reports whether a getter handed back the decomposed value, or a
// pointer to a copy of it.
func isSelf(result, self reflect.Value) bool {
	if result.Kind() == reflect.Interface {
		result = result.Elem()
	}
	if result.Kind() == reflect.Pointer && result.Type().Elem() == self.Type() {
		result = result.Elem()
	}
	if result.Type() != self.Type() {
		return false
	}
	return reflect.DeepEqual(result.Interface(), self.Interface())
}

// describeAccessors lists the getters in the value method set of the struct
// type t, sorted by method name.
func describeAccessors(t reflect.Type) (members []member, err error) {
	aliases, err := accessorAliases(t)
	if err != nil {
		return nil, err
	}
	promoted := promotedMethods(t)

	names := make(map[string]bool)
	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		if !isGetterName(method.Name) || promoted[method.Name] {
			continue
		}

		mt := method.Type // receiver is In(0)
		if mt.NumIn() != 1 {
			continue
		}
		withErr := false
		switch mt.NumOut() {
		case 1:
		case 2:
			if mt.Out(1) != errorType {
				continue
			}
			withErr = true
		default:
			continue
		}

		name := propertyName(method.Name)
		if alias, ok := aliases[method.Name]; ok && alias != "" {
			name = alias
		}
		if names[name] {
			return nil, duplicateNameError(t, name)
		}
		names[name] = true
		members = append(members, member{name: name, fn: i, errs: withErr})
	}
	return members, nil
}

func isGetterName(name string) bool {
	if excludedAccessors[name] {
		return false
	}
	for _, prefix := range excludedAccessorPrefixes {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(rest); rest == "" || unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// promotedMethods names the methods t gains from its embedded fields. A
// method t declares under the same name is skipped along with them.
func promotedMethods(t reflect.Type) map[string]bool {
	promoted := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		for j := 0; j < f.Type.NumMethod(); j++ {
			promoted[f.Type.Method(j).Name] = true
		}
	}
	return promoted
}

// accessorAliases asks a zero value of the type for its aliases.
func accessorAliases(t reflect.Type) (aliases map[string]string, err error) {
	pt := reflect.PointerTo(t)
	if !pt.Implements(paramAliaserType) {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &EncodeError{
				Message: fmt.Sprintf("failed to read parameter aliases of %s", t),
				Err:     fmt.Errorf("%v", r),
			}
		}
	}()
	return reflect.New(t).Interface().(ParamAliaser).ParamAliases(), nil
}
