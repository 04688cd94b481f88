package httpclient

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// paramTag is the struct tag that renames a field in a query map.
const paramTag = "param"

// QueryMapEncoder decomposes an object into query parameters.
//
// Only present values end up in the map; a nil pointer, slice, map or
// interface is omitted rather than encoded as an empty string.
type QueryMapEncoder interface {
	Encode(v any) (map[string]any, error)
}

// QueryMapEncoderFunc adapts a function to the QueryMapEncoder interface.
type QueryMapEncoderFunc func(v any) (map[string]any, error)

// Encode implements QueryMapEncoder.
func (f QueryMapEncoderFunc) Encode(v any) (map[string]any, error) {
	return f(v)
}

// ParamAliaser lets a type rename its accessors when decomposed by
// AccessorQueryMapEncoder. Keys are method names, values the query names.
type ParamAliaser interface {
	ParamAliases() map[string]string
}

// member is one decomposable attribute of a type.
type member struct {
	name  string
	index []int // field index path, nil for accessors
	fn    int   // method index for accessors
	errs  bool  // accessor also returns an error
}

// typeCache holds per-type member lists. Concurrent first access may
// compute a type twice; LoadOrStore keeps whichever entry lands first.
type typeCache struct {
	m sync.Map // reflect.Type -> []member
}

func (c *typeCache) get(t reflect.Type, describe func(reflect.Type) ([]member, error)) ([]member, error) {
	if v, ok := c.m.Load(t); ok {
		return v.([]member), nil
	}
	members, err := describe(t)
	if err != nil {
		return nil, err
	}
	v, _ := c.m.LoadOrStore(t, members)
	return v.([]member), nil
}

// indirectStruct dereferences pointers down to a struct value. A nil input
// reports ok=false with no error.
func indirectStruct(v any) (reflect.Value, bool, error) {
	if v == nil {
		return reflect.Value{}, false, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false, &EncodeError{
			Message: fmt.Sprintf("cannot decompose %T into a query map", v),
		}
	}
	return rv, true, nil
}

// isAbsent reports whether v carries no value.
func isAbsent(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// lowerFirst lower-cases the first rune of s.
func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// propertyName derives the query name of an accessor: a leading "Get" is
// dropped and the first rune lower-cased, so GetName and Name both map to
// "name".
func propertyName(method string) string {
	if rest, ok := strings.CutPrefix(method, "Get"); ok && rest != "" {
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsUpper(r) {
			return lowerFirst(rest)
		}
	}
	return lowerFirst(method)
}

func duplicateNameError(t reflect.Type, name string) error {
	return &EncodeError{
		Message: fmt.Sprintf("duplicate query parameter %q in %s", name, t),
	}
}
