package httpclient

import (
	"fmt"
	"reflect"
	"strings"
)

// FieldQueryMapEncoder decomposes a struct through its exported fields,
// including fields promoted from embedded structs.
//
// The query name of a field is its `param` tag, or the field name when the
// tag is absent. A `param:"-"` tag skips the field. Nil fields, and fields
// reached through a nil embedded pointer, are omitted.
//
// Example:
//
//	type UserFilter struct {
//	    Name  string `param:"name"`
//	    Limit *int   `param:"limit"`
//	}
//
//	m, _ := httpclient.NewFieldQueryMapEncoder().Encode(UserFilter{Name: "a"})
//	// m == map[string]any{"name": "a"}
type FieldQueryMapEncoder struct {
	cache typeCache
}

// NewFieldQueryMapEncoder creates a FieldQueryMapEncoder.
func NewFieldQueryMapEncoder() *FieldQueryMapEncoder {
	return &FieldQueryMapEncoder{}
}

// Encode implements QueryMapEncoder.
func (e *FieldQueryMapEncoder) Encode(v any) (map[string]any, error) {
	rv, ok, err := indirectStruct(v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}

	members, err := e.cache.get(rv.Type(), describeFields)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(members))
	for _, m := range members {
		fv, err := rv.FieldByIndexErr(m.index)
		if err != nil {
			// nil embedded pointer
			continue
		}
		if isAbsent(fv) {
			continue
		}
		value, err := readField(fv)
		if err != nil {
			return nil, err
		}
		out[m.name] = value
	}
	return out, nil
}

func readField(fv reflect.Value) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EncodeError{
				Message: "Failure encoding object into query map",
				Err:     fmt.Errorf("%v", r),
			}
		}
	}()
	return fv.Interface(), nil
}

// describeFields lists the decomposable fields of t in declaration order,
// with promoted fields following the embedded struct that holds them.
func describeFields(t reflect.Type) ([]member, error) {
	var members []member
	names := make(map[string]bool)

	for _, f := range reflect.VisibleFields(t) {
		if f.Name == "_" || !f.IsExported() {
			continue
		}
		if f.Anonymous && isStructOrStructPointer(f.Type) {
			continue
		}

		name := f.Name
		if tag, ok := f.Tag.Lookup(paramTag); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}

		if names[name] {
			return nil, duplicateNameError(t, name)
		}
		names[name] = true
		members = append(members, member{name: name, index: f.Index})
	}
	return members, nil
}

func isStructOrStructPointer(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
