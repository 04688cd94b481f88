package httpclient

import (
	"fmt"
	"reflect"
)

// ShapeKind tags the structure of a declared result.
type ShapeKind int

// Shape kinds.
const (
	// ShapeVoid declares that a method produces no result.
	ShapeVoid ShapeKind = iota
	// ShapeScalar is a single value of a concrete Go type.
	ShapeScalar
	// ShapeOptional is a value that may be absent, wrapping an inner shape.
	ShapeOptional
	// ShapeCollection is a sequence of an inner shape.
	ShapeCollection
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeVoid:
		return "void"
	case ShapeScalar:
		return "scalar"
	case ShapeOptional:
		return "optional"
	case ShapeCollection:
		return "collection"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// Shape describes the result a method declares. Decoders switch on Kind
// and peel one layer at a time, delegating the Elem shape.
//
// Example:
//
//	httpclient.ShapeOf[User]()                              // User
//	httpclient.OptionalOf(httpclient.ShapeOf[string]())     // optional string
//	httpclient.CollectionOf(httpclient.ShapeOf[User]())     // []User
type Shape struct {
	kind ShapeKind
	typ  reflect.Type
	elem *Shape
}

// VoidShape declares no result.
var VoidShape = Shape{kind: ShapeVoid}

// ShapeOf returns the scalar shape of T.
func ShapeOf[T any]() Shape {
	return TypeShape(reflect.TypeFor[T]())
}

// TypeShape returns the scalar shape of t. A nil type yields VoidShape.
func TypeShape(t reflect.Type) Shape {
	if t == nil {
		return VoidShape
	}
	return Shape{kind: ShapeScalar, typ: t}
}

// OptionalOf wraps inner in an optional shape.
func OptionalOf(inner Shape) Shape {
	return Shape{kind: ShapeOptional, elem: &inner}
}

// CollectionOf declares a sequence of inner.
func CollectionOf(inner Shape) Shape {
	return Shape{kind: ShapeCollection, elem: &inner}
}

// Kind returns the shape kind.
func (s Shape) Kind() ShapeKind { return s.kind }

// Type returns the Go type of a scalar shape, nil otherwise.
func (s Shape) Type() reflect.Type { return s.typ }

// Elem returns the inner shape of an optional or collection shape.
func (s Shape) Elem() (Shape, bool) {
	if s.elem == nil {
		return Shape{}, false
	}
	return *s.elem, true
}

// IsOptional reports whether s is an optional shape.
func (s Shape) IsOptional() bool { return s.kind == ShapeOptional }

// IsVoid reports whether s declares no result.
func (s Shape) IsVoid() bool { return s.kind == ShapeVoid }

// Is reports whether s is the scalar shape of t.
func (s Shape) Is(t reflect.Type) bool {
	return s.kind == ShapeScalar && s.typ == t
}

// Equal reports structural equality.
func (s Shape) Equal(other Shape) bool {
	if s.kind != other.kind || s.typ != other.typ {
		return false
	}
	if s.elem == nil || other.elem == nil {
		return s.elem == other.elem
	}
	return s.elem.Equal(*other.elem)
}

// GoType resolves the Go type a decoder should produce for s: the scalar
// type itself, or a slice of the element's GoType for collections.
// Void and optional shapes have no direct Go type.
func (s Shape) GoType() (reflect.Type, bool) {
	switch s.kind {
	case ShapeScalar:
		return s.typ, true
	case ShapeCollection:
		et, ok := s.elem.GoType()
		if !ok {
			return nil, false
		}
		return reflect.SliceOf(et), true
	default:
		return nil, false
	}
}

func (s Shape) String() string {
	switch s.kind {
	case ShapeVoid:
		return "void"
	case ShapeScalar:
		return s.typ.String()
	case ShapeOptional:
		return "Optional[" + s.elem.String() + "]"
	case ShapeCollection:
		return "[]" + s.elem.String()
	default:
		return s.kind.String()
	}
}

// Optional is the runtime value of an optional shape.
type Optional struct {
	value   any
	present bool
}

// EmptyOptional returns an absent value.
func EmptyOptional() Optional { return Optional{} }

// OptionalOfValue wraps v; a nil v yields an empty Optional.
func OptionalOfValue(v any) Optional {
	if v == nil {
		return Optional{}
	}
	return Optional{value: v, present: true}
}

// Get returns the value and whether it is present.
func (o Optional) Get() (any, bool) { return o.value, o.present }

// IsPresent reports whether a value is present.
func (o Optional) IsPresent() bool { return o.present }

// OrElse returns the value if present, fallback otherwise.
func (o Optional) OrElse(fallback any) any {
	if o.present {
		return o.value
	}
	return fallback
}

func (o Optional) String() string {
	if !o.present {
		return "Optional.empty"
	}
	return fmt.Sprintf("Optional[%v]", o.value)
}

// emptyValueOf returns the value a decoder yields for an empty response:
// an empty Optional, an empty slice for collections, nil otherwise.
func emptyValueOf(s Shape) any {
	switch s.kind {
	case ShapeOptional:
		return EmptyOptional()
	case ShapeCollection:
		if t, ok := s.GoType(); ok {
			return reflect.MakeSlice(t, 0, 0).Interface()
		}
	}
	return nil
}
