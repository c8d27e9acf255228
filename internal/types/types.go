// Package types describes the static types of query expressions.
//
// A Type is one of: a builtin scalar, the top type any, a record (a Go
// struct or a schema-declared map), a generic shape (Seq, Queryable, Func,
// Expr) applied to type arguments, or a generic slot used in operation
// signatures. Types are immutable once built and safe to share.
package types

import (
	"reflect"
	"strings"
)

// Kind classifies a Type.
type Kind int

const (
	KindScalar Kind = iota
	KindAny
	KindRecord
	KindShape
	KindSlot
)

// Shape names. These are part of the wire contract: declared type names
// such as "Queryable[TestData]" use them.
const (
	ShapeSeq       = "Seq"
	ShapeQueryable = "Queryable"
	ShapeFunc      = "Func"
	ShapeExpr      = "Expr"
)

// Fn is the runtime representation of Func and Expr values.
type Fn func(args ...any) (any, error)

// Record is the runtime representation of schema-declared records.
type Record map[string]any

// Type is a static type descriptor.
type Type struct {
	name   string
	kind   Kind
	args   []*Type
	goType reflect.Type

	// records only
	fields     []Field
	fieldIndex map[string]int
}

// Builtin scalar types.
var (
	Bool    = scalar("bool", reflect.TypeFor[bool]())
	Int     = scalar("int", reflect.TypeFor[int]())
	Int8    = scalar("int8", reflect.TypeFor[int8]())
	Int16   = scalar("int16", reflect.TypeFor[int16]())
	Int32   = scalar("int32", reflect.TypeFor[int32]())
	Int64   = scalar("int64", reflect.TypeFor[int64]())
	Uint    = scalar("uint", reflect.TypeFor[uint]())
	Uint8   = scalar("uint8", reflect.TypeFor[uint8]())
	Uint16  = scalar("uint16", reflect.TypeFor[uint16]())
	Uint32  = scalar("uint32", reflect.TypeFor[uint32]())
	Uint64  = scalar("uint64", reflect.TypeFor[uint64]())
	Float32 = scalar("float32", reflect.TypeFor[float32]())
	Float64 = scalar("float64", reflect.TypeFor[float64]())
	String  = scalar("string", reflect.TypeFor[string]())
	Any     = &Type{name: "any", kind: KindAny, goType: reflect.TypeFor[any]()}
)

var builtins = []*Type{
	Bool, Int, Int8, Int16, Int32, Int64,
	Uint, Uint8, Uint16, Uint32, Uint64,
	Float32, Float64, String, Any,
}

var fnType = reflect.TypeFor[Fn]()

func scalar(name string, rt reflect.Type) *Type {
	return &Type{name: name, kind: KindScalar, goType: rt}
}

// NewSlot creates a generic slot. Slots are compared by identity, so two
// slots with the same name are still distinct.
func NewSlot(name string) *Type {
	return &Type{name: name, kind: KindSlot}
}

// Seq returns Seq[elem], a finite sequence materialized as a Go slice.
func Seq(elem *Type) *Type {
	return shape(ShapeSeq, elem)
}

// Queryable returns Queryable[elem]. Its base type is Seq[elem].
func Queryable(elem *Type) *Type {
	return shape(ShapeQueryable, elem)
}

// Func returns Func[params..., result].
func Func(params ...*Type) *Type {
	return shape(ShapeFunc, params...)
}

// Expr returns Expr[fn], the type of a quoted lambda.
func Expr(fn *Type) *Type {
	return shape(ShapeExpr, fn)
}

func shape(name string, args ...*Type) *Type {
	t := &Type{name: name, kind: KindShape, args: args}
	switch name {
	case ShapeSeq, ShapeQueryable:
		if et := args[0].goType; et != nil {
			t.goType = reflect.SliceOf(et)
		}
	case ShapeFunc, ShapeExpr:
		t.goType = fnType
	}
	return t
}

// Kind returns the type's kind.
func (t *Type) Kind() Kind { return t.kind }

// Shape returns the shape name for shapes and "" otherwise.
func (t *Type) Shape() string {
	if t.kind != KindShape {
		return ""
	}
	return t.name
}

// Args returns the shape's type arguments.
func (t *Type) Args() []*Type { return t.args }

// GoType returns the runtime representation, or nil when it depends on an
// unbound slot.
func (t *Type) GoType() reflect.Type { return t.goType }

// IsSlot reports whether t is a generic slot.
func (t *Type) IsSlot() bool { return t.kind == KindSlot }

// Is reports whether t is the shape with the given name.
func (t *Type) Is(shapeName string) bool {
	return t.kind == KindShape && t.name == shapeName
}

// Elem returns the element type of Seq and Queryable, nil otherwise.
func (t *Type) Elem() *Type {
	if t.Is(ShapeSeq) || t.Is(ShapeQueryable) {
		return t.args[0]
	}
	return nil
}

// Signature returns the parameter and result types of a Func, looking
// through one level of Expr. ok is false for any other type.
func (t *Type) Signature() (params []*Type, result *Type, ok bool) {
	if t.Is(ShapeExpr) {
		t = t.args[0]
	}
	if !t.Is(ShapeFunc) || len(t.args) == 0 {
		return nil, nil, false
	}
	n := len(t.args)
	return t.args[:n-1], t.args[n-1], true
}

// Name returns the stable registry name, e.g. "Func[TestData,bool]".
func (t *Type) Name() string {
	if t.kind != KindShape {
		return t.name
	}
	var b strings.Builder
	t.writeName(&b)
	return b.String()
}

func (t *Type) writeName(b *strings.Builder) {
	b.WriteString(t.name)
	if t.kind != KindShape {
		return
	}
	b.WriteByte('[')
	for i, a := range t.args {
		if i > 0 {
			b.WriteByte(',')
		}
		a.writeName(b)
	}
	b.WriteByte(']')
}

// String implements fmt.Stringer.
func (t *Type) String() string { return t.Name() }

// Bases returns the direct base types of t. Queryable[T] has base Seq[T].
func (t *Type) Bases() []*Type {
	if t.Is(ShapeQueryable) {
		return []*Type{Seq(t.args[0])}
	}
	return nil
}

// Identical reports whether a and b denote the same type. Shapes compare
// structurally; scalars, records and slots by identity.
func Identical(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.kind != KindShape || b.kind != KindShape {
		return false
	}
	if a.name != b.name || len(a.args) != len(b.args) {
		return false
	}
	for i := range a.args {
		if !Identical(a.args[i], b.args[i]) {
			return false
		}
	}
	return true
}

// AssignableFrom reports whether a value of type src can be used where
// target is expected: identical types, target any, or through src's bases.
func AssignableFrom(target, src *Type) bool {
	if Identical(target, src) || target.kind == KindAny {
		return true
	}
	for _, base := range src.Bases() {
		if AssignableFrom(target, base) {
			return true
		}
	}
	return false
}

// ContainsSlots reports whether t mentions any generic slot.
func ContainsSlots(t *Type) bool {
	if t.kind == KindSlot {
		return true
	}
	for _, a := range t.args {
		if ContainsSlots(a) {
			return true
		}
	}
	return false
}

// Substitute replaces bound slots in t. Unbound slots are kept.
func Substitute(t *Type, bindings map[*Type]*Type) *Type {
	switch t.kind {
	case KindSlot:
		if b, ok := bindings[t]; ok {
			return b
		}
		return t
	case KindShape:
		args := make([]*Type, len(t.args))
		changed := false
		for i, a := range t.args {
			args[i] = Substitute(a, bindings)
			changed = changed || args[i] != a
		}
		if !changed {
			return t
		}
		return shape(t.name, args...)
	}
	return t
}

// Nilable reports whether nil is a valid value of t.
func Nilable(t *Type) bool {
	switch t.kind {
	case KindAny, KindShape:
		return true
	case KindRecord:
		return t.goType == recordType
	}
	return false
}

// IsNumeric reports whether t is an integer or floating point scalar.
func IsNumeric(t *Type) bool {
	return IsInteger(t) || IsFloat(t)
}

// IsInteger reports whether t is a signed or unsigned integer scalar.
func IsInteger(t *Type) bool {
	if t.kind != KindScalar {
		return false
	}
	switch t.goType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// IsFloat reports whether t is float32 or float64.
func IsFloat(t *Type) bool {
	return t == Float32 || t == Float64
}
