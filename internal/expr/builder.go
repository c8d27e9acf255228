package expr

import (
	"fmt"
	"reflect"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/types"
	"github.com/roach88/remoteq/internal/unify"
)

// Member resolves obj.name: a record field first, then a catalog property
// of obj's type.
func Member(cat *catalog.Catalog, obj Expr, name string, policy unify.Policy) (*MemberAccess, error) {
	if obj == nil {
		return nil, missing(KindMemberAccess, "object")
	}
	if f, ok := obj.Type().Field(name); ok {
		return NewFieldAccess(obj, f), nil
	}
	prop, err := unify.ResolveProperty(cat, obj.Type(), name, policy)
	if err != nil {
		if qerr.Is(err, qerr.CodeOperationNotFound) {
			return nil, qerr.NewTypeMismatch("%s has no member %s", obj.Type(), name).
				WithNode(KindMemberAccess.String())
		}
		return nil, err
	}
	return NewPropertyAccess(obj, prop)
}

// Builder composes expressions with catalog-backed resolution. The first
// error is sticky: once set, every method returns nil and Err reports it.
//
//	b := expr.NewBuilder(reg, cat)
//	x := b.Param(rec, "x")
//	pred := b.Lambda(b.Call("Contains", b.Field(x, "Xs"), b.Const(19)), x)
//	if err := b.Err(); err != nil { ... }
type Builder struct {
	reg *types.Registry
	cat *catalog.Catalog
	err error
}

// NewBuilder returns a builder over the given registry and catalog.
func NewBuilder(reg *types.Registry, cat *catalog.Catalog) *Builder {
	return &Builder{reg: reg, cat: cat}
}

// Err returns the first error encountered.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) bool {
	if err != nil && b.err == nil {
		b.err = err
	}
	return b.err != nil
}

func (b *Builder) ok(es ...Expr) bool {
	if b.err != nil {
		return false
	}
	for _, e := range es {
		if isNil(e) {
			b.err = fmt.Errorf("expr builder: nil operand")
			return false
		}
	}
	return true
}

// isNil catches typed nil pointers stored in an Expr.
func isNil(e Expr) bool {
	if e == nil {
		return true
	}
	rv := reflect.ValueOf(e)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Param declares a parameter.
func (b *Builder) Param(t *types.Type, name string) *Parameter {
	return NewParameter(t, name)
}

// Const builds a literal typed from its Go value.
func (b *Builder) Const(v any) Expr {
	if b.err != nil {
		return nil
	}
	if v == nil {
		return b.ConstOf(nil, types.Any)
	}
	t, err := b.reg.TypeOf(reflect.TypeOf(v))
	if b.fail(err) {
		return nil
	}
	return b.ConstOf(v, t)
}

// ConstOf builds a literal of an explicit type.
func (b *Builder) ConstOf(v any, t *types.Type) Expr {
	if b.err != nil {
		return nil
	}
	c, err := NewConstant(v, t)
	if b.fail(err) {
		return nil
	}
	return c
}

// Field reads a member of obj.
func (b *Builder) Field(obj Expr, name string) Expr {
	if !b.ok(obj) {
		return nil
	}
	m, err := Member(b.cat, obj, name, unify.SingleMatch)
	if b.fail(err) {
		return nil
	}
	return m
}

// Binary applies a binary operator.
func (b *Builder) Binary(op BinaryOp, left, right Expr) Expr {
	if !b.ok(left, right) {
		return nil
	}
	e, err := MakeBinary(op, left, right)
	if b.fail(err) {
		return nil
	}
	return e
}

// Unary applies a unary operator without a target type.
func (b *Builder) Unary(op UnaryOp, operand Expr) Expr {
	return b.Convert(op, operand, nil)
}

// Convert applies a conversion to target.
func (b *Builder) Convert(op UnaryOp, operand Expr, target *types.Type) Expr {
	if !b.ok(operand) {
		return nil
	}
	e, err := MakeUnary(op, operand, target)
	if b.fail(err) {
		return nil
	}
	return e
}

// Not negates a boolean.
func (b *Builder) Not(operand Expr) Expr { return b.Unary(Not, operand) }

// Cond builds a conditional.
func (b *Builder) Cond(test, ifTrue, ifFalse Expr) Expr {
	if !b.ok(test, ifTrue, ifFalse) {
		return nil
	}
	e, err := NewConditional(test, ifTrue, ifFalse)
	if b.fail(err) {
		return nil
	}
	return e
}

// Lambda builds a function literal.
func (b *Builder) Lambda(body Expr, params ...*Parameter) Expr {
	if !b.ok(body) {
		return nil
	}
	l, err := NewLambda(body, params...)
	if b.fail(err) {
		return nil
	}
	return l
}

// Quote wraps a lambda as an Expr[...] value, the form pipeline stages
// take.
func (b *Builder) Quote(lambda Expr) Expr { return b.Unary(Quote, lambda) }

// Invoke calls a function value.
func (b *Builder) Invoke(fn Expr, args ...Expr) Expr {
	if !b.ok(append([]Expr{fn}, args...)...) {
		return nil
	}
	e, err := NewInvoke(fn, args...)
	if b.fail(err) {
		return nil
	}
	return e
}

// Call resolves and calls a receiver-less operation across all owners.
func (b *Builder) Call(name string, args ...Expr) Expr {
	if !b.ok(args...) {
		return nil
	}
	inst, err := unify.ResolveStatic(b.cat, name, TypesOf(args), unify.FirstMatch)
	if b.fail(err) {
		return nil
	}
	return b.call(inst, nil, args)
}

// Stage resolves and calls a pipeline operation of the Queryable owner.
func (b *Builder) Stage(name string, args ...Expr) Expr {
	if !b.ok(args...) {
		return nil
	}
	inst, err := unify.ResolveIn(b.cat, catalog.OwnerQueryable, name, TypesOf(args), unify.FirstMatch)
	if b.fail(err) {
		return nil
	}
	return b.call(inst, nil, args)
}

// Method resolves and calls a method on recv.
func (b *Builder) Method(recv Expr, name string, args ...Expr) Expr {
	if !b.ok(append([]Expr{recv}, args...)...) {
		return nil
	}
	inst, err := unify.ResolveMethod(b.cat, recv.Type(), name, TypesOf(args), unify.SingleMatch)
	if b.fail(err) {
		return nil
	}
	return b.call(inst, recv, args)
}

func (b *Builder) call(inst *catalog.Instance, recv Expr, args []Expr) Expr {
	c, err := NewCall(inst, recv, args...)
	if b.fail(err) {
		return nil
	}
	return c
}

// TypesOf returns the static types of es.
func TypesOf(es []Expr) []*types.Type {
	ts := make([]*types.Type, len(es))
	for i, e := range es {
		ts[i] = e.Type()
	}
	return ts
}
