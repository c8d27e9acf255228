package expr

import (
	"reflect"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/types"
)

// NewConstant builds a literal of type t. A non-nil value must have t's
// runtime representation; nil requires a nilable t.
func NewConstant(value any, t *types.Type) (*Constant, error) {
	if t == nil {
		return nil, missing(KindConstant, "type")
	}
	if value == nil {
		if !types.Nilable(t) {
			return nil, mismatch(KindConstant, "nil is not a value of %s", t)
		}
		return &Constant{typ: t}, nil
	}
	if gt := t.GoType(); gt != nil && !reflect.TypeOf(value).AssignableTo(gt) {
		return nil, mismatch(KindConstant, "%T is not a value of %s", value, t)
	}
	return &Constant{Value: value, typ: t}, nil
}

// NewParameter declares a fresh parameter identity.
func NewParameter(t *types.Type, name string) *Parameter {
	return &Parameter{Name: name, typ: t}
}

// NewLambda builds a function literal. Parameters must be distinct
// identities.
func NewLambda(body Expr, params ...*Parameter) (*Lambda, error) {
	if body == nil {
		return nil, missing(KindLambda, "body")
	}
	sig := make([]*types.Type, 0, len(params)+1)
	seen := make(map[*Parameter]bool, len(params))
	for _, p := range params {
		if p == nil {
			return nil, missing(KindLambda, "parameter")
		}
		if seen[p] {
			return nil, qerr.NewParameterBindingConflict(p.Name, p.typ.Name(), p.typ.Name()).
				WithDetail("reason", "parameter declared twice")
		}
		seen[p] = true
		sig = append(sig, p.typ)
	}
	sig = append(sig, body.Type())
	return &Lambda{Params: params, Body: body, typ: types.Func(sig...)}, nil
}

// NewInvoke calls a Func-typed value.
func NewInvoke(fn Expr, args ...Expr) (*Invoke, error) {
	if fn == nil {
		return nil, missing(KindInvoke, "function")
	}
	if !fn.Type().Is(types.ShapeFunc) {
		return nil, mismatch(KindInvoke, "cannot invoke %s", fn.Type())
	}
	params, result, _ := fn.Type().Signature()
	if err := checkArgs(KindInvoke, params, args); err != nil {
		return nil, err
	}
	return &Invoke{Func: fn, Args: args, typ: result}, nil
}

// NewCall calls an instantiated catalog operation.
func NewCall(op *catalog.Instance, recv Expr, args ...Expr) (*Call, error) {
	if op == nil {
		return nil, missing(KindCall, "operation")
	}
	switch {
	case op.Op.Kind == catalog.Static && recv != nil:
		return nil, mismatch(KindCall, "%s takes no receiver", op)
	case op.Op.Kind != catalog.Static && recv == nil:
		return nil, mismatch(KindCall, "%s needs a receiver", op)
	case recv != nil && !types.AssignableFrom(op.Receiver, recv.Type()):
		return nil, mismatch(KindCall, "%s: receiver %s is not %s", op, recv.Type(), op.Receiver)
	}
	if err := checkArgs(KindCall, op.Params, args); err != nil {
		return nil, err
	}
	return &Call{Op: op, Receiver: recv, Args: args}, nil
}

// NewConditional builds test ? ifTrue : ifFalse. Both branches must have
// the same type.
func NewConditional(test, ifTrue, ifFalse Expr) (*Conditional, error) {
	if test == nil || ifTrue == nil || ifFalse == nil {
		return nil, missing(KindConditional, "operand")
	}
	if test.Type() != types.Bool {
		return nil, mismatch(KindConditional, "test is %s, want bool", test.Type())
	}
	if !types.Identical(ifTrue.Type(), ifFalse.Type()) {
		return nil, mismatch(KindConditional, "branches differ: %s and %s", ifTrue.Type(), ifFalse.Type())
	}
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}, nil
}

// NewFieldAccess reads a record field.
func NewFieldAccess(obj Expr, f types.Field) *MemberAccess {
	return &MemberAccess{Object: obj, Member: f.Name, Field: &f}
}

// NewPropertyAccess reads a catalog property.
func NewPropertyAccess(obj Expr, prop *catalog.Instance) (*MemberAccess, error) {
	if prop.Op.Kind != catalog.Property {
		return nil, mismatch(KindMemberAccess, "%s is not a property", prop)
	}
	if !types.AssignableFrom(prop.Receiver, obj.Type()) {
		return nil, mismatch(KindMemberAccess, "%s: receiver %s is not %s", prop, obj.Type(), prop.Receiver)
	}
	return &MemberAccess{Object: obj, Member: prop.Op.Name, Property: prop}, nil
}

// NewNew constructs a record of type t, assigning args to members in
// order. Without members the record is zero valued and args must be empty.
func NewNew(t *types.Type, members []types.Field, args ...Expr) (*New, error) {
	if t == nil {
		return nil, missing(KindNew, "type")
	}
	if t.Kind() != types.KindRecord && !t.Is(types.ShapeSeq) {
		return nil, mismatch(KindNew, "cannot construct %s", t)
	}
	if len(members) != len(args) {
		return nil, mismatch(KindNew, "%d members but %d arguments", len(members), len(args))
	}
	for i, m := range members {
		if _, ok := t.Field(m.Name); !ok {
			return nil, mismatch(KindNew, "%s has no field %s", t, m.Name)
		}
		if args[i] == nil {
			return nil, missing(KindNew, "argument")
		}
		if !types.AssignableFrom(m.Type, args[i].Type()) {
			return nil, mismatch(KindNew, "field %s is %s, got %s", m.Name, m.Type, args[i].Type())
		}
	}
	return &New{Members: members, Args: args, typ: t}, nil
}

// NewMemberInit constructs a record and assigns fields.
func NewMemberInit(n *New, bindings ...Binding) (*MemberInit, error) {
	if n == nil {
		return nil, missing(KindMemberInit, "constructor")
	}
	for _, b := range bindings {
		if _, ok := n.typ.Field(b.Field.Name); !ok {
			return nil, mismatch(KindMemberInit, "%s has no field %s", n.typ, b.Field.Name)
		}
		if b.Value == nil {
			return nil, missing(KindMemberInit, "binding value")
		}
		if !types.AssignableFrom(b.Field.Type, b.Value.Type()) {
			return nil, mismatch(KindMemberInit, "field %s is %s, got %s", b.Field.Name, b.Field.Type, b.Value.Type())
		}
	}
	return &MemberInit{New: n, Bindings: bindings}, nil
}

// NewListInit constructs a sequence and appends each initializer's single
// argument through its Add method.
func NewListInit(n *New, inits ...ElementInit) (*ListInit, error) {
	if n == nil {
		return nil, missing(KindListInit, "constructor")
	}
	elem := n.typ.Elem()
	if elem == nil {
		return nil, mismatch(KindListInit, "%s is not a sequence", n.typ)
	}
	for _, in := range inits {
		if in.Method != "Add" {
			return nil, mismatch(KindListInit, "unknown add method %q", in.Method)
		}
		if err := checkArgs(KindListInit, []*types.Type{elem}, in.Args); err != nil {
			return nil, err
		}
	}
	return &ListInit{New: n, Inits: inits}, nil
}

// NewArrayInit builds a sequence of elem from element expressions.
func NewArrayInit(elem *types.Type, exprs ...Expr) (*NewArray, error) {
	for _, e := range exprs {
		if e == nil {
			return nil, missing(KindNewArray, "element")
		}
		if !types.AssignableFrom(elem, e.Type()) {
			return nil, mismatch(KindNewArray, "element %s is not %s", e.Type(), elem)
		}
	}
	return &NewArray{Op: ArrayInit, Elem: elem, Exprs: exprs}, nil
}

// NewArrayBounds builds a zero-filled sequence of elem with the given length.
func NewArrayBounds(elem *types.Type, length Expr) (*NewArray, error) {
	if length == nil {
		return nil, missing(KindNewArray, "bound")
	}
	if length.Type() != types.Int {
		return nil, mismatch(KindNewArray, "bound is %s, want int", length.Type())
	}
	return &NewArray{Op: ArrayBounds, Elem: elem, Exprs: []Expr{length}}, nil
}

// NewTypeIs tests operand against target at runtime.
func NewTypeIs(operand Expr, target *types.Type) (*TypeIs, error) {
	if operand == nil || target == nil {
		return nil, missing(KindTypeIs, "operand")
	}
	return &TypeIs{Operand: operand, Target: target}, nil
}

func checkArgs(k Kind, params []*types.Type, args []Expr) error {
	if len(params) != len(args) {
		return mismatch(k, "want %d arguments, got %d", len(params), len(args))
	}
	for i, a := range args {
		if a == nil {
			return missing(k, "argument")
		}
		if !types.AssignableFrom(params[i], a.Type()) {
			return mismatch(k, "argument %d is %s, want %s", i, a.Type(), params[i])
		}
	}
	return nil
}
