package expr

import (
	"github.com/roach88/remoteq/internal/types"
)

// BinaryOp names a binary operator. Names are wire tags.
type BinaryOp string

const (
	Add                BinaryOp = "Add"
	AddChecked         BinaryOp = "AddChecked"
	Subtract           BinaryOp = "Subtract"
	SubtractChecked    BinaryOp = "SubtractChecked"
	Multiply           BinaryOp = "Multiply"
	MultiplyChecked    BinaryOp = "MultiplyChecked"
	Divide             BinaryOp = "Divide"
	Modulo             BinaryOp = "Modulo"
	Power              BinaryOp = "Power"
	And                BinaryOp = "And"
	Or                 BinaryOp = "Or"
	ExclusiveOr        BinaryOp = "ExclusiveOr"
	AndAlso            BinaryOp = "AndAlso"
	OrElse             BinaryOp = "OrElse"
	Equal              BinaryOp = "Equal"
	NotEqual           BinaryOp = "NotEqual"
	LessThan           BinaryOp = "LessThan"
	LessThanOrEqual    BinaryOp = "LessThanOrEqual"
	GreaterThan        BinaryOp = "GreaterThan"
	GreaterThanOrEqual BinaryOp = "GreaterThanOrEqual"
	LeftShift          BinaryOp = "LeftShift"
	RightShift         BinaryOp = "RightShift"
	Coalesce           BinaryOp = "Coalesce"
	ArrayIndex         BinaryOp = "ArrayIndex"
)

var binaryOps = map[BinaryOp]bool{
	Add: true, AddChecked: true, Subtract: true, SubtractChecked: true,
	Multiply: true, MultiplyChecked: true, Divide: true, Modulo: true,
	Power: true, And: true, Or: true, ExclusiveOr: true, AndAlso: true,
	OrElse: true, Equal: true, NotEqual: true, LessThan: true,
	LessThanOrEqual: true, GreaterThan: true, GreaterThanOrEqual: true,
	LeftShift: true, RightShift: true, Coalesce: true, ArrayIndex: true,
}

// ParseBinaryOp looks up an operator by wire name.
func ParseBinaryOp(name string) (BinaryOp, bool) {
	op := BinaryOp(name)
	return op, binaryOps[op]
}

// UnaryOp names a unary operator. Names are wire tags.
type UnaryOp string

const (
	Not            UnaryOp = "Not"
	Negate         UnaryOp = "Negate"
	NegateChecked  UnaryOp = "NegateChecked"
	UnaryPlus      UnaryOp = "UnaryPlus"
	Convert        UnaryOp = "Convert"
	ConvertChecked UnaryOp = "ConvertChecked"
	ArrayLength    UnaryOp = "ArrayLength"
	Quote          UnaryOp = "Quote"
	TypeAs         UnaryOp = "TypeAs"
)

var unaryOps = map[UnaryOp]bool{
	Not: true, Negate: true, NegateChecked: true, UnaryPlus: true,
	Convert: true, ConvertChecked: true, ArrayLength: true, Quote: true,
	TypeAs: true,
}

// ParseUnaryOp looks up an operator by wire name.
func ParseUnaryOp(name string) (UnaryOp, bool) {
	op := UnaryOp(name)
	return op, unaryOps[op]
}

// TakesTarget reports whether the operator's result type is supplied by
// the caller rather than derived from the operand.
func (op UnaryOp) TakesTarget() bool {
	return op == Convert || op == ConvertChecked || op == TypeAs
}

// MakeBinary builds a binary node, checking operand types.
func MakeBinary(op BinaryOp, left, right Expr) (*Binary, error) {
	if left == nil || right == nil {
		return nil, missing(KindBinary, "operand")
	}
	if !binaryOps[op] {
		return nil, mismatch(KindBinary, "unknown binary operator %q", op)
	}
	lt, rt := left.Type(), right.Type()
	bad := func() (*Binary, error) {
		return nil, mismatch(KindBinary, "operator %s not defined for %s and %s", op, lt, rt)
	}
	result := lt

	switch op {
	case Add:
		if !types.Identical(lt, rt) || !(types.IsNumeric(lt) || lt == types.String) {
			return bad()
		}
	case AddChecked, Subtract, SubtractChecked, Multiply, MultiplyChecked, Divide, Modulo:
		if !types.Identical(lt, rt) || !types.IsNumeric(lt) {
			return bad()
		}
	case Power:
		if lt != types.Float64 || rt != types.Float64 {
			return bad()
		}
	case And, Or, ExclusiveOr:
		if !types.Identical(lt, rt) || !(lt == types.Bool || types.IsInteger(lt)) {
			return bad()
		}
	case AndAlso, OrElse:
		if lt != types.Bool || rt != types.Bool {
			return bad()
		}
	case Equal, NotEqual:
		if !types.AssignableFrom(lt, rt) && !types.AssignableFrom(rt, lt) {
			return bad()
		}
		result = types.Bool
	case LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
		if !types.Identical(lt, rt) || !(types.IsNumeric(lt) || lt == types.String) {
			return bad()
		}
		result = types.Bool
	case LeftShift, RightShift:
		if !types.IsInteger(lt) || rt != types.Int {
			return bad()
		}
	case Coalesce:
		if !types.Nilable(lt) || !types.AssignableFrom(lt, rt) {
			return bad()
		}
	case ArrayIndex:
		elem := lt.Elem()
		if elem == nil || rt != types.Int {
			return bad()
		}
		result = elem
	}
	return &Binary{Op: op, Left: left, Right: right, typ: result}, nil
}

// MakeUnary builds a unary node. target is required for Convert,
// ConvertChecked and TypeAs and ignored otherwise.
func MakeUnary(op UnaryOp, operand Expr, target *types.Type) (*Unary, error) {
	if operand == nil {
		return nil, missing(KindUnary, "operand")
	}
	if !unaryOps[op] {
		return nil, mismatch(KindUnary, "unknown unary operator %q", op)
	}
	if op.TakesTarget() && target == nil {
		return nil, missing(KindUnary, "conversion target")
	}
	t := operand.Type()
	bad := func() (*Unary, error) {
		return nil, mismatch(KindUnary, "operator %s not defined for %s", op, t)
	}
	result := t

	switch op {
	case Not:
		if t != types.Bool && !types.IsInteger(t) {
			return bad()
		}
	case Negate, NegateChecked, UnaryPlus:
		if !types.IsNumeric(t) {
			return bad()
		}
	case Convert, ConvertChecked:
		numeric := types.IsNumeric(t) && types.IsNumeric(target)
		if !numeric && !types.AssignableFrom(target, t) && !types.AssignableFrom(t, target) {
			return nil, mismatch(KindUnary, "cannot convert %s to %s", t, target)
		}
		result = target
	case TypeAs:
		if !types.Nilable(target) {
			return nil, mismatch(KindUnary, "TypeAs target %s cannot hold nil", target)
		}
		result = target
	case ArrayLength:
		if t.Elem() == nil {
			return bad()
		}
		result = types.Int
	case Quote:
		if operand.Kind() != KindLambda {
			return bad()
		}
		result = types.Expr(t)
	}
	return &Unary{Op: op, Operand: operand, typ: result}, nil
}
