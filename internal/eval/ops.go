package eval

import (
	"fmt"
	"math"
	"reflect"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/types"
)

func (in *interp) binary(n *expr.Binary, f *frame) (any, error) {
	left, err := in.eval(n.Left, f)
	if err != nil {
		return nil, err
	}

	// Short-circuit operators evaluate the right side only when needed.
	switch n.Op {
	case expr.AndAlso, expr.OrElse:
		b, err := asBool(n, left)
		if err != nil {
			return nil, err
		}
		if b == (n.Op == expr.OrElse) {
			return b, nil
		}
		right, err := in.eval(n.Right, f)
		if err != nil {
			return nil, err
		}
		if _, err := asBool(n, right); err != nil {
			return nil, err
		}
		return right, nil
	case expr.Coalesce:
		if !isNil(left) {
			return left, nil
		}
		return in.eval(n.Right, f)
	}

	right, err := in.eval(n.Right, f)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case expr.Equal:
		return catalog.Equal(left, right), nil
	case expr.NotEqual:
		return !catalog.Equal(left, right), nil
	case expr.LessThan, expr.LessThanOrEqual, expr.GreaterThan, expr.GreaterThanOrEqual:
		c, err := catalog.Compare(left, right)
		if err != nil {
			return nil, failed(n, err, "comparing")
		}
		return ordered(n.Op, c), nil
	case expr.ArrayIndex:
		i, err := asInt(n, right)
		if err != nil {
			return nil, err
		}
		rv := reflect.ValueOf(left)
		if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return nil, failed(n, nil, "indexing %T", left)
		}
		if i < 0 || i >= rv.Len() {
			return nil, failed(n, nil, "index %d out of range", i)
		}
		return rv.Index(i).Interface(), nil
	case expr.Power:
		x, ok1 := left.(float64)
		y, ok2 := right.(float64)
		if !ok1 || !ok2 {
			return nil, failed(n, nil, "power of %T and %T", left, right)
		}
		return math.Pow(x, y), nil
	}

	out, err := arith(n.Op, reflect.ValueOf(left), reflect.ValueOf(right))
	if err != nil {
		return nil, failed(n, err, "%s", n.Op)
	}
	return out, nil
}

// asBool and asInt check a runtime value against the static type the
// operator relies on. Values reaching an operator through any or a null
// constant may not match it.
func asBool(e expr.Expr, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, failed(e, nil, "want bool, got %T", v)
	}
	return b, nil
}

func asInt(e expr.Expr, v any) (int, error) {
	i, ok := v.(int)
	if !ok {
		return 0, failed(e, nil, "want int, got %T", v)
	}
	return i, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func ordered(op expr.BinaryOp, c int) bool {
	switch op {
	case expr.LessThan:
		return c < 0
	case expr.LessThanOrEqual:
		return c <= 0
	case expr.GreaterThan:
		return c > 0
	}
	return c >= 0
}

var (
	errDivideByZero = fmt.Errorf("division by zero")
	errOverflow     = fmt.Errorf("arithmetic overflow")
)

// arith applies an arithmetic, bitwise or logical operator to two values
// of the same Go type.
func arith(op expr.BinaryOp, a, b reflect.Value) (any, error) {
	if !a.IsValid() || !b.IsValid() {
		return nil, fmt.Errorf("operator %s applied to null", op)
	}
	shift := op == expr.LeftShift || op == expr.RightShift
	switch {
	case shift && !b.CanInt():
		return nil, fmt.Errorf("shift count is %s, want int", b.Type())
	case shift && b.Int() < 0:
		return nil, fmt.Errorf("negative shift count %d", b.Int())
	case !shift && a.Type() != b.Type():
		return nil, fmt.Errorf("operator %s applied to %s and %s", op, a.Type(), b.Type())
	}
	out := reflect.New(a.Type()).Elem()

	switch {
	case a.Kind() == reflect.Bool:
		x, y := a.Bool(), b.Bool()
		switch op {
		case expr.And:
			out.SetBool(x && y)
		case expr.Or:
			out.SetBool(x || y)
		case expr.ExclusiveOr:
			out.SetBool(x != y)
		default:
			return nil, fmt.Errorf("operator %s not defined for bool", op)
		}

	case a.Kind() == reflect.String:
		if op != expr.Add {
			return nil, fmt.Errorf("operator %s not defined for string", op)
		}
		out.SetString(a.String() + b.String())

	case a.CanInt():
		r, err := intOp(op, a.Int(), b.Int())
		if err != nil {
			return nil, err
		}
		if checked(op) && out.OverflowInt(r) {
			return nil, errOverflow
		}
		out.SetInt(r)

	case a.CanUint():
		var y uint64
		if shift {
			y = uint64(b.Int())
		} else {
			y = b.Uint()
		}
		r, err := uintOp(op, a.Uint(), y)
		if err != nil {
			return nil, err
		}
		if checked(op) && out.OverflowUint(r) {
			return nil, errOverflow
		}
		out.SetUint(r)

	case a.CanFloat():
		r, err := floatOp(op, a.Float(), b.Float())
		if err != nil {
			return nil, err
		}
		out.SetFloat(r)

	default:
		return nil, fmt.Errorf("operator %s not defined for %s", op, a.Type())
	}
	return out.Interface(), nil
}

func checked(op expr.BinaryOp) bool {
	return op == expr.AddChecked || op == expr.SubtractChecked || op == expr.MultiplyChecked
}

func intOp(op expr.BinaryOp, x, y int64) (int64, error) {
	switch op {
	case expr.Add:
		return x + y, nil
	case expr.AddChecked:
		r := x + y
		if (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0) {
			return 0, errOverflow
		}
		return r, nil
	case expr.Subtract:
		return x - y, nil
	case expr.SubtractChecked:
		r := x - y
		if (x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0) {
			return 0, errOverflow
		}
		return r, nil
	case expr.Multiply:
		return x * y, nil
	case expr.MultiplyChecked:
		if x == 0 || y == 0 {
			return 0, nil
		}
		r := x * y
		if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return 0, errOverflow
		}
		return r, nil
	case expr.Divide, expr.Modulo:
		if y == 0 {
			return 0, errDivideByZero
		}
		if op == expr.Divide {
			return x / y, nil
		}
		return x % y, nil
	case expr.And:
		return x & y, nil
	case expr.Or:
		return x | y, nil
	case expr.ExclusiveOr:
		return x ^ y, nil
	case expr.LeftShift, expr.RightShift:
		if y < 0 {
			return 0, fmt.Errorf("negative shift count %d", y)
		}
		if op == expr.LeftShift {
			return x << uint64(y), nil
		}
		return x >> uint64(y), nil
	}
	return 0, fmt.Errorf("operator %s not defined for integers", op)
}

func uintOp(op expr.BinaryOp, x, y uint64) (uint64, error) {
	switch op {
	case expr.Add:
		return x + y, nil
	case expr.AddChecked:
		if x+y < x {
			return 0, errOverflow
		}
		return x + y, nil
	case expr.Subtract:
		return x - y, nil
	case expr.SubtractChecked:
		if y > x {
			return 0, errOverflow
		}
		return x - y, nil
	case expr.Multiply:
		return x * y, nil
	case expr.MultiplyChecked:
		if x != 0 && (x*y)/x != y {
			return 0, errOverflow
		}
		return x * y, nil
	case expr.Divide, expr.Modulo:
		if y == 0 {
			return 0, errDivideByZero
		}
		if op == expr.Divide {
			return x / y, nil
		}
		return x % y, nil
	case expr.And:
		return x & y, nil
	case expr.Or:
		return x | y, nil
	case expr.ExclusiveOr:
		return x ^ y, nil
	case expr.LeftShift:
		return x << y, nil
	case expr.RightShift:
		return x >> y, nil
	}
	return 0, fmt.Errorf("operator %s not defined for unsigned integers", op)
}

func floatOp(op expr.BinaryOp, x, y float64) (float64, error) {
	switch op {
	case expr.Add, expr.AddChecked:
		return x + y, nil
	case expr.Subtract, expr.SubtractChecked:
		return x - y, nil
	case expr.Multiply, expr.MultiplyChecked:
		return x * y, nil
	case expr.Divide:
		if y == 0 {
			return 0, errDivideByZero
		}
		return x / y, nil
	case expr.Modulo:
		if y == 0 {
			return 0, errDivideByZero
		}
		return math.Mod(x, y), nil
	}
	return 0, fmt.Errorf("operator %s not defined for floats", op)
}

func (in *interp) unary(n *expr.Unary, f *frame) (any, error) {
	v, err := in.eval(n.Operand, f)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case expr.Quote, expr.UnaryPlus:
		return v, nil
	case expr.Not:
		if b, ok := v.(bool); ok {
			return !b, nil
		}
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || (!rv.CanInt() && !rv.CanUint()) {
			return nil, failed(n, nil, "cannot apply %s to %T", n.Op, v)
		}
		out := reflect.New(rv.Type()).Elem()
		if rv.CanInt() {
			out.SetInt(^rv.Int())
		} else {
			out.SetUint(^rv.Uint())
		}
		return out.Interface(), nil
	case expr.Negate, expr.NegateChecked:
		return negate(n, reflect.ValueOf(v))
	case expr.ArrayLength:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() {
			return 0, nil
		}
		return rv.Len(), nil
	case expr.TypeAs:
		if hasType(n.Type(), v) {
			return v, nil
		}
		return nil, nil
	case expr.Convert, expr.ConvertChecked:
		return convert(n, v)
	}
	return nil, failed(n, nil, "unknown operator %s", n.Op)
}

func negate(n *expr.Unary, rv reflect.Value) (any, error) {
	if !rv.IsValid() {
		return nil, failed(n, nil, "cannot negate null")
	}
	out := reflect.New(rv.Type()).Elem()
	switch {
	case rv.CanInt():
		x := rv.Int()
		if n.Op == expr.NegateChecked && (x == math.MinInt64 || out.OverflowInt(-x)) {
			return nil, failed(n, errOverflow, "negating %d", x)
		}
		out.SetInt(-x)
	case rv.CanUint():
		if n.Op == expr.NegateChecked && rv.Uint() != 0 {
			return nil, failed(n, errOverflow, "negating unsigned %d", rv.Uint())
		}
		out.SetUint(-rv.Uint())
	case rv.CanFloat():
		out.SetFloat(-rv.Float())
	default:
		return nil, failed(n, nil, "cannot negate %s", rv.Type())
	}
	return out.Interface(), nil
}

// convert applies Convert and ConvertChecked. Numeric conversions follow
// Go's rules; the checked form fails when the value does not survive the
// conversion. Other conversions only change the static type, so the
// runtime value must already be a value of the target type, and null is
// accepted only where the target allows it.
func convert(n *expr.Unary, v any) (any, error) {
	target := n.Type()
	gt := target.GoType()
	if v == nil {
		if !types.Nilable(target) {
			return nil, failed(n, nil, "cannot convert null to %s", target)
		}
		return nil, nil
	}

	rv := reflect.ValueOf(v)
	if !types.IsNumeric(target) || !isNumber(rv) {
		if gt != nil && !rv.Type().AssignableTo(gt) {
			return nil, failed(n, nil, "cannot convert %T to %s", v, target)
		}
		return v, nil
	}

	if n.Op == expr.ConvertChecked && !representable(rv, gt) {
		return nil, failed(n, errOverflow, "%v does not fit in %s", v, target)
	}
	return rv.Convert(gt).Interface(), nil
}

func isNumber(rv reflect.Value) bool {
	return rv.CanInt() || rv.CanUint() || rv.CanFloat()
}

// representable reports whether rv converts to gt without overflow.
// Float to integer conversions truncate towards zero first.
func representable(rv reflect.Value, gt reflect.Type) bool {
	out := reflect.New(gt).Elem()
	switch {
	case rv.CanFloat():
		x := math.Trunc(rv.Float())
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return out.CanFloat()
		}
		switch {
		case out.CanInt():
			return x >= math.MinInt64 && x < math.MaxInt64 && !out.OverflowInt(int64(x))
		case out.CanUint():
			return x >= 0 && x < math.MaxUint64 && !out.OverflowUint(uint64(x))
		case out.CanFloat():
			return !out.OverflowFloat(rv.Float())
		}
	case rv.CanInt():
		x := rv.Int()
		switch {
		case out.CanInt():
			return !out.OverflowInt(x)
		case out.CanUint():
			return x >= 0 && !out.OverflowUint(uint64(x))
		}
		return true
	case rv.CanUint():
		x := rv.Uint()
		switch {
		case out.CanInt():
			return x <= math.MaxInt64 && !out.OverflowInt(int64(x))
		case out.CanUint():
			return !out.OverflowUint(x)
		}
		return true
	}
	return false
}
