// Package eval executes expression trees against Go values.
//
// It is a tree-walking interpreter: lambdas evaluate to types.Fn closures
// over the frame they were created in, calls run the catalog
// implementation of their instantiated operation, and record fields are
// read through their type descriptors. Failures are EVALUATION_FAILED
// errors naming the node kind and operation.
package eval

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/types"
)

// Eval evaluates e. The context is checked before every call node, so a
// cancelled request stops at the next pipeline stage or predicate call.
func Eval(ctx context.Context, e expr.Expr) (any, error) {
	in := &interp{ctx: ctx}
	return in.eval(e, nil)
}

type interp struct {
	ctx context.Context
}

// frame holds the arguments of one lambda invocation.
type frame struct {
	parent *frame
	vals   map[*expr.Parameter]any
}

func (f *frame) lookup(p *expr.Parameter) (any, bool) {
	for n := f; n != nil; n = n.parent {
		if v, ok := n.vals[p]; ok {
			return v, true
		}
	}
	return nil, false
}

func (in *interp) eval(e expr.Expr, f *frame) (any, error) {
	switch n := e.(type) {
	case *expr.Constant:
		return n.Value, nil
	case *expr.Parameter:
		v, ok := f.lookup(n)
		if !ok {
			return nil, failed(n, nil, "parameter %q has no value", n.Name)
		}
		return v, nil
	case *expr.Lambda:
		return in.closure(n, f), nil
	case *expr.Binary:
		return in.binary(n, f)
	case *expr.Unary:
		return in.unary(n, f)
	case *expr.Conditional:
		test, err := in.eval(n.Test, f)
		if err != nil {
			return nil, err
		}
		b, err := asBool(n, test)
		if err != nil {
			return nil, err
		}
		if b {
			return in.eval(n.IfTrue, f)
		}
		return in.eval(n.IfFalse, f)
	case *expr.Call:
		return in.call(n, f)
	case *expr.Invoke:
		fn, err := in.eval(n.Func, f)
		if err != nil {
			return nil, err
		}
		args, err := in.list(n.Args, f)
		if err != nil {
			return nil, err
		}
		call, ok := fn.(types.Fn)
		if !ok || call == nil {
			return nil, failed(n, nil, "invoking %T", fn)
		}
		return call(args...)
	case *expr.MemberAccess:
		return in.member(n, f)
	case *expr.New:
		return in.construct(n, nil, f)
	case *expr.MemberInit:
		values := make(map[string]any, len(n.Bindings))
		for _, b := range n.Bindings {
			v, err := in.eval(b.Value, f)
			if err != nil {
				return nil, err
			}
			values[b.Field.Name] = v
		}
		return in.construct(n.New, values, f)
	case *expr.ListInit:
		return in.listInit(n, f)
	case *expr.NewArray:
		return in.newArray(n, f)
	case *expr.TypeIs:
		v, err := in.eval(n.Operand, f)
		if err != nil {
			return nil, err
		}
		return hasType(n.Target, v), nil
	case nil:
		return nil, qerr.NewMalformedNode("", "nil expression")
	}
	return nil, qerr.NewUnsupportedNodeKind(e.Kind().String(), fmt.Sprintf("cannot evaluate %T", e))
}

func (in *interp) list(es []expr.Expr, f *frame) ([]any, error) {
	out := make([]any, len(es))
	for i, e := range es {
		v, err := in.eval(e, f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (in *interp) closure(l *expr.Lambda, f *frame) types.Fn {
	return func(args ...any) (any, error) {
		if len(args) != len(l.Params) {
			return nil, failed(l, nil, "lambda takes %d arguments, got %d", len(l.Params), len(args))
		}
		inner := &frame{parent: f, vals: make(map[*expr.Parameter]any, len(args))}
		for i, p := range l.Params {
			inner.vals[p] = args[i]
		}
		return in.eval(l.Body, inner)
	}
}

func (in *interp) call(n *expr.Call, f *frame) (any, error) {
	var recv any
	if n.Receiver != nil {
		v, err := in.eval(n.Receiver, f)
		if err != nil {
			return nil, err
		}
		recv = v
	}
	args, err := in.list(n.Args, f)
	if err != nil {
		return nil, err
	}
	if err := in.ctx.Err(); err != nil {
		return nil, err
	}

	out, err := n.Op.Invoke(recv, args)
	if err != nil {
		var qe *qerr.Error
		if errors.As(err, &qe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, failed(n, err, "%s failed", n.Op)
	}
	return out, nil
}

func (in *interp) member(n *expr.MemberAccess, f *frame) (any, error) {
	obj, err := in.eval(n.Object, f)
	if err != nil {
		return nil, err
	}
	if n.Property != nil {
		out, err := n.Property.Invoke(obj, nil)
		if err != nil {
			return nil, failed(n, err, "reading %s", n.Member)
		}
		return out, nil
	}
	if obj == nil {
		return nil, failed(n, nil, "reading %s of nil", n.Member)
	}
	out, err := n.Field.Get(obj)
	if err != nil {
		return nil, failed(n, err, "reading %s", n.Member)
	}
	return out, nil
}

func (in *interp) construct(n *expr.New, extra map[string]any, f *frame) (any, error) {
	t := n.Type()
	if t.Elem() != nil {
		gt := t.GoType()
		if gt == nil {
			return nil, failed(n, nil, "%s has no runtime representation", t)
		}
		return reflect.MakeSlice(gt, 0, 0).Interface(), nil
	}

	values := make(map[string]any, len(n.Members)+len(extra))
	for i, m := range n.Members {
		v, err := in.eval(n.Args[i], f)
		if err != nil {
			return nil, err
		}
		values[m.Name] = v
	}
	for k, v := range extra {
		values[k] = v
	}
	out, err := types.Build(t, values)
	if err != nil {
		return nil, failed(n, err, "constructing %s", t)
	}
	return out, nil
}

func (in *interp) listInit(n *expr.ListInit, f *frame) (any, error) {
	seq, err := in.construct(n.New, nil, f)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(seq)
	for _, init := range n.Inits {
		args, err := in.list(init.Args, f)
		if err != nil {
			return nil, err
		}
		rv = reflect.Append(rv, elemValue(rv.Type().Elem(), args[0]))
	}
	return rv.Interface(), nil
}

func (in *interp) newArray(n *expr.NewArray, f *frame) (any, error) {
	gt := n.Type().GoType()
	if gt == nil {
		return nil, failed(n, nil, "%s has no runtime representation", n.Type())
	}

	if n.Op == expr.ArrayBounds {
		v, err := in.eval(n.Exprs[0], f)
		if err != nil {
			return nil, err
		}
		length, err := asInt(n, v)
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, failed(n, nil, "negative array length %d", length)
		}
		return reflect.MakeSlice(gt, length, length).Interface(), nil
	}

	out := reflect.MakeSlice(gt, len(n.Exprs), len(n.Exprs))
	for i, e := range n.Exprs {
		v, err := in.eval(e, f)
		if err != nil {
			return nil, err
		}
		out.Index(i).Set(elemValue(gt.Elem(), v))
	}
	return out.Interface(), nil
}

// elemValue converts v for storage in a slice of et; nil becomes the zero
// value.
func elemValue(et reflect.Type, v any) reflect.Value {
	if v == nil {
		return reflect.Zero(et)
	}
	return reflect.ValueOf(v)
}

// hasType reports whether the runtime value v is a value of t.
func hasType(t *types.Type, v any) bool {
	if v == nil {
		return false
	}
	if t.Kind() == types.KindAny {
		return true
	}
	gt := t.GoType()
	return gt != nil && reflect.TypeOf(v) == gt
}

func failed(e expr.Expr, cause error, format string, args ...any) error {
	err := qerr.NewEvaluationFailed(cause, format, args...).WithNode(e.Kind().String())
	if c, ok := e.(*expr.Call); ok {
		err.Operation = c.Op.Op.Name
	}
	return err
}

// Count evaluates e and reports the length of the resulting sequence, or
// the int it produced.
func Count(ctx context.Context, e expr.Expr) (int, error) {
	v, err := Eval(ctx, e)
	if err != nil {
		return 0, err
	}
	if n, ok := v.(int); ok {
		return n, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		return rv.Len(), nil
	}
	return 0, qerr.NewEvaluationFailed(nil, "count produced %T", v)
}

// Slice evaluates e and asserts a []T result. A nil sequence is empty.
func Slice[T any](ctx context.Context, e expr.Expr) ([]T, error) {
	v, err := Eval(ctx, e)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []T{}, nil
	}
	out, ok := v.([]T)
	if !ok {
		return nil, qerr.NewEvaluationFailed(nil, "query produced %T, want %s", v, reflect.TypeFor[[]T]())
	}
	return out, nil
}
