package rebuild

import (
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/scope"
	"github.com/roach88/remoteq/internal/types"
	"github.com/roach88/remoteq/internal/unify"
)

// constant converts the literal to the Go representation of the declared
// type.
func (r *Rebuilder) constant(n *queryir.Node, t *types.Type) (expr.Expr, error) {
	if n.LiteralValue == nil {
		return nil, qerr.NewMalformedNode(string(n.Kind), "constant without literal_value")
	}
	switch n.LiteralValue.(type) {
	case ir.IRArray, ir.IRObject:
		return nil, qerr.NewUnsupportedLiteral(t.Name(), nil)
	case ir.IRNull:
		return expr.NewConstant(nil, t)
	}
	v, err := types.Coerce(t, ir.ToGo(n.LiteralValue))
	if err != nil {
		return nil, qerr.NewUnsupportedLiteral(t.Name(), err)
	}
	return expr.NewConstant(v, t)
}

// lambda declares the lambda's own parameters in a fresh scope, rebuilds
// the body there, and rejects any name the body used that neither this
// lambda nor an enclosing one declares.
func (r *Rebuilder) lambda(n *queryir.Node, sc *scope.Scope) (expr.Expr, error) {
	if len(n.Children) == 0 {
		return nil, qerr.NewMalformedNode(string(n.Kind), "missing body")
	}
	inner := sc.Enter()
	last := len(n.Children) - 1

	params := make([]*expr.Parameter, 0, last)
	for i, c := range n.Children[:last] {
		if c == nil || c.Kind != queryir.KindParameter {
			return nil, qerr.NewMalformedNode(string(n.Kind), "child %d is not a parameter", i)
		}
		t, err := r.resolveType(c.DeclaredTypeName)
		if err != nil {
			return nil, annotate(err, c)
		}
		p, err := inner.Declare(t, c.OperationName)
		if err != nil {
			return nil, annotate(err, c)
		}
		params = append(params, p)
	}

	if n.Children[last] == nil {
		return nil, qerr.NewMalformedNode(string(n.Kind), "missing body")
	}
	body, err := r.build(n.Children[last], inner)
	if err != nil {
		return nil, err
	}
	if err := inner.Close(params); err != nil {
		return nil, err
	}
	return expr.NewLambda(body, params...)
}

func (r *Rebuilder) binary(n *queryir.Node, sc *scope.Scope) (expr.Expr, error) {
	op, ok := expr.ParseBinaryOp(n.OperationName)
	if !ok {
		return nil, qerr.NewMalformedNode(string(n.Kind), "unknown binary operator %q", n.OperationName)
	}
	kids, err := r.children(n, sc, 2)
	if err != nil {
		return nil, err
	}
	return expr.MakeBinary(op, kids[0], kids[1])
}

func (r *Rebuilder) unary(n *queryir.Node, t *types.Type, sc *scope.Scope) (expr.Expr, error) {
	op, ok := expr.ParseUnaryOp(n.OperationName)
	if !ok {
		return nil, qerr.NewMalformedNode(string(n.Kind), "unknown unary operator %q", n.OperationName)
	}
	kids, err := r.children(n, sc, 1)
	if err != nil {
		return nil, err
	}
	var target *types.Type
	if op.TakesTarget() {
		target = t
	}
	return expr.MakeUnary(op, kids[0], target)
}

// call resolves a receiver-less call across all static operations, or a
// method on the receiver's type.
func (r *Rebuilder) call(n *queryir.Node, sc *scope.Scope) (expr.Expr, error) {
	if len(n.Children) == 0 {
		return nil, qerr.NewMalformedNode(string(n.Kind), "missing receiver slot")
	}
	args, err := r.list(n, n.Children[1:], sc)
	if err != nil {
		return nil, err
	}
	argTypes := expr.TypesOf(args)

	if n.Children[0] == nil {
		inst, err := unify.ResolveStatic(r.cat, n.OperationName, argTypes, r.policy(unify.FirstMatch))
		if err != nil {
			return nil, err
		}
		return expr.NewCall(inst, nil, args...)
	}

	recv, err := r.build(n.Children[0], sc)
	if err != nil {
		return nil, err
	}
	inst, err := unify.ResolveMethod(r.cat, recv.Type(), n.OperationName, argTypes, r.policy(unify.SingleMatch))
	if err != nil {
		return nil, err
	}
	return expr.NewCall(inst, recv, args...)
}

func (r *Rebuilder) newArray(n *queryir.Node, t *types.Type, sc *scope.Scope) (expr.Expr, error) {
	elem := t.Elem()
	if elem == nil {
		return nil, qerr.NewTypeMismatch("%s is not a sequence", t)
	}
	switch expr.NewArrayOp(n.OperationName) {
	case expr.ArrayInit:
		kids, err := r.children(n, sc, -1)
		if err != nil {
			return nil, err
		}
		return expr.NewArrayInit(elem, kids...)
	case expr.ArrayBounds:
		kids, err := r.children(n, sc, 1)
		if err != nil {
			return nil, err
		}
		return expr.NewArrayBounds(elem, kids[0])
	}
	return nil, qerr.NewMalformedNode(string(n.Kind), "unknown array operation %q", n.OperationName)
}
