package capture

import (
	"fmt"
	"reflect"

	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/types"
)

// Node converts one expression tree. The conversion is total over the
// fourteen node kinds; any other Expr implementation fails with
// UNSUPPORTED_NODE_KIND.
func Node(e expr.Expr) (*queryir.Node, error) {
	switch n := e.(type) {
	case nil:
		return nil, qerr.NewMalformedNode("", "nil expression")
	case *expr.Binary:
		return node(queryir.KindBinary, n.Type(), string(n.Op), n.Left, n.Right)
	case *expr.Unary:
		return node(queryir.KindUnary, n.Type(), string(n.Op), n.Operand)
	case *expr.Call:
		children := make([]expr.Expr, 0, len(n.Args)+1)
		children = append(children, n.Receiver)
		children = append(children, n.Args...)
		return node(queryir.KindCall, n.Type(), n.Op.Op.Name, children...)
	case *expr.Conditional:
		return node(queryir.KindConditional, n.Type(), "", n.Test, n.IfTrue, n.IfFalse)
	case *expr.Constant:
		lit, err := literal(n)
		if err != nil {
			return nil, err
		}
		return &queryir.Node{
			Kind:             queryir.KindConstant,
			DeclaredTypeName: n.Type().Name(),
			LiteralValue:     lit,
		}, nil
	case *expr.Invoke:
		return node(queryir.KindInvoke, n.Type(), "", append([]expr.Expr{n.Func}, n.Args...)...)
	case *expr.Lambda:
		children := make([]expr.Expr, 0, len(n.Params)+1)
		for _, p := range n.Params {
			children = append(children, p)
		}
		children = append(children, n.Body)
		return node(queryir.KindLambda, n.Type(), "", children...)
	case *expr.Parameter:
		return &queryir.Node{
			Kind:             queryir.KindParameter,
			DeclaredTypeName: n.Type().Name(),
			OperationName:    n.Name,
		}, nil
	case *expr.MemberAccess:
		return node(queryir.KindMemberAccess, n.Type(), n.Member, n.Object)
	case *expr.New:
		return newNode(n)
	case *expr.MemberInit:
		return memberInit(n)
	case *expr.ListInit:
		return listInit(n)
	case *expr.NewArray:
		return node(queryir.KindNewArray, n.Type(), string(n.Op), n.Exprs...)
	case *expr.TypeIs:
		return node(queryir.KindTypeIs, n.Type(), n.Target.Name(), n.Operand)
	}
	return nil, qerr.NewUnsupportedNodeKind(e.Kind().String(), fmt.Sprintf("cannot capture %T", e))
}

// node builds a node of kind k whose children are the converted exprs.
// A nil expr becomes a nil child; only a call receiver is ever nil.
func node(k queryir.Kind, t *types.Type, op string, exprs ...expr.Expr) (*queryir.Node, error) {
	children, err := convert(exprs)
	if err != nil {
		return nil, err
	}
	return &queryir.Node{
		Kind:             k,
		DeclaredTypeName: t.Name(),
		OperationName:    op,
		Children:         children,
	}, nil
}

func convert(exprs []expr.Expr) ([]*queryir.Node, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]*queryir.Node, len(exprs))
	for i, e := range exprs {
		if e == nil {
			continue
		}
		c, err := Node(e)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// newNode emits [members, args...]. The member list is a new node named
// queryir.MembersName whose leaves name the assigned fields.
func newNode(n *expr.New) (*queryir.Node, error) {
	members := &queryir.Node{Kind: queryir.KindNew, OperationName: queryir.MembersName}
	for _, f := range n.Members {
		members.Children = append(members.Children, &queryir.Node{
			Kind:             queryir.KindMemberInit,
			DeclaredTypeName: f.Type.Name(),
			OperationName:    f.Name,
		})
	}
	args, err := convert(n.Args)
	if err != nil {
		return nil, err
	}
	return &queryir.Node{
		Kind:             queryir.KindNew,
		DeclaredTypeName: n.Type().Name(),
		Children:         append([]*queryir.Node{members}, args...),
	}, nil
}

// memberInit emits [new, bindings...]; each binding is a member_init leaf
// named by its field with the assigned value as its only child.
func memberInit(n *expr.MemberInit) (*queryir.Node, error) {
	ctor, err := newNode(n.New)
	if err != nil {
		return nil, err
	}
	out := &queryir.Node{
		Kind:             queryir.KindMemberInit,
		DeclaredTypeName: n.Type().Name(),
		Children:         []*queryir.Node{ctor},
	}
	for _, b := range n.Bindings {
		v, err := Node(b.Value)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, &queryir.Node{
			Kind:             queryir.KindMemberInit,
			DeclaredTypeName: b.Field.Type.Name(),
			OperationName:    b.Field.Name,
			Children:         []*queryir.Node{v},
		})
	}
	return out, nil
}

// listInit emits [new, inits...]; each element init is a receiver-less
// call named by the add method.
func listInit(n *expr.ListInit) (*queryir.Node, error) {
	ctor, err := newNode(n.New)
	if err != nil {
		return nil, err
	}
	out := &queryir.Node{
		Kind:             queryir.KindListInit,
		DeclaredTypeName: n.Type().Name(),
		Children:         []*queryir.Node{ctor},
	}
	for _, ei := range n.Inits {
		args, err := convert(ei.Args)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, &queryir.Node{
			Kind:             queryir.KindCall,
			DeclaredTypeName: n.Type().Name(),
			OperationName:    ei.Method,
			Children:         append([]*queryir.Node{nil}, args...),
		})
	}
	return out, nil
}

// literal converts a constant to a portable scalar. Sequences, records and
// functions have no literal form.
func literal(c *expr.Constant) (ir.IRValue, error) {
	if c.Value == nil {
		return ir.IRNull{}, nil
	}
	switch reflect.ValueOf(c.Value).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
	default:
		return nil, qerr.NewUnsupportedLiteral(c.Type().Name(), fmt.Errorf("%T is not a scalar", c.Value))
	}
	v, err := ir.FromGo(c.Value)
	if err != nil {
		return nil, qerr.NewUnsupportedLiteral(c.Type().Name(), err)
	}
	return v, nil
}
