// Package rebuild reconstructs executable expressions from portable
// requests.
//
// Rebuilding is the inverse of capture. Every declared type name goes
// through the type registry, every operation through the unification
// engine, and every parameter through a scope chain threaded down the
// tree, so that all references to one lambda parameter end up as one
// identity. The rebuilt expression's type must equal the declared type of
// its node; a difference means the two sides disagree about the schema.
//
// A Rebuilder holds no per-request state and is safe for concurrent use.
package rebuild

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/scope"
	"github.com/roach88/remoteq/internal/types"
	"github.com/roach88/remoteq/internal/unify"
)

// Rebuilder turns requests into expressions over a registry and catalog.
type Rebuilder struct {
	reg    *types.Registry
	cat    *catalog.Catalog
	strict bool
	log    *slog.Logger
}

// Option configures a Rebuilder.
type Option func(*Rebuilder)

// WithStrict makes every resolution site demand a single candidate.
//
// By default pipeline stages and receiver-less calls take the first
// candidate in catalog order, while member calls and properties must be
// unambiguous.
func WithStrict(strict bool) Option {
	return func(r *Rebuilder) {
		r.strict = strict
	}
}

// WithLogger sets the logger for debug output. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Rebuilder) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Rebuilder. The registry and catalog must not change while
// it is in use.
func New(reg *types.Registry, cat *catalog.Catalog, opts ...Option) *Rebuilder {
	r := &Rebuilder{reg: reg, cat: cat, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Strict reports whether every site uses unify.SingleMatch.
func (r *Rebuilder) Strict() bool { return r.strict }

func (r *Rebuilder) policy(p unify.Policy) unify.Policy {
	if r.strict {
		return unify.SingleMatch
	}
	return p
}

// SortFilterPage applies the request's stages to root in the fixed order
// Where, OrderBy or OrderByDescending, Skip, Take.
func (r *Rebuilder) SortFilterPage(req *queryir.FilterSortPageRequest, root expr.Expr) (expr.Expr, error) {
	if req == nil {
		return nil, qerr.NewMalformedNode("", "missing request")
	}
	cur := root
	var err error

	if req.Filter != nil {
		if cur, err = r.lambdaStage("Where", cur, req.Filter); err != nil {
			return nil, err
		}
	}
	if req.Sort != nil {
		name := "OrderBy"
		switch req.Sort.Direction {
		case queryir.Ascending:
		case queryir.Descending:
			name = "OrderByDescending"
		default:
			return nil, qerr.NewMalformedNode("", "unknown sort direction %q", req.Sort.Direction)
		}
		if cur, err = r.lambdaStage(name, cur, req.Sort.KeySelector); err != nil {
			return nil, err
		}
	}
	if req.Skip != nil {
		if cur, err = r.countStage("Skip", cur, *req.Skip); err != nil {
			return nil, err
		}
	}
	if req.Take != nil {
		if cur, err = r.countStage("Take", cur, *req.Take); err != nil {
			return nil, err
		}
	}

	r.log.Debug("rebuilt query",
		"filter", req.Filter != nil,
		"sort", req.Sort != nil,
		"skip", req.Skip != nil,
		"take", req.Take != nil,
	)
	return cur, nil
}

// Count applies the optional filter to root and ends in Count.
func (r *Rebuilder) Count(req *queryir.CountRequest, root expr.Expr) (expr.Expr, error) {
	if req == nil {
		return nil, qerr.NewMalformedNode("", "missing request")
	}
	cur := root
	if req.Filter != nil {
		var err error
		if cur, err = r.lambdaStage("Where", cur, req.Filter); err != nil {
			return nil, err
		}
	}
	out, err := r.stage("Count", cur)
	if err != nil {
		return nil, err
	}
	r.log.Debug("rebuilt count", "filter", req.Filter != nil)
	return out, nil
}

// lambdaStage rebuilds a stage lambda, quotes it and applies the stage.
func (r *Rebuilder) lambdaStage(name string, src expr.Expr, n *queryir.Node) (expr.Expr, error) {
	if n == nil || n.Kind != queryir.KindLambda {
		return nil, qerr.NewUnsupportedPipeline(name, "stage argument is not a lambda")
	}
	l, err := r.Expr(n)
	if err != nil {
		return nil, err
	}
	quoted, err := expr.MakeUnary(expr.Quote, l, nil)
	if err != nil {
		return nil, err
	}
	return r.stage(name, src, quoted)
}

func (r *Rebuilder) countStage(name string, src expr.Expr, n int) (expr.Expr, error) {
	c, err := expr.NewConstant(n, types.Int)
	if err != nil {
		return nil, err
	}
	return r.stage(name, src, c)
}

// stage resolves a pipeline operation in the Queryable owner.
func (r *Rebuilder) stage(name string, args ...expr.Expr) (expr.Expr, error) {
	inst, err := unify.ResolveIn(r.cat, catalog.OwnerQueryable, name, expr.TypesOf(args), r.policy(unify.FirstMatch))
	if err != nil {
		return nil, err
	}
	return expr.NewCall(inst, nil, args...)
}

// Expr rebuilds one tree. Parameters referenced outside every lambda are
// rejected as unbound.
func (r *Rebuilder) Expr(n *queryir.Node) (expr.Expr, error) {
	root := scope.New()
	e, err := r.build(n, root)
	if err != nil {
		return nil, err
	}
	if err := root.Close(nil); err != nil {
		return nil, err
	}
	return e, nil
}

// build dispatches on the node kind and checks the result against the
// declared type.
func (r *Rebuilder) build(n *queryir.Node, sc *scope.Scope) (expr.Expr, error) {
	if n == nil {
		return nil, qerr.NewMalformedNode("", "missing node")
	}
	if !n.Kind.Valid() {
		return nil, qerr.NewUnsupportedNodeKind(string(n.Kind), "not part of the node grammar")
	}

	declared, err := r.resolveType(n.DeclaredTypeName)
	if err != nil {
		return nil, annotate(err, n)
	}

	e, err := r.dispatch(n, declared, sc)
	if err != nil {
		return nil, annotate(err, n)
	}

	if !types.Identical(e.Type(), declared) {
		return nil, qerr.NewTypeMismatch("rebuilt %s, declared %s", e.Type(), declared).
			WithNode(string(n.Kind))
	}
	return e, nil
}

func (r *Rebuilder) resolveType(name string) (*types.Type, error) {
	if name == "" {
		return nil, qerr.NewTypeResolutionFailed(name, fmt.Errorf("missing declared_type_name"))
	}
	return r.reg.Resolve(name)
}

func (r *Rebuilder) dispatch(n *queryir.Node, t *types.Type, sc *scope.Scope) (expr.Expr, error) {
	switch n.Kind {
	case queryir.KindConstant:
		return r.constant(n, t)
	case queryir.KindParameter:
		if n.OperationName == "" {
			return nil, qerr.NewMalformedNode(string(n.Kind), "missing parameter name")
		}
		return sc.ResolveOrDeclare(t, n.OperationName)
	case queryir.KindLambda:
		return r.lambda(n, sc)
	case queryir.KindBinary:
		return r.binary(n, sc)
	case queryir.KindUnary:
		return r.unary(n, t, sc)
	case queryir.KindConditional:
		kids, err := r.children(n, sc, 3)
		if err != nil {
			return nil, err
		}
		return expr.NewConditional(kids[0], kids[1], kids[2])
	case queryir.KindInvoke:
		kids, err := r.children(n, sc, -1)
		if err != nil {
			return nil, err
		}
		if len(kids) == 0 {
			return nil, qerr.NewMalformedNode(string(n.Kind), "missing function")
		}
		return expr.NewInvoke(kids[0], kids[1:]...)
	case queryir.KindMemberAccess:
		kids, err := r.children(n, sc, 1)
		if err != nil {
			return nil, err
		}
		return expr.Member(r.cat, kids[0], n.OperationName, r.policy(unify.SingleMatch))
	case queryir.KindCall:
		return r.call(n, sc)
	case queryir.KindTypeIs:
		kids, err := r.children(n, sc, 1)
		if err != nil {
			return nil, err
		}
		target, err := r.reg.Resolve(n.OperationName)
		if err != nil {
			return nil, err
		}
		return expr.NewTypeIs(kids[0], target)
	case queryir.KindNewArray:
		return r.newArray(n, t, sc)
	case queryir.KindNew, queryir.KindMemberInit, queryir.KindListInit:
		return nil, qerr.NewUnsupportedNodeKind(string(n.Kind), "rebuilding object construction is not supported")
	}
	return nil, qerr.NewUnsupportedNodeKind(string(n.Kind), "not part of the node grammar")
}

// children rebuilds every child of n. want is the required count, or -1
// for any. Nil children are rejected.
func (r *Rebuilder) children(n *queryir.Node, sc *scope.Scope, want int) ([]expr.Expr, error) {
	if want >= 0 && len(n.Children) != want {
		return nil, qerr.NewMalformedNode(string(n.Kind), "want %d children, got %d", want, len(n.Children))
	}
	return r.list(n, n.Children, sc)
}

func (r *Rebuilder) list(n *queryir.Node, nodes []*queryir.Node, sc *scope.Scope) ([]expr.Expr, error) {
	out := make([]expr.Expr, len(nodes))
	for i, c := range nodes {
		if c == nil {
			return nil, qerr.NewMalformedNode(string(n.Kind), "nil child at position %d", i)
		}
		e, err := r.build(c, sc)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// annotate records n's kind and operation on a query error that does not
// name a node yet, so the innermost failing node is reported.
func annotate(err error, n *queryir.Node) error {
	var qe *qerr.Error
	if !errors.As(err, &qe) {
		return err
	}
	if qe.NodeKind == "" {
		qe.NodeKind = string(n.Kind)
		if qe.Operation == "" && n.Kind != queryir.KindConstant {
			qe.Operation = n.OperationName
		}
	}
	return err
}
