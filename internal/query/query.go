// Package query composes record pipelines as expression trees.
//
// A Queryable is an immutable value: every stage method returns a new
// Queryable whose expression calls the stage on the previous one. Nothing
// runs until ToSlice or Count hands the expression to a Provider, which
// either evaluates it in process (Local) or ships it to an endpoint.
//
//	q := query.New(provider, env, nil).
//		Where(func(b *expr.Builder, x expr.Expr) expr.Expr {
//			return b.Call("Contains", b.Field(x, "Xs"), b.Const(19))
//		}).
//		Take(10)
//	records, err := q.ToSlice(ctx)
package query

import (
	"context"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/types"
)

// Provider executes a composed pipeline.
type Provider[T any] interface {
	// Execute runs a record pipeline and returns its records in order.
	Execute(ctx context.Context, e expr.Expr) ([]T, error)

	// Count runs a pipeline ending in Count.
	Count(ctx context.Context, e expr.Expr) (int, error)
}

// Lambda builds the body of a one-parameter lambda from its parameter.
type Lambda func(b *expr.Builder, x expr.Expr) expr.Expr

// ParamName is the name given to the parameter of every stage lambda.
const ParamName = "x"

// Env holds what stage resolution needs: the registry and catalog the
// stages resolve against, and the record type.
type Env struct {
	Registry *types.Registry
	Catalog  *catalog.Catalog
	Elem     *types.Type
}

type source[T any] struct {
	provider Provider[T]
	env      Env
}

// Queryable is a pipeline over records of type T.
type Queryable[T any] struct {
	src  *source[T]
	expr expr.Expr
	err  error
}

// New starts a pipeline. data becomes the root constant; remote providers
// pass nil since the endpoint supplies its own sequence.
func New[T any](p Provider[T], env Env, data []T) Queryable[T] {
	src := &source[T]{provider: p, env: env}
	var value any
	if data != nil {
		value = data
	}
	root, err := expr.NewConstant(value, types.Queryable(env.Elem))
	return Queryable[T]{src: src, expr: root, err: err}
}

// Expr returns the composed expression, or the first error any stage hit.
func (q Queryable[T]) Expr() (expr.Expr, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.expr, nil
}

// Where keeps the records the predicate accepts.
func (q Queryable[T]) Where(pred Lambda) Queryable[T] {
	return q.withLambda("Where", pred)
}

// OrderBy sorts ascending by the key. The sort is stable.
func (q Queryable[T]) OrderBy(key Lambda) Queryable[T] {
	return q.withLambda("OrderBy", key)
}

// OrderByDescending sorts descending by the key. The sort is stable.
func (q Queryable[T]) OrderByDescending(key Lambda) Queryable[T] {
	return q.withLambda("OrderByDescending", key)
}

// Skip drops the first n records.
func (q Queryable[T]) Skip(n int) Queryable[T] {
	return q.withCount("Skip", n)
}

// Take keeps at most n records.
func (q Queryable[T]) Take(n int) Queryable[T] {
	return q.withCount("Take", n)
}

// ToSlice executes the pipeline.
func (q Queryable[T]) ToSlice(ctx context.Context) ([]T, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.src.provider.Execute(ctx, q.expr)
}

// Count executes the pipeline followed by a terminal Count.
func (q Queryable[T]) Count(ctx context.Context) (int, error) {
	b := q.builder()
	e := b.Stage("Count", q.expr)
	return q.count(ctx, b, e)
}

// CountWhere counts the records the predicate accepts.
func (q Queryable[T]) CountWhere(ctx context.Context, pred Lambda) (int, error) {
	b := q.builder()
	e := b.Stage("Count", q.expr, q.lambda(b, pred))
	return q.count(ctx, b, e)
}

func (q Queryable[T]) count(ctx context.Context, b *expr.Builder, e expr.Expr) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	if err := b.Err(); err != nil {
		return 0, err
	}
	return q.src.provider.Count(ctx, e)
}

func (q Queryable[T]) builder() *expr.Builder {
	return expr.NewBuilder(q.src.env.Registry, q.src.env.Catalog)
}

// lambda builds x => fn(x) over the element type, quoted.
func (q Queryable[T]) lambda(b *expr.Builder, fn Lambda) expr.Expr {
	x := b.Param(q.src.env.Elem, ParamName)
	return b.Quote(b.Lambda(fn(b, x), x))
}

func (q Queryable[T]) withLambda(stage string, fn Lambda) Queryable[T] {
	if q.err != nil {
		return q
	}
	b := q.builder()
	e := b.Stage(stage, q.expr, q.lambda(b, fn))
	return q.with(e, b.Err())
}

func (q Queryable[T]) withCount(stage string, n int) Queryable[T] {
	if q.err != nil {
		return q
	}
	b := q.builder()
	e := b.Stage(stage, q.expr, b.Const(n))
	return q.with(e, b.Err())
}

func (q Queryable[T]) with(e expr.Expr, err error) Queryable[T] {
	if err != nil {
		return Queryable[T]{src: q.src, err: err}
	}
	return Queryable[T]{src: q.src, expr: e}
}
