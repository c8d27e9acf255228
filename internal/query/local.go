package query

import (
	"context"

	"github.com/roach88/remoteq/internal/eval"
	"github.com/roach88/remoteq/internal/expr"
)

// Local evaluates pipelines in process against the root constant's data.
type Local[T any] struct{}

// Execute evaluates e.
func (Local[T]) Execute(ctx context.Context, e expr.Expr) ([]T, error) {
	return eval.Slice[T](ctx, e)
}

// Count evaluates e, which must produce a count.
func (Local[T]) Count(ctx context.Context, e expr.Expr) (int, error) {
	return eval.Count(ctx, e)
}

// From starts a pipeline over data evaluated in process.
func From[T any](env Env, data []T) Queryable[T] {
	return New[T](Local[T]{}, env, data)
}
