package endpoint

import (
	"context"

	"github.com/roach88/remoteq/internal/capture"
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/query"
)

// Client is the caller side of a QueryEndpoint. It implements
// query.Provider: composed pipelines are captured into envelopes and
// executed remotely.
type Client[T any] struct {
	ep QueryEndpoint[T]
}

var _ query.Provider[struct{}] = (*Client[struct{}])(nil)

// NewClient wraps ep.
func NewClient[T any](ep QueryEndpoint[T]) *Client[T] {
	return &Client[T]{ep: ep}
}

// Query starts a pipeline whose root is the endpoint's sequence.
func (c *Client[T]) Query(env query.Env) query.Queryable[T] {
	return query.New[T](c, env, nil)
}

// Execute captures e and runs it as a filter/sort/page request.
func (c *Client[T]) Execute(ctx context.Context, e expr.Expr) ([]T, error) {
	req, _, err := capture.SortFilterPage(e)
	if err != nil {
		return nil, err
	}
	return c.ep.ExecuteSortFilterPage(ctx, req)
}

// Count captures e and runs it as a count request.
func (c *Client[T]) Count(ctx context.Context, e expr.Expr) (int, error) {
	req, _, err := capture.Count(e)
	if err != nil {
		return 0, err
	}
	return c.ep.ExecuteCount(ctx, req)
}
