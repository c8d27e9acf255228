// Package endpoint executes portable requests against a backing sequence.
//
// An Executor owns a []T and the element type describing it. For every
// request it validates the envelope, rebuilds an expression rooted at the
// backing sequence, evaluates it, and optionally appends the outcome to a
// request journal. Client is the caller side: it captures a composed
// pipeline and hands the envelope to any QueryEndpoint, in process or over
// HTTP.
package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/remoteq/internal/eval"
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/rebuild"
	"github.com/roach88/remoteq/internal/store"
	"github.com/roach88/remoteq/internal/types"
)

// QueryEndpoint executes filter/sort/page and count requests.
type QueryEndpoint[T any] interface {
	ExecuteCount(ctx context.Context, req *queryir.CountRequest) (int, error)
	ExecuteSortFilterPage(ctx context.Context, req *queryir.FilterSortPageRequest) ([]T, error)
}

// Journal records executed requests. *store.Store implements it.
type Journal interface {
	WriteRequest(ctx context.Context, rec store.Record) error
}

// Limits bound what a single request may ask for. Zero means unlimited.
type Limits struct {
	MaxDepth int
	MaxNodes int
	MaxTake  int
}

func (l Limits) tree() queryir.Limits {
	return queryir.Limits{MaxDepth: l.MaxDepth, MaxNodes: l.MaxNodes}
}

type settings struct {
	limits  Limits
	journal Journal
	ids     IDGenerator
	clock   Clock
	log     *slog.Logger
}

// Option configures an Executor.
type Option func(*settings)

// WithLimits sets request limits.
func WithLimits(l Limits) Option {
	return func(s *settings) { s.limits = l }
}

// WithJournal records every request, successful or not.
func WithJournal(j Journal) Option {
	return func(s *settings) { s.journal = j }
}

// WithIDGenerator overrides UUIDv7 request IDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *settings) { s.ids = g }
}

// WithClock overrides the wall clock used for journal timestamps.
func WithClock(c Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// Executor is the server side of the query endpoint.
// It is safe for concurrent use; the backing slice must not be mutated
// while requests run.
type Executor[T any] struct {
	rb   *rebuild.Rebuilder
	elem *types.Type
	root *expr.Constant
	settings
}

var _ QueryEndpoint[struct{}] = (*Executor[struct{}])(nil)

// NewExecutor creates an executor over data, whose elements are described
// by elem.
func NewExecutor[T any](rb *rebuild.Rebuilder, elem *types.Type, data []T, opts ...Option) (*Executor[T], error) {
	if rb == nil || elem == nil {
		return nil, fmt.Errorf("new executor: rebuilder and element type are required")
	}
	if data == nil {
		data = []T{}
	}
	root, err := expr.NewConstant(data, types.Queryable(elem))
	if err != nil {
		return nil, fmt.Errorf("new executor: %w", err)
	}

	s := settings{
		ids:   UUIDGenerator{},
		clock: SystemClock{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Executor[T]{rb: rb, elem: elem, root: root, settings: s}, nil
}

// Elem returns the element type of the backing sequence.
func (x *Executor[T]) Elem() *types.Type { return x.elem }

// Limits returns the configured limits.
func (x *Executor[T]) Limits() Limits { return x.limits }

// ExecuteSortFilterPage rebuilds and runs a filter/sort/page request.
func (x *Executor[T]) ExecuteSortFilterPage(ctx context.Context, req *queryir.FilterSortPageRequest) ([]T, error) {
	id, start := x.ids.Generate(), x.clock.Now()

	out, err := x.sortFilterPage(ctx, req)

	var result ir.IRValue
	if err == nil {
		result, err = RecordsToIR(x.elem, out)
	}
	if jerr := x.record(ctx, id, queryir.RequestKindQuery, envelope(req), start, len(out), result, err); jerr != nil {
		return nil, jerr
	}
	x.logOutcome(id, queryir.RequestKindQuery, start, len(out), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (x *Executor[T]) sortFilterPage(ctx context.Context, req *queryir.FilterSortPageRequest) ([]T, error) {
	if err := queryir.ValidateFilterSortPage(req, x.limits.tree()); err != nil {
		return nil, err
	}
	if x.limits.MaxTake > 0 && req.Take != nil && *req.Take > x.limits.MaxTake {
		return nil, qerr.NewLimitExceeded("max_take", *req.Take, x.limits.MaxTake)
	}
	e, err := x.rb.SortFilterPage(req, x.root)
	if err != nil {
		return nil, err
	}
	return eval.Slice[T](ctx, e)
}

// ExecuteCount rebuilds and runs a count request.
func (x *Executor[T]) ExecuteCount(ctx context.Context, req *queryir.CountRequest) (int, error) {
	id, start := x.ids.Generate(), x.clock.Now()

	n, err := x.count(ctx, req)

	var result ir.IRValue
	if err == nil {
		result = ir.IRInt(n)
	}
	if jerr := x.record(ctx, id, queryir.RequestKindCount, envelope(req), start, n, result, err); jerr != nil {
		return 0, jerr
	}
	x.logOutcome(id, queryir.RequestKindCount, start, n, err)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (x *Executor[T]) count(ctx context.Context, req *queryir.CountRequest) (int, error) {
	if err := queryir.ValidateCount(req, x.limits.tree()); err != nil {
		return 0, err
	}
	e, err := x.rb.Count(req, x.root)
	if err != nil {
		return 0, err
	}
	return eval.Count(ctx, e)
}

// envelope renders a possibly nil request for the journal.
func envelope(req interface{ ToIR() ir.IRObject }) ir.IRObject {
	switch r := req.(type) {
	case *queryir.FilterSortPageRequest:
		if r == nil {
			return ir.IRObject{}
		}
	case *queryir.CountRequest:
		if r == nil {
			return ir.IRObject{}
		}
	}
	return req.ToIR()
}

func (x *Executor[T]) record(ctx context.Context, id, kind string, env ir.IRObject, at time.Time, n int, result ir.IRValue, failure error) error {
	if x.journal == nil {
		return nil
	}
	rec, err := store.NewRecord(id, kind, env, at)
	if err != nil {
		return fmt.Errorf("journal %s: %w", id, err)
	}
	if failure != nil {
		rec.Outcome = store.OutcomeError
		rec.ErrorCode = string(qerr.CodeOf(failure))
		rec.ErrorMessage = failure.Error()
	} else {
		rec.Outcome = store.OutcomeOK
		rec.ResultCount = n
		if rec.ResultHash, err = ir.ResultHash(result); err != nil {
			return fmt.Errorf("journal %s: %w", id, err)
		}
	}
	if err := x.journal.WriteRequest(ctx, rec); err != nil {
		return fmt.Errorf("journal %s: %w", id, err)
	}
	return nil
}

func (x *Executor[T]) logOutcome(id, kind string, start time.Time, n int, err error) {
	if err != nil {
		x.log.Info("request failed",
			"id", id,
			"kind", kind,
			"code", qerr.CodeOf(err),
			"error", err,
		)
		return
	}
	x.log.Debug("request executed",
		"id", id,
		"kind", kind,
		"results", n,
		"elapsed", x.clock.Now().Sub(start),
	)
}
