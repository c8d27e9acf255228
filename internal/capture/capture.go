// Package capture converts live expression trees into portable requests.
//
// A pipeline is read from the outside in: each recognized stage names its
// source as the first argument, and the walk follows that chain until it
// reaches the root constant standing for the backing sequence. Stages must
// appear in the order the endpoint applies them (filter, sort, skip, take)
// and at most once each, except that a filter may follow the sort.
// Anything else is rejected rather than silently reordered.
package capture

import (
	"fmt"
	"reflect"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
)

// stage ranks pipeline operations in application order.
type stage int

const (
	stageFilter stage = iota
	stageSort
	stageSkip
	stageTake
	stageNone
)

var stages = map[string]stage{
	"Where":             stageFilter,
	"OrderBy":           stageSort,
	"OrderByDescending": stageSort,
	"Skip":              stageSkip,
	"Take":              stageTake,
}

// SortFilterPage captures a record pipeline. It returns the request and
// the root constant the pipeline was built on.
func SortFilterPage(e expr.Expr) (*queryir.FilterSortPageRequest, *expr.Constant, error) {
	req := &queryir.FilterSortPageRequest{}
	root, err := walk(e, stageNone, func(name string, c *expr.Call) error {
		return applyStage(req, name, c)
	})
	if err != nil {
		return nil, nil, err
	}
	return req, root, nil
}

// Count captures a count pipeline: a terminal Count, with or without a
// predicate, over an optional Where.
func Count(e expr.Expr) (*queryir.CountRequest, *expr.Constant, error) {
	c, ok := e.(*expr.Call)
	if !ok || c == nil || !isStage(c, "Count") {
		return nil, nil, qerr.NewUnsupportedPipeline(opName(e), "count request must end in Count")
	}

	req := &queryir.CountRequest{}
	if len(c.Args) == 2 {
		filter, err := predicate(c)
		if err != nil {
			return nil, nil, err
		}
		req.Filter = filter
	}

	root, err := walk(c.Args[0], stageNone, func(name string, inner *expr.Call) error {
		if name != "Where" {
			return qerr.NewUnsupportedPipeline(name, "count requests only take a filter")
		}
		if req.Filter != nil {
			return qerr.NewUnsupportedPipeline(name, "more than one filter")
		}
		filter, err := predicate(inner)
		if err != nil {
			return err
		}
		req.Filter = filter
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, root, nil
}

// walk follows the source chain from e to the root constant. Every stage
// must rank strictly below the stage that consumed it; limit is the rank
// of the consumer. A filter may consume a sort directly: filtering a
// stably sorted sequence gives the same result as sorting the filtered
// one.
func walk(e expr.Expr, limit stage, visit func(name string, c *expr.Call) error) (*expr.Constant, error) {
	seen := make(map[stage]bool)
	for {
		switch n := e.(type) {
		case *expr.Constant:
			return n, nil
		case *expr.Call:
			name := n.Op.Op.Name
			rank, known := stages[name]
			if !known || n.Op.Op.Owner != catalog.OwnerQueryable {
				return nil, qerr.NewUnsupportedPipeline(name, "not a filter, sort, skip or take stage")
			}
			if seen[rank] {
				return nil, qerr.NewUnsupportedPipeline(name, "more than one "+rank.String()+" stage")
			}
			seen[rank] = true
			if rank > limit && !(limit == stageFilter && rank == stageSort) {
				return nil, qerr.NewUnsupportedPipeline(name, fmt.Sprintf("%s stage applied before %s stage", rank, limit))
			}
			if err := visit(name, n); err != nil {
				return nil, err
			}
			limit = rank
			e = n.Args[0]
		default:
			return nil, qerr.NewUnsupportedPipeline(opName(e), "pipeline source is not a constant")
		}
	}
}

func applyStage(req *queryir.FilterSortPageRequest, name string, c *expr.Call) error {
	switch name {
	case "Where":
		filter, err := predicate(c)
		if err != nil {
			return err
		}
		req.Filter = filter
	case "OrderBy", "OrderByDescending":
		key, err := predicate(c)
		if err != nil {
			return err
		}
		dir := queryir.Ascending
		if name == "OrderByDescending" {
			dir = queryir.Descending
		}
		req.Sort = &queryir.SortClause{Direction: dir, KeySelector: key}
	case "Skip":
		n, err := count(c)
		if err != nil {
			return err
		}
		req.Skip = &n
	case "Take":
		n, err := count(c)
		if err != nil {
			return err
		}
		req.Take = &n
	}
	return nil
}

func (s stage) String() string {
	switch s {
	case stageFilter:
		return "filter"
	case stageSort:
		return "sort"
	case stageSkip:
		return "skip"
	case stageTake:
		return "take"
	}
	return "terminal"
}

func isStage(c *expr.Call, name string) bool {
	return c.Op.Op.Name == name && c.Op.Op.Owner == catalog.OwnerQueryable
}

// predicate captures the lambda argument of a filter or sort stage. The
// quote wrapping the lambda is dropped; rebuild restores it.
func predicate(c *expr.Call) (*queryir.Node, error) {
	arg := c.Args[1]
	if u, ok := arg.(*expr.Unary); ok && u.Op == expr.Quote {
		arg = u.Operand
	}
	if _, ok := arg.(*expr.Lambda); !ok {
		return nil, qerr.NewUnsupportedPipeline(c.Op.Op.Name, "argument is not a lambda")
	}
	return Node(arg)
}

// count reads the constant int argument of Skip or Take.
func count(c *expr.Call) (int, error) {
	k, ok := c.Args[1].(*expr.Constant)
	if !ok {
		return 0, qerr.NewUnsupportedPipeline(c.Op.Op.Name, "count is not a constant")
	}
	n, ok := k.Value.(int)
	if !ok {
		return 0, qerr.NewUnsupportedPipeline(c.Op.Op.Name, fmt.Sprintf("count is %T, want int", k.Value))
	}
	return n, nil
}

func opName(e expr.Expr) string {
	if c, ok := e.(*expr.Call); ok {
		return c.Op.Op.Name
	}
	if e == nil {
		return ""
	}
	if rv := reflect.ValueOf(e); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ""
	}
	return e.Kind().String()
}
