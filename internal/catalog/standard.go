package catalog

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/remoteq/internal/types"
)

// Owners used by the standard catalog.
const (
	OwnerQueryable  = "Queryable"
	OwnerEnumerable = "Enumerable"
	OwnerString     = "string"
	OwnerSeq        = "Seq"
)

// Standard returns the catalog every endpoint starts from: the query
// pipeline operations, sequence helpers usable inside predicates, and
// string members.
func Standard() *Catalog {
	c := New()
	addQueryable(c)
	addEnumerable(c)
	addStrings(c)
	return c
}

func addQueryable(c *Catalog) {
	T := types.NewSlot("T")
	K := types.NewSlot("K")
	src := types.Queryable(T)
	pred := types.Expr(types.Func(T, types.Bool))
	indexed := types.Expr(types.Func(T, types.Int, types.Bool))

	c.MustAdd(&Operation{
		Name: "Where", Owner: OwnerQueryable, Slots: []*types.Type{T},
		Params: []*types.Type{src, pred}, Result: src,
		Impl: where,
	})
	c.MustAdd(&Operation{
		Name: "Where", Owner: OwnerQueryable, Slots: []*types.Type{T},
		Params: []*types.Type{src, indexed}, Result: src,
		Impl: whereIndexed,
	})
	c.MustAdd(&Operation{
		Name: "OrderBy", Owner: OwnerQueryable, Slots: []*types.Type{T, K},
		Params: []*types.Type{src, types.Expr(types.Func(T, K))}, Result: src,
		Impl: orderBy(false),
	})
	c.MustAdd(&Operation{
		Name: "OrderByDescending", Owner: OwnerQueryable, Slots: []*types.Type{T, K},
		Params: []*types.Type{src, types.Expr(types.Func(T, K))}, Result: src,
		Impl: orderBy(true),
	})
	c.MustAdd(&Operation{
		Name: "Skip", Owner: OwnerQueryable, Slots: []*types.Type{T},
		Params: []*types.Type{src, types.Int}, Result: src,
		Impl: skip,
	})
	c.MustAdd(&Operation{
		Name: "Take", Owner: OwnerQueryable, Slots: []*types.Type{T},
		Params: []*types.Type{src, types.Int}, Result: src,
		Impl: take,
	})
	c.MustAdd(&Operation{
		Name: "Count", Owner: OwnerQueryable, Slots: []*types.Type{T},
		Params: []*types.Type{src}, Result: types.Int,
		Impl: count,
	})
	c.MustAdd(&Operation{
		Name: "Count", Owner: OwnerQueryable, Slots: []*types.Type{T},
		Params: []*types.Type{src, pred}, Result: types.Int,
		Impl: countWhere,
	})
}

func addEnumerable(c *Catalog) {
	T := types.NewSlot("T")
	seq := types.Seq(T)
	fn := types.Func(T, types.Bool)

	c.MustAdd(&Operation{
		Name: "Contains", Owner: OwnerEnumerable, Slots: []*types.Type{T},
		Params: []*types.Type{seq, T}, Result: types.Bool,
		Impl: contains,
	})
	c.MustAdd(&Operation{
		Name: "Any", Owner: OwnerEnumerable, Slots: []*types.Type{T},
		Params: []*types.Type{seq}, Result: types.Bool,
		Impl: anyOf,
	})
	c.MustAdd(&Operation{
		Name: "Any", Owner: OwnerEnumerable, Slots: []*types.Type{T},
		Params: []*types.Type{seq, fn}, Result: types.Bool,
		Impl: anyWhere,
	})
	c.MustAdd(&Operation{
		Name: "All", Owner: OwnerEnumerable, Slots: []*types.Type{T},
		Params: []*types.Type{seq, fn}, Result: types.Bool,
		Impl: all,
	})
	c.MustAdd(&Operation{
		Name: "Count", Owner: OwnerEnumerable, Slots: []*types.Type{T},
		Params: []*types.Type{seq}, Result: types.Int,
		Impl: count,
	})
	c.MustAdd(&Operation{
		Name: "Count", Owner: OwnerEnumerable, Slots: []*types.Type{T},
		Params: []*types.Type{seq, fn}, Result: types.Int,
		Impl: countWhere,
	})
	c.MustAdd(&Operation{
		Name: "Sum", Owner: OwnerEnumerable,
		Params: []*types.Type{types.Seq(types.Int)}, Result: types.Int,
		Impl: sumInt,
	})
	c.MustAdd(&Operation{
		Name: "Sum", Owner: OwnerEnumerable,
		Params: []*types.Type{types.Seq(types.Float64)}, Result: types.Float64,
		Impl: sumFloat,
	})
	c.MustAdd(&Operation{
		Name: "Length", Owner: OwnerSeq, Kind: Property, Slots: []*types.Type{T},
		Receiver: seq, Result: types.Int,
		Impl: func(_ *Instance, recv any, _ []any) (any, error) {
			rv, err := sliceOf(recv)
			if err != nil {
				return nil, err
			}
			return seqLen(rv), nil
		},
	})
}

func addStrings(c *Catalog) {
	unary := func(name string, f func(string) string) {
		c.MustAdd(&Operation{
			Name: name, Owner: OwnerString, Kind: Method,
			Receiver: types.String, Result: types.String,
			Impl: func(_ *Instance, recv any, _ []any) (any, error) {
				s, err := str(recv)
				if err != nil {
					return nil, err
				}
				return f(s), nil
			},
		})
	}
	// cases.Caser is stateful, so each call gets a fresh one.
	unary("ToLower", func(s string) string { return cases.Lower(language.Und).String(s) })
	unary("ToUpper", func(s string) string { return cases.Upper(language.Und).String(s) })
	unary("Trim", strings.TrimSpace)

	binary := func(name string, result *types.Type, f func(s, arg string) any) {
		c.MustAdd(&Operation{
			Name: name, Owner: OwnerString, Kind: Method,
			Receiver: types.String, Params: []*types.Type{types.String}, Result: result,
			Impl: func(_ *Instance, recv any, args []any) (any, error) {
				s, err := str(recv)
				if err != nil {
					return nil, err
				}
				arg, err := str(args[0])
				if err != nil {
					return nil, err
				}
				return f(s, arg), nil
			},
		})
	}
	binary("Contains", types.Bool, func(s, sub string) any { return strings.Contains(s, sub) })
	binary("StartsWith", types.Bool, func(s, p string) any { return strings.HasPrefix(s, p) })
	binary("EndsWith", types.Bool, func(s, p string) any { return strings.HasSuffix(s, p) })
	binary("IndexOf", types.Int, func(s, sub string) any {
		i := strings.Index(s, sub)
		if i < 0 {
			return -1
		}
		return utf8.RuneCountInString(s[:i])
	})

	c.MustAdd(&Operation{
		Name: "Length", Owner: OwnerString, Kind: Property,
		Receiver: types.String, Result: types.Int,
		Impl: func(_ *Instance, recv any, _ []any) (any, error) {
			s, err := str(recv)
			if err != nil {
				return nil, err
			}
			return utf8.RuneCountInString(s), nil
		},
	})
}

func str(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("want string, got %T", v)
	}
	return s, nil
}

func where(_ *Instance, _ any, args []any) (any, error) {
	return filter(args[0], func(elem any, _ int) (bool, error) {
		return predicate(args[1], elem)
	})
}

func whereIndexed(_ *Instance, _ any, args []any) (any, error) {
	return filter(args[0], func(elem any, i int) (bool, error) {
		return predicate(args[1], elem, i)
	})
}

func filter(seq any, keep func(elem any, i int) (bool, error)) (any, error) {
	rv, err := sliceOf(seq)
	if err != nil {
		return nil, err
	}
	if !rv.IsValid() {
		return seq, nil
	}
	out := reflect.MakeSlice(reflect.SliceOf(rv.Type().Elem()), 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		ok, err := keep(elem.Interface(), i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = reflect.Append(out, elem)
		}
	}
	return out.Interface(), nil
}

// orderBy sorts stably by keys computed once per element.
func orderBy(descending bool) Impl {
	return func(_ *Instance, _ any, args []any) (any, error) {
		rv, err := sliceOf(args[0])
		if err != nil {
			return nil, err
		}
		if !rv.IsValid() {
			return args[0], nil
		}
		type keyed struct {
			key  any
			elem reflect.Value
		}
		items := make([]keyed, rv.Len())
		for i := range items {
			elem := rv.Index(i)
			key, err := call(args[1], elem.Interface())
			if err != nil {
				return nil, err
			}
			items[i] = keyed{key: key, elem: elem}
		}

		var cmpErr error
		slices.SortStableFunc(items, func(a, b keyed) int {
			c, err := Compare(a.key, b.key)
			if err != nil && cmpErr == nil {
				cmpErr = err
			}
			if descending {
				return -c
			}
			return c
		})
		if cmpErr != nil {
			return nil, cmpErr
		}

		out := reflect.MakeSlice(reflect.SliceOf(rv.Type().Elem()), len(items), len(items))
		for i, it := range items {
			out.Index(i).Set(it.elem)
		}
		return out.Interface(), nil
	}
}

func skip(_ *Instance, _ any, args []any) (any, error) {
	return window(args[0], args[1], true)
}

func take(_ *Instance, _ any, args []any) (any, error) {
	return window(args[0], args[1], false)
}

// window implements Skip and Take. Negative counts behave like zero.
func window(seq, n any, skipping bool) (any, error) {
	rv, err := sliceOf(seq)
	if err != nil {
		return nil, err
	}
	count, ok := n.(int)
	if !ok {
		return nil, fmt.Errorf("want int count, got %T", n)
	}
	if !rv.IsValid() {
		return seq, nil
	}
	count = max(0, min(count, rv.Len()))
	var part reflect.Value
	if skipping {
		part = rv.Slice(count, rv.Len())
	} else {
		part = rv.Slice(0, count)
	}
	out := reflect.MakeSlice(reflect.SliceOf(rv.Type().Elem()), part.Len(), part.Len())
	reflect.Copy(out, part)
	return out.Interface(), nil
}

func count(_ *Instance, _ any, args []any) (any, error) {
	rv, err := sliceOf(args[0])
	if err != nil {
		return nil, err
	}
	return seqLen(rv), nil
}

func countWhere(_ *Instance, _ any, args []any) (any, error) {
	n := 0
	err := each(args[0], func(elem any) (bool, error) {
		ok, err := predicate(args[1], elem)
		if ok {
			n++
		}
		return true, err
	})
	return n, err
}

func contains(_ *Instance, _ any, args []any) (any, error) {
	found := false
	err := each(args[0], func(elem any) (bool, error) {
		found = Equal(elem, args[1])
		return !found, nil
	})
	return found, err
}

func anyOf(_ *Instance, _ any, args []any) (any, error) {
	rv, err := sliceOf(args[0])
	if err != nil {
		return nil, err
	}
	return seqLen(rv) > 0, nil
}

func anyWhere(_ *Instance, _ any, args []any) (any, error) {
	found := false
	err := each(args[0], func(elem any) (bool, error) {
		ok, err := predicate(args[1], elem)
		found = ok
		return !ok, err
	})
	return found, err
}

func all(_ *Instance, _ any, args []any) (any, error) {
	result := true
	err := each(args[0], func(elem any) (bool, error) {
		ok, err := predicate(args[1], elem)
		result = ok
		return ok, err
	})
	return result, err
}

func sumInt(_ *Instance, _ any, args []any) (any, error) {
	total := 0
	err := each(args[0], func(elem any) (bool, error) {
		total += elem.(int)
		return true, nil
	})
	return total, err
}

func sumFloat(_ *Instance, _ any, args []any) (any, error) {
	total := 0.0
	err := each(args[0], func(elem any) (bool, error) {
		total += elem.(float64)
		return true, nil
	})
	return total, err
}

// each visits elements until visit returns false or an error.
func each(seq any, visit func(elem any) (bool, error)) error {
	rv, err := sliceOf(seq)
	if err != nil {
		return err
	}
	for i := 0; i < seqLen(rv); i++ {
		more, err := visit(rv.Index(i).Interface())
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}
