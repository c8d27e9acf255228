package catalog

import (
	"cmp"
	"fmt"
	"reflect"

	"github.com/roach88/remoteq/internal/types"
)

// Equal compares two runtime values. Values of the same type that are
// comparable all the way down, including whatever their interface fields
// hold, use ==; everything else reflect.DeepEqual.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) &&
		reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Compare orders two sort keys of the same kind: integers, floats,
// strings and bools (false before true).
func Compare(a, b any) (int, error) {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !ra.IsValid() || !rb.IsValid() {
		return 0, fmt.Errorf("cannot order null keys")
	}
	switch {
	case ra.CanInt() && rb.CanInt():
		return cmp.Compare(ra.Int(), rb.Int()), nil
	case ra.CanUint() && rb.CanUint():
		return cmp.Compare(ra.Uint(), rb.Uint()), nil
	case ra.CanFloat() && rb.CanFloat():
		return cmp.Compare(ra.Float(), rb.Float()), nil
	case ra.Kind() == reflect.String && rb.Kind() == reflect.String:
		return cmp.Compare(ra.String(), rb.String()), nil
	case ra.Kind() == reflect.Bool && rb.Kind() == reflect.Bool:
		x, y := ra.Bool(), rb.Bool()
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("cannot order %T against %T", a, b)
}

// sliceOf views a sequence argument. A nil value is an empty sequence.
func sliceOf(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Value{}, nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("want a sequence, got %T", v)
	}
	return rv, nil
}

func seqLen(rv reflect.Value) int {
	if !rv.IsValid() {
		return 0
	}
	return rv.Len()
}

// call invokes a Func value.
func call(fn any, args ...any) (any, error) {
	f, ok := fn.(types.Fn)
	if !ok || f == nil {
		return nil, fmt.Errorf("want a function, got %T", fn)
	}
	return f(args...)
}

// predicate calls fn and insists on a bool result.
func predicate(fn any, args ...any) (bool, error) {
	out, err := call(fn, args...)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("predicate returned %T, want bool", out)
	}
	return b, nil
}
