package types

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Coerce converts a decoded value (from JSON, YAML or the portable literal
// domain: nil, bool, integers, floats, string, []any, map[string]any) into
// the Go representation of t. Values that already have that
// representation are returned unchanged.
func Coerce(t *Type, v any) (any, error) {
	if t.kind == KindAny {
		return v, nil
	}
	if t.goType == nil {
		return nil, fmt.Errorf("coerce to %s: type has no runtime form", t)
	}
	if v == nil {
		if Nilable(t) {
			return Zero(t), nil
		}
		return nil, fmt.Errorf("coerce to %s: null is not allowed", t)
	}
	if reflect.TypeOf(v) == t.goType {
		return v, nil
	}

	switch t.kind {
	case KindScalar:
		return coerceScalar(t, reflect.ValueOf(v))
	case KindShape:
		if elem := t.Elem(); elem != nil {
			return coerceSlice(t, elem, v)
		}
	case KindRecord:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("coerce to %s: want object, got %T", t, v)
		}
		return coerceRecord(t, m)
	}
	return nil, fmt.Errorf("coerce to %s: unsupported value %T", t, v)
}

func coerceScalar(t *Type, rv reflect.Value) (any, error) {
	target := t.goType
	switch {
	case IsInteger(t):
		n, ok := integral(rv)
		if !ok {
			return nil, fmt.Errorf("coerce to %s: want integer, got %s", t, rv.Type())
		}
		out := reflect.New(target).Elem()
		if isUnsigned(target.Kind()) {
			if n.neg || out.OverflowUint(n.mag) {
				return nil, fmt.Errorf("coerce to %s: %v out of range", t, rv.Interface())
			}
			out.SetUint(n.mag)
			return out.Interface(), nil
		}
		if n.mag > math.MaxInt64 && !(n.neg && n.mag == 1<<63) {
			return nil, fmt.Errorf("coerce to %s: %v out of range", t, rv.Interface())
		}
		i := int64(n.mag)
		if n.neg {
			i = -i
		}
		if out.OverflowInt(i) {
			return nil, fmt.Errorf("coerce to %s: %v out of range", t, rv.Interface())
		}
		out.SetInt(i)
		return out.Interface(), nil

	case IsFloat(t):
		var f float64
		switch {
		case rv.CanFloat():
			f = rv.Float()
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		default:
			return nil, fmt.Errorf("coerce to %s: want number, got %s", t, rv.Type())
		}
		out := reflect.New(target).Elem()
		if out.OverflowFloat(f) {
			return nil, fmt.Errorf("coerce to %s: %v out of range", t, f)
		}
		out.SetFloat(f)
		return out.Interface(), nil

	case t == String:
		if rv.Kind() != reflect.String {
			return nil, fmt.Errorf("coerce to string: got %s", rv.Type())
		}
		return rv.String(), nil

	case t == Bool:
		if rv.Kind() != reflect.Bool {
			return nil, fmt.Errorf("coerce to bool: got %s", rv.Type())
		}
		return rv.Bool(), nil
	}
	return nil, fmt.Errorf("coerce to %s: unsupported scalar", t)
}

type magnitude struct {
	neg bool
	mag uint64
}

// integral extracts an integer from any numeric value; floats qualify only
// when they have no fractional part.
func integral(rv reflect.Value) (magnitude, bool) {
	switch {
	case rv.CanInt():
		i := rv.Int()
		if i < 0 {
			return magnitude{neg: true, mag: uint64(-(i + 1)) + 1}, true
		}
		return magnitude{mag: uint64(i)}, true
	case rv.CanUint():
		return magnitude{mag: rv.Uint()}, true
	case rv.CanFloat():
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) >= 1<<64 {
			return magnitude{}, false
		}
		if f < 0 {
			return magnitude{neg: true, mag: uint64(-f)}, true
		}
		return magnitude{mag: uint64(f)}, true
	}
	return magnitude{}, false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func coerceSlice(t, elem *Type, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("coerce to %s: want list, got %T", t, v)
	}
	out := reflect.MakeSlice(t.goType, rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		e, err := Coerce(elem, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		if e == nil {
			continue
		}
		out.Index(i).Set(reflect.ValueOf(e))
	}
	return out.Interface(), nil
}

func coerceRecord(t *Type, m map[string]any) (any, error) {
	if t.goType == recordType {
		rec := make(Record, len(t.fields))
		for _, f := range t.fields {
			rec[f.Name] = Zero(f.Type)
		}
		for k, raw := range m {
			f, ok := lookupField(t, k)
			if !ok {
				return nil, fmt.Errorf("coerce to %s: unknown field %q", t, k)
			}
			v, err := Coerce(f.Type, raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			rec[f.Name] = v
		}
		return rec, nil
	}

	out := reflect.New(t.goType).Elem()
	for k, raw := range m {
		f, ok := lookupField(t, k)
		if !ok {
			return nil, fmt.Errorf("coerce to %s: unknown field %q", t, k)
		}
		v, err := Coerce(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if v != nil {
			out.FieldByIndex(f.index).Set(reflect.ValueOf(v))
		}
	}
	return out.Interface(), nil
}

// lookupField matches exactly first, then case-insensitively, so both
// "Tag" and "tag" address the Tag field.
func lookupField(t *Type, key string) (Field, bool) {
	if f, ok := t.Field(key); ok {
		return f, true
	}
	for _, f := range t.fields {
		if strings.EqualFold(f.Name, key) {
			return f, true
		}
	}
	return Field{}, false
}
