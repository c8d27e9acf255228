package ir

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// IRValue is a portable literal or envelope value. The set of
// implementations is closed: IRNull, IRString, IRInt, IRFloat, IRBool,
// IRArray and IRObject.
type IRValue interface {
	irValue()
}

// IRNull is JSON null: an absent filter, a nil call receiver, a null
// constant.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler.
func (IRNull) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a finite floating point value.
// On the wire it always carries a fraction or an exponent so that
// decoding never confuses it with IRInt.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRFloat creates an IRFloat value. NaN and infinities are rejected.
func NewIRFloat(f float64) (IRFloat, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite float %v is not representable", f)
	}
	return IRFloat(f), nil
}

// SortedKeys returns keys ordered by UTF-16 code units, the order canonical
// JSON requires. It differs from Go's byte order for keys mixing
// supplementary characters with U+E000..U+FFFF.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 compares a and b as UTF-16 code unit sequences without
// converting them.
func compareUTF16(a, b string) int {
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra != rb {
			// Runes sharing a high surrogate order by their low surrogate,
			// which follows code point order.
			if ua, ub := leadingUnit(ra), leadingUnit(rb); ua != ub {
				return cmp.Compare(ua, ub)
			}
			return cmp.Compare(ra, rb)
		}
		a, b = a[na:], b[nb:]
	}
	return cmp.Compare(len(a), len(b))
}

func leadingUnit(r rune) rune {
	if r < 0x10000 {
		return r
	}
	return 0xD800 + (r-0x10000)>>10
}

// FormatFloat renders f the way the wire expects: shortest round-trip
// digits, always with a fraction or exponent.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// UnmarshalIRValue decodes exactly one JSON value. Numbers with a fraction
// or exponent become IRFloat, all others IRInt.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty JSON value")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return fromDecoded(raw)
}

func fromDecoded(raw any) (IRValue, error) {
	switch v := raw.(type) {
	case nil:
		return IRNull{}, nil
	case bool:
		return IRBool(v), nil
	case string:
		return IRString(v), nil
	case json.Number:
		s := v.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("number %s: %w", s, err)
			}
			return NewIRFloat(f)
		}
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(v))
		for i, elem := range v {
			iv, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = iv
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(v))
		for k, elem := range v {
			iv, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			obj[k] = iv
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unexpected decoded type %T", raw)
}

// UnmarshalJSON decodes a JSON object; null leaves an empty object.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case IRObject:
		*obj = v
	case IRNull:
		*obj = IRObject{}
	default:
		return fmt.Errorf("expected a JSON object, got %T", v)
	}
	return nil
}

// UnmarshalJSON decodes a JSON array; null leaves an empty array.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case IRArray:
		*arr = v
	case IRNull:
		*arr = IRArray{}
	default:
		return fmt.Errorf("expected a JSON array, got %T", v)
	}
	return nil
}

// MarshalJSON writes the object with sorted keys. It is not canonical
// (no NFC, HTML escaped); use MarshalCanonical for hashing.
func (obj IRObject) MarshalJSON() ([]byte, error) { return MarshalIRValue(obj) }

// MarshalJSON implements json.Marshaler.
func (arr IRArray) MarshalJSON() ([]byte, error) { return MarshalIRValue(arr) }

// MarshalJSON rejects non-finite values and always keeps a fraction.
func (f IRFloat) MarshalJSON() ([]byte, error) { return MarshalIRValue(f) }

// MarshalIRValue encodes v as plain JSON. A nil IRValue encodes as null.
func MarshalIRValue(v IRValue) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v IRValue) error {
	switch val := v.(type) {
	case nil, IRNull:
		buf.WriteString("null")
	case IRBool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case IRInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case IRFloat:
		if _, err := NewIRFloat(float64(val)); err != nil {
			return err
		}
		buf.WriteString(FormatFloat(float64(val)))
	case IRString:
		b, _ := json.Marshal(string(val))
		buf.Write(b)
	case IRArray:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case IRObject:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, _ := json.Marshal(k)
			buf.Write(b)
			buf.WriteByte(':')
			if err := writeJSON(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown IRValue type: %T", v)
	}
	return nil
}

// FromGo converts a Go literal into the portable value domain.
// Supported: nil, bool, all integer kinds that fit int64, float32/64,
// string, and slices or arrays of those. Anything else is an error.
func FromGo(v any) (IRValue, error) {
	if v == nil {
		return IRNull{}, nil
	}
	if iv, ok := v.(IRValue); ok {
		return iv, nil
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) (IRValue, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return IRBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IRInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d exceeds int64 range", u)
		}
		return IRInt(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return NewIRFloat(rv.Float())
	case reflect.String:
		return IRString(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return IRNull{}, nil
		}
		arr := make(IRArray, rv.Len())
		for i := range arr {
			elem, err := fromReflect(rv.Index(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			if _, nested := elem.(IRArray); nested {
				return nil, fmt.Errorf("[%d]: nested arrays are not portable", i)
			}
			arr[i] = elem
		}
		return arr, nil
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		if rv.Kind() == reflect.Interface {
			return fromReflect(rv.Elem())
		}
	}
	return nil, fmt.Errorf("unsupported literal type: %s", rv.Type())
}

// ToGo converts an IRValue into plain Go values: nil, bool, int64,
// float64, string, []any or map[string]any.
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	}
	return nil
}
