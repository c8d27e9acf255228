package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRFloat(1.5)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

// UTF-8 byte order puts U+E000 first, UTF-16 code unit order puts U+10000 first.
func TestSortedKeysUTF16Order(t *testing.T) {
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	assert.Equal(t, []string{"\U00010000", "\uE000"}, obj.SortedKeys())
}

func TestCompareUTF16(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"Xs", "Xs", 0},
		{"take", "skip", 1},
		{"kind", "kindred", -1},
		{"A", "a", -1},
		{"", "", 0},
		{"", "a", -1},
		{"\uFFFF", "\U00010000", 1},
		{"\U00010000", "\U00010001", -1},
		{"\U0001F600", "\U00010400", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, compareUTF16(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestIRNullInObject(t *testing.T) {
	obj := IRObject{
		"present": IRString("value"),
		"missing": IRNull{},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"missing":null,"present":"value"}`, string(data))

	var decoded IRObject
	require.NoError(t, json.Unmarshal(data, &decoded))

	_, isNull := decoded["missing"].(IRNull)
	assert.True(t, isNull, "expected IRNull, got %T", decoded["missing"])

	var arr IRArray
	require.Error(t, json.Unmarshal([]byte(`{"a":1}`), &arr))
}

func TestUnmarshalNumbers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected IRValue
	}{
		{"integer", `42`, IRInt(42)},
		{"negative integer", `-100`, IRInt(-100)},
		{"fraction", `3.25`, IRFloat(3.25)},
		{"whole float", `2.0`, IRFloat(2)},
		{"exponent", `1e3`, IRFloat(1000)},
		{"exponent uppercase", `1E-2`, IRFloat(0.01)},
		{"float in array", `[1, 2.5]`, IRArray{IRInt(1), IRFloat(2.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := UnmarshalIRValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestUnmarshalRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"int64 overflow", `9223372036854775808`},
		{"float overflow", `1e400`},
		{"broken literal", `nul`},
		{"trailing data", `{} {}`},
		{"unterminated", `{"take": 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalIRValue([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestMarshalIRValueRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value IRValue
	}{
		{"null", IRNull{}},
		{"string", IRString("hello")},
		{"empty string", IRString("")},
		{"int", IRInt(42)},
		{"max int64", IRInt(math.MaxInt64)},
		{"min int64", IRInt(math.MinInt64)},
		{"float", IRFloat(0.1)},
		{"whole float", IRFloat(12)},
		{"bool", IRBool(false)},
		{"empty array", IRArray{}},
		{"mixed array", IRArray{IRInt(1), IRFloat(1), IRNull{}}},
		{"nested", IRObject{
			"array":  IRArray{IRInt(1), IRObject{"nested": IRBool(true)}},
			"string": IRString("test"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalIRValue(tt.value)
			require.NoError(t, err)

			result, err := UnmarshalIRValue(data)
			require.NoError(t, err)

			assert.Equal(t, tt.value, result)
		})
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "1.0", FormatFloat(1))
	assert.Equal(t, "-0.5", FormatFloat(-0.5))
	assert.Equal(t, "1e+21", FormatFloat(1e21))

	// runtime addition; the constant expression 0.1+0.2 folds to exactly 0.3
	a, b := 0.1, 0.2
	assert.Equal(t, "0.30000000000000004", FormatFloat(a+b))
	assert.Equal(t, "0.3", FormatFloat(0.3))
}

func TestNewIRFloatRejectsNonFinite(t *testing.T) {
	_, err := NewIRFloat(math.NaN())
	assert.Error(t, err)
	_, err = NewIRFloat(math.Inf(-1))
	assert.Error(t, err)

	f, err := NewIRFloat(2.5)
	require.NoError(t, err)
	assert.Equal(t, IRFloat(2.5), f)
}

func TestFromGo(t *testing.T) {
	type label string

	tests := []struct {
		name     string
		input    any
		expected IRValue
	}{
		{"nil", nil, IRNull{}},
		{"bool", true, IRBool(true)},
		{"int", 19, IRInt(19)},
		{"int8", int8(-3), IRInt(-3)},
		{"uint16", uint16(7), IRInt(7)},
		{"float32", float32(0.5), IRFloat(0.5)},
		{"string", "est", IRString("est")},
		{"named string", label("x"), IRString("x")},
		{"slice", []int{1, 2}, IRArray{IRInt(1), IRInt(2)}},
		{"nil slice", []string(nil), IRNull{}},
		{"any slice", []any{"a", 1}, IRArray{IRString("a"), IRInt(1)}},
		{"already portable", IRInt(4), IRInt(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFromGoRejectsUnportable(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"struct", struct{ A int }{A: 1}},
		{"map", map[string]int{"a": 1}},
		{"func", func() {}},
		{"nested slice", [][]int{{1}}},
		{"huge uint", uint64(math.MaxUint64)},
		{"nan", math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromGo(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestToGo(t *testing.T) {
	assert.Nil(t, ToGo(IRNull{}))
	assert.Equal(t, int64(5), ToGo(IRInt(5)))
	assert.Equal(t, 1.5, ToGo(IRFloat(1.5)))
	assert.Equal(t, "s", ToGo(IRString("s")))
	assert.Equal(t, []any{int64(1), nil}, ToGo(IRArray{IRInt(1), IRNull{}}))
	assert.Equal(t, map[string]any{"a": true}, ToGo(IRObject{"a": IRBool(true)}))
}
