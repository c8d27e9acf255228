package qerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesContext(t *testing.T) {
	err := NewOperationNotFound("Contains", []string{"Seq[int]", "string"}).WithNode("call")

	assert.Equal(t,
		"OPERATION_NOT_FOUND: no overload of Contains accepts the arguments (node=call, op=Contains, args=(Seq[int], string))",
		err.Error())
}

func TestErrorMessageWithCause(t *testing.T) {
	cause := errors.New("unknown shape Bag")
	err := NewTypeResolutionFailed("Bag[int]", cause)

	assert.Equal(t, `TYPE_RESOLUTION_FAILED: cannot resolve type "Bag[int]": unknown shape Bag`, err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWithNodeKeepsInnermost(t *testing.T) {
	err := NewUnboundParameter("x").WithNode("parameter").WithNode("lambda")
	assert.Equal(t, "parameter", err.NodeKind)
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("rebuild filter: %w", NewMalformedNode("binary", "want 2 children, got %d", 1))

	assert.True(t, Is(err, CodeMalformedNode))
	assert.False(t, Is(err, CodeTypeMismatch))
	assert.False(t, Is(errors.New("plain"), CodeMalformedNode))
	assert.Equal(t, CodeMalformedNode, CodeOf(err))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestIsResolutionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", NewOperationNotFound("Where", nil), true},
		{"ambiguous", NewAmbiguousOperation("Count", nil, []string{"a", "b"}), true},
		{"type", NewTypeResolutionFailed("X", nil), true},
		{"limit", NewLimitExceeded("take", 5, 1), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsResolutionError(tt.err))
		})
	}
}

func TestConstructorsSetCodes(t *testing.T) {
	tests := []struct {
		err  *Error
		code Code
	}{
		{NewUnsupportedNodeKind("new", "object construction is not supported"), CodeUnsupportedNodeKind},
		{NewParameterBindingConflict("x", "int", "string"), CodeParameterBindingConflict},
		{NewUnboundParameter("y"), CodeParameterBindingConflict},
		{NewUnsupportedLiteral("TestData", nil), CodeUnsupportedLiteral},
		{NewUnsupportedPipeline("Where", "second filter stage"), CodeUnsupportedPipeline},
		{NewTypeMismatch("want %s", "bool"), CodeTypeMismatch},
		{NewLimitExceeded("take", 10, 5), CodeLimitExceeded},
		{NewEvaluationFailed(nil, "division by zero"), CodeEvaluationFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestAmbiguousListsCandidates(t *testing.T) {
	err := NewAmbiguousOperation("Where", []string{"Queryable[T]"}, []string{"Where[int]", "Where[string]"})
	require.Contains(t, err.Details, "candidates")
	assert.Equal(t, "Where[int]; Where[string]", err.Details["candidates"])
}

func TestWithDetail(t *testing.T) {
	err := NewTypeMismatch("declared %s, rebuilt %s", "bool", "int").WithDetail("declared", "bool")
	assert.Equal(t, "bool", err.Details["declared"])
}
