package qerr

import (
	"fmt"
	"strings"
)

// NewUnsupportedNodeKind creates an error for a node outside the grammar.
func NewUnsupportedNodeKind(kind, reason string) *Error {
	return &Error{
		Code:     CodeUnsupportedNodeKind,
		Message:  reason,
		NodeKind: kind,
	}
}

// NewOperationNotFound creates an error for an operation no candidate of
// which unified with the argument types.
func NewOperationNotFound(op string, argTypes []string) *Error {
	return &Error{
		Code:      CodeOperationNotFound,
		Message:   fmt.Sprintf("no overload of %s accepts the arguments", op),
		Operation: op,
		ArgTypes:  argTypes,
	}
}

// NewAmbiguousOperation creates an error listing the competing candidates.
func NewAmbiguousOperation(op string, argTypes, candidates []string) *Error {
	return &Error{
		Code:      CodeAmbiguousOperation,
		Message:   fmt.Sprintf("%d overloads of %s match", len(candidates), op),
		Operation: op,
		ArgTypes:  argTypes,
		Details: map[string]string{
			"candidates": strings.Join(candidates, "; "),
		},
	}
}

// NewTypeResolutionFailed creates an error for an unknown type name.
func NewTypeResolutionFailed(name string, cause error) *Error {
	return &Error{
		Code:    CodeTypeResolutionFailed,
		Message: fmt.Sprintf("cannot resolve type %q", name),
		Details: map[string]string{"type": name},
		Err:     cause,
	}
}

// NewParameterBindingConflict creates an error for a parameter name that is
// already bound to a different type.
func NewParameterBindingConflict(name, existing, requested string) *Error {
	return &Error{
		Code:    CodeParameterBindingConflict,
		Message: fmt.Sprintf("parameter %q is bound as %s, referenced as %s", name, existing, requested),
		Details: map[string]string{
			"parameter": name,
			"existing":  existing,
			"requested": requested,
		},
	}
}

// NewUnboundParameter creates an error for a parameter reference that no
// enclosing lambda declares.
func NewUnboundParameter(name string) *Error {
	return &Error{
		Code:    CodeParameterBindingConflict,
		Message: fmt.Sprintf("unbound parameter %q", name),
		Details: map[string]string{"parameter": name},
	}
}

// NewUnsupportedLiteral creates an error for a constant outside the portable
// literal domain.
func NewUnsupportedLiteral(typeName string, cause error) *Error {
	return &Error{
		Code:     CodeUnsupportedLiteral,
		Message:  fmt.Sprintf("constant of type %s is not portable", typeName),
		NodeKind: "constant",
		Err:      cause,
	}
}

// NewUnsupportedPipeline creates an error for a pipeline stage that cannot
// be folded into a request envelope.
func NewUnsupportedPipeline(op, reason string) *Error {
	return &Error{
		Code:      CodeUnsupportedPipeline,
		Message:   reason,
		NodeKind:  "call",
		Operation: op,
	}
}

// NewTypeMismatch creates an error for operands or results of the wrong type.
func NewTypeMismatch(format string, args ...any) *Error {
	return &Error{
		Code:    CodeTypeMismatch,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewMalformedNode creates an error for a node violating its kind's shape.
func NewMalformedNode(kind, format string, args ...any) *Error {
	return &Error{
		Code:     CodeMalformedNode,
		Message:  fmt.Sprintf(format, args...),
		NodeKind: kind,
	}
}

// NewLimitExceeded creates an error for a configured limit.
func NewLimitExceeded(limit string, value, max int) *Error {
	return &Error{
		Code:    CodeLimitExceeded,
		Message: fmt.Sprintf("%s %d exceeds limit %d", limit, value, max),
		Details: map[string]string{
			"limit": limit,
			"value": fmt.Sprintf("%d", value),
			"max":   fmt.Sprintf("%d", max),
		},
	}
}

// NewEvaluationFailed creates an error for a runtime failure.
func NewEvaluationFailed(cause error, format string, args ...any) *Error {
	return &Error{
		Code:    CodeEvaluationFailed,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}
