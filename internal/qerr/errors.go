// Package qerr defines the error taxonomy shared by capture, rebuild and
// execution of remote queries.
package qerr

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a failure while capturing, rebuilding or executing a
// query. Every error is fatal to its request; nothing is retried.
//
// Error carries enough context (node kind, operation name, argument
// shapes) to diagnose a schema mismatch between the capturing and the
// rebuilding side, which is the dominant real-world failure cause.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// NodeKind is the wire tag of the node being processed, if any.
	NodeKind string

	// Operation is the operation or member name involved, if any.
	Operation string

	// ArgTypes lists the argument type names used for resolution.
	ArgTypes []string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// Code categorizes query errors.
type Code string

const (
	// CodeUnsupportedNodeKind indicates a node outside the grammar, or a
	// grammar node whose rebuild is not implemented.
	CodeUnsupportedNodeKind Code = "UNSUPPORTED_NODE_KIND"

	// CodeOperationNotFound indicates no candidate operation unified.
	CodeOperationNotFound Code = "OPERATION_NOT_FOUND"

	// CodeAmbiguousOperation indicates more candidates than the policy allows.
	CodeAmbiguousOperation Code = "AMBIGUOUS_OPERATION"

	// CodeTypeResolutionFailed indicates an unknown declared type name.
	CodeTypeResolutionFailed Code = "TYPE_RESOLUTION_FAILED"

	// CodeParameterBindingConflict indicates an incompatible rebinding of a
	// parameter name, or a parameter with no enclosing lambda.
	CodeParameterBindingConflict Code = "PARAMETER_BINDING_CONFLICT"

	// CodeUnsupportedLiteral indicates a constant outside the portable domain.
	CodeUnsupportedLiteral Code = "UNSUPPORTED_LITERAL"

	// CodeUnsupportedPipeline indicates a pipeline that cannot be folded
	// into one envelope.
	CodeUnsupportedPipeline Code = "UNSUPPORTED_PIPELINE"

	// CodeTypeMismatch indicates invalid operand types, or a rebuilt type
	// that differs from the declared one.
	CodeTypeMismatch Code = "TYPE_MISMATCH"

	// CodeMalformedNode indicates violated node attribute or child invariants.
	CodeMalformedNode Code = "MALFORMED_NODE"

	// CodeLimitExceeded indicates a configured limit was exceeded.
	CodeLimitExceeded Code = "LIMIT_EXCEEDED"

	// CodeEvaluationFailed indicates a runtime failure while executing.
	CodeEvaluationFailed Code = "EVALUATION_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.NodeKind != "" {
		ctx = append(ctx, "node="+e.NodeKind)
	}
	if e.Operation != "" {
		ctx = append(ctx, "op="+e.Operation)
	}
	if len(e.ArgTypes) > 0 {
		ctx = append(ctx, "args=("+strings.Join(e.ArgTypes, ", ")+")")
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithNode records the node kind the error was raised for. An already set
// kind is kept so the innermost node wins.
func (e *Error) WithNode(kind string) *Error {
	if e.NodeKind == "" {
		e.NodeKind = kind
	}
	return e
}

// WithDetail adds one diagnostic key/value pair.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Is reports whether err is, or wraps, a query error with the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// CodeOf returns the code of the query error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsResolutionError reports whether err stems from operation or type
// resolution, the failure classes caused by catalog or registry drift.
func IsResolutionError(err error) bool {
	switch CodeOf(err) {
	case CodeOperationNotFound, CodeAmbiguousOperation, CodeTypeResolutionFailed:
		return true
	}
	return false
}
