// Package transport binds a query endpoint to HTTP.
//
// Routes:
//
//	POST /v1/query   FilterSortPageRequest -> {"status":"ok","data":{"records":[...]}}
//	POST /v1/count   CountRequest          -> {"status":"ok","data":{"count":n}}
//	GET  /healthz    liveness
//	GET  /metrics    Prometheus exposition
//
// Failures answer {"status":"error","error":{"code","message","details"}}
// where code is a qerr code. Client decodes that body back into a
// *qerr.Error, so callers see the same error on both sides of the wire.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/qerr"
)

// Route paths.
const (
	PathQuery   = "/v1/query"
	PathCount   = "/v1/count"
	PathHealth  = "/healthz"
	PathMetrics = "/metrics"
)

// CodeInternal marks failures that are not query errors.
const CodeInternal = "INTERNAL"

// Response is the envelope of every reply.
type Response struct {
	Status string          `json:"status"` // "ok" or "error"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// QueryData is the payload of a successful query.
type QueryData struct {
	Records ir.IRArray `json:"records"`
}

// CountData is the payload of a successful count.
type CountData struct {
	Count int `json:"count"`
}

// errorBody renders err. Query errors keep their code and diagnostic
// context; anything else becomes CodeInternal.
func errorBody(err error) *ErrorBody {
	var qe *qerr.Error
	if !errors.As(err, &qe) {
		return &ErrorBody{Code: CodeInternal, Message: err.Error()}
	}

	details := make(map[string]string, len(qe.Details)+2)
	for k, v := range qe.Details {
		details[k] = v
	}
	if qe.NodeKind != "" {
		details["node_kind"] = qe.NodeKind
	}
	if qe.Operation != "" {
		details["operation"] = qe.Operation
	}
	if len(details) == 0 {
		details = nil
	}
	msg := qe.Message
	if qe.Err != nil {
		msg += ": " + qe.Err.Error()
	}
	return &ErrorBody{Code: string(qe.Code), Message: msg, Details: details}
}

// toError reverses errorBody.
func (b *ErrorBody) toError() error {
	if b.Code == CodeInternal {
		return errors.New(b.Message)
	}
	qe := &qerr.Error{Code: qerr.Code(b.Code), Message: b.Message}
	for k, v := range b.Details {
		switch k {
		case "node_kind":
			qe.NodeKind = v
		case "operation":
			qe.Operation = v
		default:
			if qe.Details == nil {
				qe.Details = make(map[string]string)
			}
			qe.Details[k] = v
		}
	}
	return qe
}

// statusOf maps an error to its HTTP status. Requests the server cannot
// make sense of are 400; requests that are well formed but disagree with
// the server's schema or limits are 422.
func statusOf(err error) int {
	switch qerr.CodeOf(err) {
	case qerr.CodeMalformedNode, qerr.CodeUnsupportedNodeKind, qerr.CodeUnsupportedLiteral,
		qerr.CodeUnsupportedPipeline, qerr.CodeParameterBindingConflict:
		return http.StatusBadRequest
	case qerr.CodeOperationNotFound, qerr.CodeAmbiguousOperation, qerr.CodeTypeResolutionFailed,
		qerr.CodeTypeMismatch, qerr.CodeLimitExceeded, qerr.CodeEvaluationFailed:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
