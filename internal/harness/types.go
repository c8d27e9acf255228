package harness

import (
	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/store"
)

// StepResult is what one step's request returned.
type StepResult struct {
	Name string `json:"name"`
	Kind string `json:"kind"`

	// Records is the portable rendering of a successful query.
	Records ir.IRArray `json:"records,omitempty"`

	// Count is the count result, or the number of records of a query.
	Count int `json:"count"`

	// Error is the code of a failed request.
	Error string `json:"error,omitempty"`
}

// TraceEvent is one journaled request, paired with the step that sent it.
type TraceEvent struct {
	Step        string `json:"step"`
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	RequestHash string `json:"request_hash"`
	Outcome     string `json:"outcome"`
	ResultCount int    `json:"result_count"`
	ResultHash  string `json:"result_hash,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
}

func traceEvent(step string, rec store.Record) TraceEvent {
	return TraceEvent{
		Step:        step,
		ID:          rec.ID,
		Kind:        rec.Kind,
		RequestHash: rec.RequestHash,
		Outcome:     rec.Outcome,
		ResultCount: rec.ResultCount,
		ResultHash:  rec.ResultHash,
		ErrorCode:   rec.ErrorCode,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Trace is the request journal in sequence order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
