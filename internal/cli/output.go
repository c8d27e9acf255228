package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/remoteq/internal/qerr"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // rejected request, failed scenario or replay mismatch
	ExitCommandError = 2 // the command itself could not run
)

// ExitError carries the process exit status for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to an exit status. Errors that carry no
// ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// OutputFormatter renders command results as text or as a JSON envelope.
// Verbose diagnostics go to ErrWriter when set.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope every command prints with --format json.
type CLIResponse struct {
	Status  string    `json:"status"`
	Data    any       `json:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// CLIError holds either a query error code or an E_* command code.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success prints data. Text mode relies on data's String method.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.Respond(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.Respond(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// QueryError reports a rejected request under its query error code and
// returns the ExitFailure error the command should return.
func (f *OutputFormatter) QueryError(err error) error {
	var qe *qerr.Error
	if !errors.As(err, &qe) {
		return WrapExitError(ExitCommandError, "request failed", err)
	}

	var details any
	if qe.NodeKind != "" || qe.Operation != "" || len(qe.Details) > 0 {
		d := make(map[string]string, len(qe.Details)+2)
		for k, v := range qe.Details {
			d[k] = v
		}
		if qe.NodeKind != "" {
			d["node_kind"] = qe.NodeKind
		}
		if qe.Operation != "" {
			d["operation"] = qe.Operation
		}
		details = d
	}
	if outErr := f.Error(string(qe.Code), qe.Message, details); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "request rejected", err)
}

// Respond writes resp as indented JSON regardless of Format.
func (f *OutputFormatter) Respond(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog prints a diagnostic line when Verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
