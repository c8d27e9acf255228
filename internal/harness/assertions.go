package harness

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %s", i+1, event.Step, event.Kind, event.Outcome)
		if event.ErrorCode != "" {
			fmt.Fprintf(&buf, " %s", event.ErrorCode)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// AssertionContext provides what assertions need beyond the trace.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertJournalCount:
			err = assertJournalCount(result.Trace, a)
		case AssertJournalOutcomes:
			err = assertJournalOutcomes(result.Trace, a)
		case AssertSameRequest:
			err = assertSameRequest(result.Trace, a)
		case AssertDistinctRequests:
			err = assertDistinctRequests(result.Trace, a, actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertJournalCount(trace []TraceEvent, a Assertion) error {
	if len(trace) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertJournalCount,
		Expected: fmt.Sprintf("%d journaled requests", a.Count),
		Actual:   fmt.Sprintf("%d journaled requests", len(trace)),
		Trace:    trace,
	}
}

func assertJournalOutcomes(trace []TraceEvent, a Assertion) error {
	got := make([]string, len(trace))
	for i, e := range trace {
		got[i] = e.Outcome
	}
	if slices.Equal(got, a.Outcomes) {
		return nil
	}
	return &AssertionError{
		Type:     AssertJournalOutcomes,
		Expected: strings.Join(a.Outcomes, ", "),
		Actual:   strings.Join(got, ", "),
		Trace:    trace,
	}
}

// assertSameRequest checks that the named steps sent requests with one
// content hash.
func assertSameRequest(trace []TraceEvent, a Assertion) error {
	var hashes []string
	for _, name := range a.Steps {
		i := slices.IndexFunc(trace, func(e TraceEvent) bool { return e.Step == name })
		if i < 0 {
			return &AssertionError{
				Type:     AssertSameRequest,
				Expected: fmt.Sprintf("step %s in journal", name),
				Actual:   "not found in trace",
				Trace:    trace,
			}
		}
		hashes = append(hashes, trace[i].RequestHash)
	}
	for _, h := range hashes[1:] {
		if h != hashes[0] {
			return &AssertionError{
				Type:     AssertSameRequest,
				Expected: fmt.Sprintf("steps %s share one request hash", strings.Join(a.Steps, ", ")),
				Actual:   fmt.Sprintf("hashes %s", strings.Join(hashes, ", ")),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertDistinctRequests(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	sum, err := actx.Store.Summarize(actx.Ctx)
	if err != nil {
		return err
	}
	if sum.Distinct == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDistinctRequests,
		Expected: fmt.Sprintf("%d distinct requests", a.Count),
		Actual:   fmt.Sprintf("%d distinct requests", sum.Distinct),
		Trace:    trace,
	}
}

// checkExpect compares a step result with the step's expect clause.
func checkExpect(step Step, got StepResult, format string) []string {
	var errs []string
	fail := func(f string, args ...any) {
		errs = append(errs, fmt.Sprintf("step %s: ", step.Name)+fmt.Sprintf(f, args...))
	}
	exp := step.Expect

	if exp.Format != "" && exp.Format != format {
		fail("format: expected %q, got %q", exp.Format, format)
	}

	if exp.Error != "" {
		if got.Error != string(exp.Error) {
			fail("expected error %s, got %s", exp.Error, outcome(got))
		}
		return errs
	}
	if got.Error != "" {
		fail("unexpected error %s", got.Error)
		return errs
	}

	if exp.Count != nil && *exp.Count != got.Count {
		fail("expected count %d, got %d", *exp.Count, got.Count)
	}
	if exp.Records != nil {
		errs = append(errs, matchRecords(step.Name, exp.Records, got.Records)...)
	}
	return errs
}

func outcome(got StepResult) string {
	if got.Error == "" {
		return "success"
	}
	return got.Error
}

// matchRecords compares records position by position. Each expected
// mapping is a subset of the actual record's fields; values compare by
// their canonical JSON.
func matchRecords(step string, want []map[string]any, got ir.IRArray) []string {
	if len(want) != len(got) {
		return []string{fmt.Sprintf("step %s: expected %d records, got %d", step, len(want), len(got))}
	}

	var errs []string
	for i, fields := range want {
		obj, ok := got[i].(ir.IRObject)
		if !ok {
			errs = append(errs, fmt.Sprintf("step %s: record %d is %T, not an object", step, i, got[i]))
			continue
		}
		for _, name := range sortedKeys(fields) {
			actual, ok := obj[name]
			if !ok {
				errs = append(errs, fmt.Sprintf("step %s: record %d has no field %s", step, i, name))
				continue
			}
			if err := sameValue(fields[name], actual); err != nil {
				errs = append(errs, fmt.Sprintf("step %s: record %d field %s: %v", step, i, name, err))
			}
		}
	}
	return errs
}

func sameValue(want any, got ir.IRValue) error {
	w, err := ir.MarshalCanonical(want)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	g, err := ir.MarshalCanonical(got)
	if err != nil {
		return err
	}
	if !bytes.Equal(w, g) {
		return fmt.Errorf("expected %s, got %s", w, g)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
