package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/config"
	"github.com/roach88/remoteq/internal/endpoint"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/rebuild"
	"github.com/roach88/remoteq/internal/store"
	"github.com/roach88/remoteq/internal/testutil"
	"github.com/roach88/remoteq/internal/types"
)

// Harness is the test execution engine.
// It runs scenarios against a journaled executor with a deterministic
// clock and sequential request IDs.
type Harness struct {
	store  *store.Store
	exec   *endpoint.Executor[types.Record]
	elem   *types.Type
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory journal
// 2. Register the record type and coerce the dataset
// 3. Execute steps in order, checking each expect clause
// 4. Read the journal back as the trace and evaluate assertions
//
// A returned error means the scenario could not run; failed expectations
// are reported through Result.Errors instead.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}
	}

	if result.Trace, err = h.trace(ctx, scenario.Steps); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario) (*Harness, error) {
	cfg := &config.Config{
		Strict: scenario.Strict,
		Limits: scenario.Limits,
		Record: scenario.Record,
	}
	reg, elem, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	data, err := coerceDataset(elem, scenario.Dataset)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	rb := rebuild.New(reg, catalog.Standard(),
		rebuild.WithStrict(cfg.Strict),
		rebuild.WithLogger(logger),
	)
	exec, err := endpoint.NewExecutor(rb, elem, data,
		endpoint.WithLimits(cfg.EndpointLimits()),
		endpoint.WithJournal(st),
		endpoint.WithIDGenerator(testutil.NewSequentialIDs("")),
		endpoint.WithClock(testutil.NewDeterministicClock()),
		endpoint.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &Harness{store: st, exec: exec, elem: elem, logger: logger}, nil
}

func coerceDataset(elem *types.Type, raw []map[string]any) ([]types.Record, error) {
	out := make([]types.Record, 0, len(raw))
	for i, m := range raw {
		v, err := types.Coerce(elem, m)
		if err != nil {
			return nil, fmt.Errorf("dataset[%d]: %w", i, err)
		}
		rec, ok := v.(types.Record)
		if !ok {
			return nil, fmt.Errorf("dataset[%d]: %s decodes to %T", i, elem, v)
		}
		out = append(out, rec)
	}
	return out, nil
}

// executeStep sends the step's request and checks its expect clause.
// Query errors are expected outcomes; anything else aborts the run.
func (h *Harness) executeStep(ctx context.Context, step Step, result *Result) error {
	query, count, err := step.requests()
	if err != nil {
		return err
	}

	got := StepResult{Name: step.Name, Kind: step.Kind()}
	var format string
	if count != nil {
		format = queryir.FormatCount(count)
		n, err := h.exec.ExecuteCount(ctx, count)
		if err != nil {
			if got.Error = string(qerr.CodeOf(err)); got.Error == "" {
				return err
			}
		}
		got.Count = n
	} else {
		format = queryir.FormatFilterSortPage(query)
		records, err := h.exec.ExecuteSortFilterPage(ctx, query)
		if err != nil {
			if got.Error = string(qerr.CodeOf(err)); got.Error == "" {
				return err
			}
		} else {
			if got.Records, err = endpoint.RecordsToIR(h.elem, records); err != nil {
				return err
			}
			got.Count = len(records)
		}
	}
	result.Steps = append(result.Steps, got)

	for _, msg := range checkExpect(step, got, format) {
		result.AddError(msg)
	}

	h.logger.Info("step completed",
		"step", step.Name,
		"kind", got.Kind,
		"count", got.Count,
		"error", got.Error,
	)
	return nil
}

// trace reads the journal back. Steps run one request each with
// sequential IDs, so journal order pairs records with steps.
func (h *Harness) trace(ctx context.Context, steps []Step) ([]TraceEvent, error) {
	records, err := h.store.ListRequests(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	if len(records) != len(steps) {
		return nil, fmt.Errorf("journal holds %d requests for %d steps", len(records), len(steps))
	}
	trace := make([]TraceEvent, len(records))
	for i, rec := range records {
		trace[i] = traceEvent(steps[i].Name, rec)
	}
	return trace, nil
}
