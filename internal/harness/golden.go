package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/remoteq/internal/ir"
)

// Snapshot renders a result as canonical JSON: the per-step outcomes and
// the journal trace. Request and result hashes are content addressed, so
// the snapshot is stable across runs and machines.
func Snapshot(name string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, s := range result.Steps {
		m := map[string]any{
			"name":  s.Name,
			"kind":  s.Kind,
			"count": s.Count,
		}
		if s.Error != "" {
			m["error"] = s.Error
		} else if s.Records != nil {
			m["records"] = s.Records
		}
		steps[i] = m
	}

	trace := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		m := map[string]any{
			"step":         e.Step,
			"id":           e.ID,
			"kind":         e.Kind,
			"request_hash": e.RequestHash,
			"outcome":      e.Outcome,
			"result_count": e.ResultCount,
		}
		if e.ResultHash != "" {
			m["result_hash"] = e.ResultHash
		}
		if e.ErrorCode != "" {
			m["error_code"] = e.ErrorCode
		}
		trace[i] = m
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario": name,
		"steps":    steps,
		"trace":    trace,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass and Errors as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden
// file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
