package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/remoteq/internal/config"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
)

// Scenario defines a conformance scenario: a record type, a dataset of
// that type, and a sequence of wire requests executed against it.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Record declares the served record type.
	Record config.Record `yaml:"record"`

	// Dataset lists the records served, one mapping per record.
	Dataset []map[string]any `yaml:"dataset"`

	// Strict resolves every call site with single-match unification.
	Strict bool `yaml:"strict,omitempty"`

	// Limits bound each request. Zero means unlimited.
	Limits config.Limits `yaml:"limits,omitempty"`

	// Steps are executed in order, one request each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the request journal after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step sends one request. Exactly one of Query and Count is set; each holds
// the request envelope in its wire shape.
type Step struct {
	Name   string `yaml:"name"`
	Query  any    `yaml:"query,omitempty"`
	Count  any    `yaml:"count,omitempty"`
	Expect Expect `yaml:"expect"`
}

// Kind returns the request kind of the step.
func (s Step) Kind() string {
	if s.Count != nil {
		return queryir.RequestKindCount
	}
	return queryir.RequestKindQuery
}

// Expect describes the outcome of a step.
type Expect struct {
	// Records are matched in order; each entry is a subset of the fields
	// of the returned record at the same position. The number of records
	// must match exactly.
	Records []map[string]any `yaml:"records,omitempty"`

	// Count is the number of returned records for a query, or the value
	// returned by a count.
	Count *int `yaml:"count,omitempty"`

	// Error is the expected error code.
	Error qerr.Code `yaml:"error,omitempty"`

	// Format is the expected one-line rendering of the request.
	Format string `yaml:"format,omitempty"`
}

// Assertion validates the journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "journal_count": exactly Count requests were journaled
	// - "journal_outcomes": journaled outcomes equal Outcomes, in order
	// - "same_request": the named Steps share one request hash
	// - "distinct_requests": the journal holds Count distinct request hashes
	Type string `yaml:"type"`

	// Count is used by journal_count and distinct_requests.
	Count int `yaml:"count,omitempty"`

	// Outcomes is used by journal_outcomes.
	Outcomes []string `yaml:"outcomes,omitempty"`

	// Steps names steps, used by same_request.
	Steps []string `yaml:"steps,omitempty"`
}

// Assertion type constants.
const (
	AssertJournalCount     = "journal_count"
	AssertJournalOutcomes  = "journal_outcomes"
	AssertSameRequest      = "same_request"
	AssertDistinctRequests = "distinct_requests"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Record.Name == "" {
		return fmt.Errorf("record.name is required")
	}
	if len(s.Record.Fields) == 0 {
		return fmt.Errorf("record.fields list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if names[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		names[step.Name] = true
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Name == "" {
		return fmt.Errorf("name is required")
	}
	if (step.Query == nil) == (step.Count == nil) {
		return fmt.Errorf("exactly one of query and count is required")
	}
	if _, _, err := step.requests(); err != nil {
		return err
	}

	e := step.Expect
	if e.Error == "" && e.Count == nil && e.Records == nil {
		return fmt.Errorf("expect needs records, count or error")
	}
	if e.Error != "" && (e.Count != nil || e.Records != nil) {
		return fmt.Errorf("expect.error excludes records and count")
	}
	if e.Records != nil && step.Count != nil {
		return fmt.Errorf("expect.records applies to query steps only")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertJournalCount, AssertDistinctRequests:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertJournalOutcomes:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("assertions[%d]: outcomes list is required for journal_outcomes", index)
		}
	case AssertSameRequest:
		if len(a.Steps) < 2 {
			return fmt.Errorf("assertions[%d]: same_request needs at least two steps", index)
		}
		for _, name := range a.Steps {
			if !steps[name] {
				return fmt.Errorf("assertions[%d]: unknown step %q", index, name)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// requests decodes the step's envelope through the JSON wire codec, so
// scenarios exercise exactly what the HTTP binding accepts.
func (s Step) requests() (*queryir.FilterSortPageRequest, *queryir.CountRequest, error) {
	if s.Count != nil {
		var req queryir.CountRequest
		if err := decodeWire(s.Count, &req); err != nil {
			return nil, nil, fmt.Errorf("count: %w", err)
		}
		return nil, &req, nil
	}
	var req queryir.FilterSortPageRequest
	if err := decodeWire(s.Query, &req); err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	return &req, nil, nil
}

func decodeWire(raw, dst any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
