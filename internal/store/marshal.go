package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/queryir"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// marshalEnvelope converts a request envelope to canonical JSON TEXT for
// storage. The canonical form has the same keys as the wire form, so the
// stored text decodes back into the request types.
func marshalEnvelope(env ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(env)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}

// FilterSortPage decodes the journaled request of a "query" record.
func (r Record) FilterSortPage() (*queryir.FilterSortPageRequest, error) {
	if r.Kind != queryir.RequestKindQuery {
		return nil, fmt.Errorf("record %s is a %s request, not %s", r.ID, r.Kind, queryir.RequestKindQuery)
	}
	var req queryir.FilterSortPageRequest
	if err := json.Unmarshal([]byte(r.Request), &req); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", r.ID, err)
	}
	return &req, nil
}

// Count decodes the journaled request of a "count" record.
func (r Record) Count() (*queryir.CountRequest, error) {
	if r.Kind != queryir.RequestKindCount {
		return nil, fmt.Errorf("record %s is a %s request, not %s", r.ID, r.Kind, queryir.RequestKindCount)
	}
	var req queryir.CountRequest
	if err := json.Unmarshal([]byte(r.Request), &req); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", r.ID, err)
	}
	return &req, nil
}
