package queryir

import (
	"encoding/json"
	"fmt"
)

// Direction is the sort order of a SortClause.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Ascending || d == Descending
}

// UnmarshalJSON rejects unknown directions at decode time.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Direction(s).Valid() {
		return fmt.Errorf("unknown sort direction %q", s)
	}
	*d = Direction(s)
	return nil
}

// SortClause orders the sequence by the value of a key selector lambda.
type SortClause struct {
	Direction   Direction `json:"direction"`
	KeySelector *Node     `json:"key_selector"`
}

// FilterSortPageRequest is the envelope of a record query. Each nil field
// means the stage was not present in the captured pipeline. Stages apply
// in the fixed order filter, sort, skip, take.
type FilterSortPageRequest struct {
	Filter *Node       `json:"filter,omitempty"`
	Sort   *SortClause `json:"sort,omitempty"`
	Skip   *int        `json:"skip,omitempty"`
	Take   *int        `json:"take,omitempty"`
}

// CountRequest is the envelope of a count query.
type CountRequest struct {
	Filter *Node `json:"filter,omitempty"`
}

// Request kinds, used for hashing and journaling.
const (
	RequestKindQuery = "query"
	RequestKindCount = "count"
)

// Int returns a pointer to n, for building Skip and Take.
func Int(n int) *int { return &n }
