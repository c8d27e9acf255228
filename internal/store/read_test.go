package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/queryir"
)

func seedJournal(t *testing.T, s *Store) {
	t.Helper()
	for i := 1; i <= 4; i++ {
		rec := createTestRecord(t, fmt.Sprintf("q-%d", i), queryir.RequestKindQuery, takeEnvelope(i))
		if i == 3 {
			rec.Outcome = OutcomeError
			rec.ErrorCode = "LIMIT_EXCEEDED"
		}
		mustWrite(t, s, rec)
	}
	mustWrite(t, s, createTestRecord(t, "c-1", queryir.RequestKindCount, ir.IRObject{}))
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestListRequests(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all in seq order", Filter{}, []string{"q-1", "q-2", "q-3", "q-4", "c-1"}},
		{"by kind", Filter{Kind: queryir.RequestKindCount}, []string{"c-1"}},
		{"errors", Filter{Outcome: OutcomeError}, []string{"q-3"}},
		{"after seq", Filter{AfterSeq: 3}, []string{"q-4", "c-1"}},
		{"limit", Filter{Limit: 2}, []string{"q-1", "q-2"}},
		{"combined", Filter{Kind: queryir.RequestKindQuery, Outcome: OutcomeOK, AfterSeq: 1, Limit: 1}, []string{"q-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListRequests(t.Context(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestListRequests_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ListRequests(t.Context(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRequestsByHash(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s, createTestRecord(t, "a", queryir.RequestKindQuery, takeEnvelope(2)))
	mustWrite(t, s, createTestRecord(t, "b", queryir.RequestKindQuery, takeEnvelope(3)))
	mustWrite(t, s, createTestRecord(t, "c", queryir.RequestKindQuery, takeEnvelope(2)))

	hash := ir.MustRequestHash(queryir.RequestKindQuery, takeEnvelope(2))
	got, err := s.RequestsByHash(t.Context(), hash)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}
