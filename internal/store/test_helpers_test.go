package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/queryir"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// takeEnvelope returns a query envelope that differs per take value.
func takeEnvelope(take int) ir.IRObject {
	return (&queryir.FilterSortPageRequest{Take: queryir.Int(take)}).ToIR()
}

// createTestRecord creates a successful record with minimal required fields.
func createTestRecord(t *testing.T, id, kind string, env ir.IRObject) Record {
	t.Helper()
	rec, err := NewRecord(id, kind, env, testEpoch)
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}
	rec.Outcome = OutcomeOK
	return rec
}

func mustWrite(t *testing.T, s *Store, rec Record) {
	t.Helper()
	if err := s.WriteRequest(t.Context(), rec); err != nil {
		t.Fatalf("WriteRequest(%s) failed: %v", rec.ID, err)
	}
}
