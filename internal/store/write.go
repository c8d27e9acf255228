package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/queryir"
)

// Outcomes recorded for a request.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Record is one journaled request.
type Record struct {
	Seq          int64 // assigned on insert
	ID           string
	Kind         string // queryir.RequestKindQuery or queryir.RequestKindCount
	RequestHash  string
	Request      string // canonical JSON of the envelope
	Outcome      string
	ResultCount  int
	ResultHash   string
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
}

// NewRecord builds a record for the envelope env of the given kind, with
// the request hash and canonical text filled in. The outcome is left for
// the caller.
func NewRecord(id, kind string, env ir.IRObject, at time.Time) (Record, error) {
	if kind != queryir.RequestKindQuery && kind != queryir.RequestKindCount {
		return Record{}, fmt.Errorf("new record: unknown request kind %q", kind)
	}
	text, err := marshalEnvelope(env)
	if err != nil {
		return Record{}, fmt.Errorf("new record: %w", err)
	}
	hash, err := ir.RequestHash(kind, env)
	if err != nil {
		return Record{}, fmt.Errorf("new record: %w", err)
	}
	return Record{
		ID:          id,
		Kind:        kind,
		RequestHash: hash,
		Request:     text,
		CreatedAt:   at,
	}, nil
}

// WriteRequest appends a record to the journal.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// Other constraint violations (e.g., an unknown outcome) still return errors.
func (s *Store) WriteRequest(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("write request: empty id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
		(id, kind, request_hash, request, outcome, result_count, result_hash, error_code, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Kind,
		rec.RequestHash,
		rec.Request,
		rec.Outcome,
		rec.ResultCount,
		rec.ResultHash,
		rec.ErrorCode,
		rec.ErrorMessage,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	return nil
}
